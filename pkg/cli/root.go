// Package cli implements the polite command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"polite/internal/config"
	"polite/internal/sqltext"
	"polite/pkg/polite"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		return 1
	}
	return 0
}

// settings holds the values resolved from flags, environment, profile and
// defaults, in that order of precedence.
type settings struct {
	output      string
	profile     string
	logLevel    string
	db          string
	parallel    int
	partitionOn string
	partitions  int

	env    *config.Config
	active Profile
	logger *slog.Logger
}

func (s *settings) resolve(cmd *cobra.Command) error {
	env, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	ucfg, err := LoadUserConfig()
	if err != nil {
		// Config file is optional
		ucfg = newUserConfig()
	}
	p := ucfg.ActiveProfile(s.profile)
	s.env = env
	s.active = p

	if !cmd.Flags().Changed("output") {
		s.output = firstNonEmpty(env.Output, p.Output, config.DefaultOutput)
	}
	if !cmd.Flags().Changed("log-level") {
		s.logLevel = firstNonEmpty(env.LogLevel, p.LogLevel, config.DefaultLogLevel)
	}
	if !cmd.Flags().Changed("parallel") {
		switch {
		case env.Parallel > 0:
			s.parallel = env.Parallel
		case p.Parallel > 0:
			s.parallel = p.Parallel
		default:
			s.parallel = config.DefaultParallel
		}
	}
	s.db = firstNonEmpty(env.DBPath, p.DB)

	if err := validateOutputFormat(s.output); err != nil {
		return err
	}
	if s.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", s.parallel)
	}
	if cmd.Flags().Changed("partitions") && s.partitionOn == "" {
		return errors.New("--partitions requires --partition-on")
	}

	level := (&config.Config{LogLevel: s.logLevel}).SlogLevel()
	s.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	for _, w := range env.Warnings {
		s.logger.Warn(w)
	}
	return nil
}

// queryOptions turns the partition flags into materialization options. The
// partition count defaults to the read parallelism.
func (s *settings) queryOptions() []polite.QueryOption {
	var opts []polite.QueryOption
	if s.partitionOn != "" {
		n := s.partitions
		if n <= 0 {
			n = s.parallel
		}
		opts = append(opts, polite.WithPartition(s.partitionOn, n))
	}
	if s.parallel > 1 {
		opts = append(opts, polite.WithParallelism(s.parallel))
	}
	return opts
}

// storePath picks the positional store argument over the resolved default.
func (s *settings) storePath(args []string, idx int) string {
	if len(args) > idx {
		return args[idx]
	}
	return s.db
}

func newRootCmd() *cobra.Command {
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:   "polite <SQL|@file> [DB_PATH]",
		Short: "Run SQL against SQLite or DuckDB stores and print the results as frames",
		Long: `Run SQL against an embedded store. Statements starting with SELECT are
materialized and printed as a frame; anything else is executed and its affected
row count is reported on stderr. Without DB_PATH the profile's store is used,
falling back to an in-memory SQLite database.

DB_PATH may be a SQLite file, ":memory:", or a "sqlite://" or "duckdb://" URI.`,
		Example: `  polite "SELECT 1 AS one"
  polite "CREATE TABLE t (id INTEGER)" app.db
  polite @report.sql duckdb://warehouse.duckdb -o csv`,
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			script, err := readScript(args[0])
			if err != nil {
				return err
			}
			return runScript(cmd, s, script, s.storePath(args, 1))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", config.DefaultOutput, "Output format (table, csv, json)")
	rootCmd.PersistentFlags().StringVarP(&s.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&s.parallel, "parallel", config.DefaultParallel, "Read connections for partitioned queries")
	rootCmd.PersistentFlags().StringVar(&s.partitionOn, "partition-on", "", "Integer column to split SELECT queries on (NULL keys go to the first partition)")
	rootCmd.PersistentFlags().IntVar(&s.partitions, "partitions", 0, "Number of partitions (default: --parallel)")

	rootCmd.AddCommand(newLoadCmd(s))
	rootCmd.AddCommand(newExportCmd(s))
	rootCmd.AddCommand(newServeCmd(s))
	rootCmd.AddCommand(newConfigCmd(s))
	rootCmd.AddCommand(newVersionCmd(s))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// readScript returns arg, or the contents of the file it names when it
// starts with "@".
func readScript(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	if path == "" {
		return "", errors.New("@ must be followed by a file path")
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is user-supplied by design
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

// runScript executes every statement of script in order on one connection.
func runScript(cmd *cobra.Command, s *settings, script, dbPath string) error {
	stmts := sqltext.Split(script)
	if len(stmts) == 0 {
		return errors.New("no SQL statement to run")
	}

	ctx := cmd.Context()
	conn, err := polite.Connect(ctx, dbPath, polite.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	for _, stmt := range stmts {
		if sqltext.IsSelect(stmt) {
			f, err := polite.ToFrame(ctx, conn, stmt, s.queryOptions()...)
			if err != nil {
				return err
			}
			err = printFrame(cmd.OutOrStdout(), f, s.output)
			f.Release()
			if err != nil {
				return err
			}
			continue
		}
		n, err := polite.Execute(ctx, conn, stmt)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Executed successfully, %s row(s) affected\n", humanize.Comma(n))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
