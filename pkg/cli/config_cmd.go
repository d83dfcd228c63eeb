package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigShowCmd(s))
	cmd.AddCommand(newConfigSetProfileCmd(s))
	cmd.AddCommand(newConfigUseProfileCmd(s))

	return cmd
}

func newConfigShowCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No configuration found at %s\n", ConfigPath())
				return err
			}
			if s.output == "json" {
				return printJSON(cmd, cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigSetProfileCmd(s *settings) *cobra.Command {
	var (
		name       string
		db         string
		output     string
		logLevel   string
		parallel   int
		flightAddr string
	)

	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a configuration profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			if cmd.Flags().Changed("default-output") {
				if err := validateOutputFormat(output); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("default-parallel") && parallel < 1 {
				return fmt.Errorf("--default-parallel must be at least 1, got %d", parallel)
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = newUserConfig()
			}

			p := cfg.Profiles[name]
			if cmd.Flags().Changed("db") {
				p.DB = db
			}
			if cmd.Flags().Changed("default-output") {
				p.Output = output
			}
			if cmd.Flags().Changed("default-log-level") {
				p.LogLevel = logLevel
			}
			if cmd.Flags().Changed("default-parallel") {
				p.Parallel = parallel
			}
			if cmd.Flags().Changed("flight-addr") {
				p.FlightAddr = flightAddr
			}
			cfg.Profiles[name] = p

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if s.output == "json" {
				return printJSON(cmd, map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&db, "db", "", "Default store path")
	cmd.Flags().StringVar(&output, "default-output", "", "Default output format")
	cmd.Flags().StringVar(&logLevel, "default-log-level", "", "Default log level")
	cmd.Flags().IntVar(&parallel, "default-parallel", 0, "Default read parallelism")
	cmd.Flags().StringVar(&flightAddr, "flight-addr", "", "Default listen address for serve")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newConfigUseProfileCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Set the active configuration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if s.output == "json" {
				return printJSON(cmd, map[string]string{
					"status":         "ok",
					"active_profile": name,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active profile set to %q\n", name)
			return nil
		},
	}
}
