package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"polite/internal/config"
	"polite/internal/flightsql"
	"polite/pkg/frame"
	"polite/pkg/polite"
)

func newServeCmd(s *settings) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [DB_PATH]",
		Short: "Serve a store over Arrow Flight SQL",
		Long: `Expose the store over Arrow Flight SQL until interrupted. Statement queries
are materialized as frames and streamed with their column types; table listings
come from the store's catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := s.storePath(args, 0)
			if dbPath == "" {
				return errors.New("serve needs a store path: pass DB_PATH or set POLITE_DB")
			}
			if !cmd.Flags().Changed("addr") {
				addr = firstNonEmpty(s.env.FlightAddr, s.active.FlightAddr, config.DefaultFlightAddr)
			}

			ctx := cmd.Context()
			conn, err := polite.Connect(ctx, dbPath, polite.WithLogger(s.logger))
			if err != nil {
				return err
			}
			defer conn.Close() //nolint:errcheck

			// Conn is single-caller; gRPC handlers run concurrently.
			var mu sync.Mutex
			query := func(ctx context.Context, q string) (*frame.Frame, error) {
				mu.Lock()
				defer mu.Unlock()
				return polite.ToFrame(ctx, conn, q, s.queryOptions()...)
			}

			srv := flightsql.NewServer(addr, conn.Driver(), s.logger, query)
			if err := srv.Start(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s over Flight SQL at %s\n", conn.Path(), srv.Addr())

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultFlightAddr, "Listen address")

	return cmd
}
