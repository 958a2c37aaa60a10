package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"filevault/internal/config"
	"filevault/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run the filevault API server and background sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweepDone := make(chan struct{})
			if noSweep {
				close(sweepDone)
			} else {
				go func() {
					defer close(sweepDone)
					if err := rt.sweeper.Run(ctx, cfg.SweepInterval()); err != nil {
						logger.Error("sweeper stopped", "error", err)
					}
				}()
			}

			srv := server.New(addr, rt.service, rt.sweeper, server.OptionsFromConfig(*cfg), logger)
			err = srv.Run(ctx)
			// The store closes after the sweeper has let go of it.
			stop()
			<-sweepDone
			return err
		},
	}

	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the background promotion/migration sweeper")
	return cmd
}
