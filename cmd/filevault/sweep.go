package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
	"filevault/internal/objects"
)

func newSweepCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var ids string
	var promoteOnly, migrateOnly bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Promote temp objects and migrate between backends",
		Long:  "Run one sweeper pass directly against the database: promote temp objects to permanent storage, then copy bodies from the configured migration source to its target.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if promoteOnly && migrateOnly {
				return fmt.Errorf("--promote-only and --migrate-only are mutually exclusive")
			}
			idList := splitCommaList(ids)
			if len(idList) > 0 && migrateOnly {
				return fmt.Errorf("--ids only applies to promotion")
			}

			rt, err := openRuntime(cfg, slog.Default().With("component", "sweep"))
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			results := map[string]api.SweepResponse{}

			if !migrateOnly {
				var promoted objects.SweepResult
				if len(idList) > 0 {
					promoted, err = rt.sweeper.PromoteIDs(ctx, idList)
				} else {
					promoted, err = rt.sweeper.SweepTemp(ctx)
				}
				if err != nil {
					return fmt.Errorf("promote: %w", err)
				}
				results["promoted"] = sweepResult(promoted)
			}
			if !promoteOnly && len(idList) == 0 {
				migrated, err := rt.sweeper.SweepMigrate(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				results["migrated"] = sweepResult(migrated)
			}

			if *jsonOutput {
				return writeJSON(results)
			}
			for _, name := range []string{"promoted", "migrated"} {
				if resp, ok := results[name]; ok {
					if err := writeSweepResult(name, resp); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ids, "ids", "", "comma-separated object ids to promote")
	cmd.Flags().BoolVar(&promoteOnly, "promote-only", false, "skip backend migration")
	cmd.Flags().BoolVar(&migrateOnly, "migrate-only", false, "skip temp promotion")
	return cmd
}

func sweepResult(result objects.SweepResult) api.SweepResponse {
	return api.SweepResponse{
		Scanned: result.Scanned,
		Copied:  result.Copied,
		Skipped: result.Skipped,
		Failed:  result.Failed,
	}
}
