package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"filevault/internal/config"
	"filevault/internal/store"

	_ "modernc.org/sqlite"
)

// migrateReport is the schema state plus the bytes held in the chunk tables.
type migrateReport struct {
	Schema         *store.MigrationStatus `json:"schema"`
	ChunkBytes     int64                  `json:"chunk_bytes"`
	TempChunkBytes int64                  `json:"temp_chunk_bytes"`
}

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database schema migrations",
		Long:  "Apply pending schema migrations (the server also does this on start). With --dry-run only the pending steps are listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				plan, err := inspectSchema(cfg.DBPath)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writeMigrationPlan(plan)
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			report, err := storageUsage(cmd.Context(), st)
			st.Close()
			if err != nil {
				return err
			}
			if report.Schema, err = inspectSchema(cfg.DBPath); err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(report)
			}
			if err := writePlain("%s: schema version %d\n", cfg.DBPath, report.Schema.CurrentVersion); err != nil {
				return err
			}
			return writePlain("chunk bytes: %d (temp: %d)\n", report.ChunkBytes, report.TempChunkBytes)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

func storageUsage(ctx context.Context, st *store.Store) (migrateReport, error) {
	var report migrateReport
	var err error
	if report.ChunkBytes, err = st.Chunks().TotalSize(ctx); err != nil {
		return report, fmt.Errorf("chunk usage: %w", err)
	}
	if report.TempChunkBytes, err = st.TempChunks(0).TotalSize(ctx); err != nil {
		return report, fmt.Errorf("temp chunk usage: %w", err)
	}
	return report, nil
}

func inspectSchema(path string) (*store.MigrationStatus, error) {
	db, err := openRawDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	plan, err := store.MigrationPlan(db)
	if err != nil {
		return nil, fmt.Errorf("inspect migrations: %w", err)
	}
	return plan, nil
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	if err := writePlain("current version: %d\navailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("no pending migrations\n")
	}
	for _, m := range plan.Pending {
		if err := writePlain("  pending %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
