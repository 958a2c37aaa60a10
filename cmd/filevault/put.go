package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
)

func newPutCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var manifestPath string
	var opts api.StoreOptions
	var description string
	var contentType string

	cmd := &cobra.Command{
		Use:   "put [<file>...]",
		Short: "Store one or more files",
		Long:  "Store files given as arguments, or the files listed in a YAML manifest (--manifest).",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []manifestEntry
			switch {
			case manifestPath != "" && len(args) > 0:
				return fmt.Errorf("use either file arguments or --manifest, not both")
			case manifestPath != "":
				m, err := loadManifest(manifestPath)
				if err != nil {
					return err
				}
				entries = m.Files
				opts.OwnerType = firstNonEmpty(opts.OwnerType, m.OwnerType)
				opts.OwnerID = firstNonEmpty(opts.OwnerID, m.OwnerID)
				opts.Temp = opts.Temp || m.Temp
			case len(args) > 0:
				for _, path := range args {
					entries = append(entries, manifestEntry{
						Path:        path,
						Filename:    filepath.Base(path),
						ContentType: contentType,
						Description: description,
					})
				}
			default:
				return fmt.Errorf("at least one file or --manifest is required")
			}

			uploads := make([]api.Upload, 0, len(entries))
			for _, entry := range entries {
				f, err := os.Open(entry.Path)
				if err != nil {
					return err
				}
				defer f.Close()
				uploads = append(uploads, api.Upload{
					Filename:    entry.Filename,
					ContentType: entry.ContentType,
					Description: entry.Description,
					Content:     f,
				})
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.PutObjects(cmd.Context(), uploads, opts)
				if err != nil {
					return err
				}
				if *jsonOutput {
					if err := writeJSON(resp); err != nil {
						return err
					}
				} else if err := writeStoreResult(resp); err != nil {
					return err
				}
				if resp.Failed > 0 {
					return fmt.Errorf("%d of %d uploads failed", resp.Failed, len(resp.Items))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest listing files to store")
	cmd.Flags().BoolVar(&opts.Temp, "temp", false, "store in temporary storage until promoted")
	cmd.Flags().BoolVar(&opts.NoWatermark, "no-watermark", false, "never watermark stored images (requires admin token)")
	cmd.Flags().StringVar(&opts.OwnerType, "owner-type", "", "owner model type")
	cmd.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owner record id")
	cmd.Flags().StringVar(&description, "description", "", "description for every file")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type hint for every file")
	return cmd
}
