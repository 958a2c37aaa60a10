package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
)

func newUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var filename, contentType, description, ownerType, ownerID string
	var noWatermark bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update object metadata",
		Args:  requireExactlyArgs(1, "exactly one id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var req api.ObjectUpdateRequest
			if flags.Changed("filename") {
				req.Filename = &filename
			}
			if flags.Changed("content-type") {
				req.ContentType = &contentType
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("owner-type") {
				req.OwnerType = &ownerType
			}
			if flags.Changed("owner-id") {
				req.OwnerID = &ownerID
			}
			if flags.Changed("no-watermark") {
				req.NoWatermark = &noWatermark
			}
			if req == (api.ObjectUpdateRequest{}) {
				return fmt.Errorf("nothing to update")
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateObject(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeObjectDetail(resp)
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "new filename")
	cmd.Flags().StringVar(&contentType, "content-type", "", "new content type")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&ownerType, "owner-type", "", "new owner type")
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "new owner id")
	cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "set the image no-watermark flag (requires admin token)")
	return cmd
}
