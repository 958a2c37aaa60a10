package main

import (
	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
)

func newDimsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var box string
	var crop bool

	cmd := &cobra.Command{
		Use:   "dims <id>",
		Short: "Show the size an image rendition would have",
		Args:  requireExactlyArgs(1, "exactly one id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Dimensions(cmd.Context(), args[0], box, crop)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%dx%d\n", resp.Width, resp.Height)
			})
		},
	}

	cmd.Flags().StringVar(&box, "format", "", "bounding box WxH (default: stored size)")
	cmd.Flags().BoolVar(&crop, "crop", false, "crop to exactly fill the box")
	return cmd
}
