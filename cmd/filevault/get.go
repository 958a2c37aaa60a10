package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var outPath string
	var box string
	var crop bool
	var quality int
	var noWatermark bool
	var dataURI bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download an object body",
		Args:  requireExactlyArgs(1, "exactly one id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataURI {
				if box != "" || crop || quality > 0 || noWatermark {
					return fmt.Errorf("--data-uri cannot be combined with image options")
				}
				return withClient(cfg, func(client *api.Client) error {
					resp, err := client.DataURI(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writePlain("%s\n", resp.DataURI)
				})
			}

			query := url.Values{}
			setIfNotEmpty(query, "format", box)
			if crop {
				query.Set("crop", "1")
			}
			if quality > 0 {
				query.Set("quality", strconv.Itoa(quality))
			}

			var w io.Writer = os.Stdout
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			return withClient(cfg, func(client *api.Client) error {
				var contentType string
				var err error
				if noWatermark {
					contentType, err = client.DownloadOriginal(cmd.Context(), args[0], query, w)
				} else {
					contentType, err = client.Download(cmd.Context(), args[0], query, w)
				}
				if err != nil {
					return err
				}
				if outPath != "" && outPath != "-" {
					fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", outPath, contentType)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "O", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&box, "format", "", "image bounding box WxH")
	cmd.Flags().BoolVar(&crop, "crop", false, "crop images to exactly fill the box")
	cmd.Flags().IntVar(&quality, "quality", 0, "image output quality 1-100")
	cmd.Flags().BoolVar(&dataURI, "data-uri", false, "print the body as a base64 data URI")
	cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "fetch without watermark (requires admin token)")
	return cmd
}
