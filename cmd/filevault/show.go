package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/config"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var ownerType, ownerID string

	cmd := &cobra.Command{
		Use:   "show [<id>...]",
		Short: "Show object metadata",
		Long:  "Show object records by id, or every live object of one owner (--owner-type and --owner-id).",
		RunE: func(cmd *cobra.Command, args []string) error {
			byOwner := ownerType != "" || ownerID != ""
			if byOwner && len(args) > 0 {
				return fmt.Errorf("use either ids or --owner-type/--owner-id, not both")
			}
			if !byOwner && len(args) == 0 {
				return fmt.Errorf("id is required")
			}

			return withClient(cfg, func(client *api.Client) error {
				if byOwner {
					list, err := client.ListObjects(cmd.Context(), ownerType, ownerID)
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(list)
					}
					return writeObjectList(list)
				}

				responses := make([]api.ObjectResponse, 0, len(args))
				for _, id := range args {
					resp, err := client.GetObject(cmd.Context(), id)
					if err != nil {
						return err
					}
					responses = append(responses, resp)
				}
				if *jsonOutput {
					if len(responses) == 1 {
						return writeJSON(responses[0])
					}
					return writeJSON(responses)
				}
				for i, resp := range responses {
					if i > 0 {
						if err := writePlain("\n"); err != nil {
							return err
						}
					}
					if err := writeObjectDetail(resp); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ownerType, "owner-type", "", "list objects of this owner type")
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "list objects of this owner id")
	return cmd
}
