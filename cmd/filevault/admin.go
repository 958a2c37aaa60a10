package main

import (
	"strings"

	"github.com/spf13/cobra"

	"filevault/internal/api"
	"filevault/internal/auth"
	"filevault/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminHashTokenCmd(jsonOutput))
	cmd.AddCommand(newAdminPromoteCmd(cfg, jsonOutput))
	return cmd
}

func newAdminHashTokenCmd(jsonOutput *bool) *cobra.Command {
	var write, global bool

	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Hash an admin token for admin_token_hash",
		Long:  "Hash an admin token with bcrypt. A random token is generated when none is given. Clients send the token in FILEVAULT_ADMIN_TOKEN; the server stores only the hash.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			generated := false
			if len(args) == 1 {
				token = strings.TrimSpace(args[0])
			} else {
				var err error
				token, err = auth.GenerateToken()
				if err != nil {
					return err
				}
				generated = true
			}
			if err := auth.ValidateToken(token); err != nil {
				return err
			}

			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}

			path := ""
			if write {
				path, err = configWritePath(global)
				if err != nil {
					return err
				}
				if err := config.SetKey(path, "admin_token_hash", hash); err != nil {
					return err
				}
			}

			if *jsonOutput {
				payload := map[string]any{"hash": hash}
				if generated {
					payload["token"] = token
				}
				if path != "" {
					payload["written_to"] = path
				}
				return writeJSON(payload)
			}

			if generated {
				if err := writePlain("token: %s\n", token); err != nil {
					return err
				}
			}
			if err := writePlain("hash: %s\n", hash); err != nil {
				return err
			}
			if path != "" {
				return writePlain("written to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "store the hash as admin_token_hash in the config file")
	cmd.Flags().BoolVar(&global, "global", false, "with --write, use the global config (~/.filevault.toml)")
	return cmd
}

func newAdminPromoteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <id> [<id>...]",
		Short: "Promote temp objects to permanent storage via the server",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Promote(cmd.Context(), args)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeSweepResult("promoted", resp)
			})
		},
	}
}
