package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filevault/internal/config"
	"filevault/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var outputName string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "filevault",
		Short:         "Filevault stores files and images in chunked, tiered backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if outputName != "" {
				formatter, err := format.ForName(outputName)
				if err != nil {
					return err
				}
				outputFormatter = formatter
				jsonOutput = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVarP(&outputName, "output", "o", "", "structured output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newPutCmd(cfg, &jsonOutput),
		newGetCmd(cfg),
		newShowCmd(cfg, &jsonOutput),
		newDimsCmd(cfg, &jsonOutput),
		newUpdateCmd(cfg, &jsonOutput),
		newRmCmd(cfg, &jsonOutput),
		newSweepCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newAdminCmd(cfg, &jsonOutput),
	)

	return cmd
}
