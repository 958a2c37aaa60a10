package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// requireArgs checks the positional argument count; max < 0 means unbounded.
func requireArgs(min, max int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return errors.New(message)
		}
		return nil
	}
}

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return requireArgs(count, count, message)
}

func requireAtLeastOneID(cmd *cobra.Command, args []string) error {
	return requireArgs(1, -1, "id is required")(cmd, args)
}
