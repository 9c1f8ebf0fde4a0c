// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Commands to manage stacks",
	Long: `Commands to manage stacks.

A stack is a named set of package versions. Exactly one stack is the default stack:
commands operate on it unless told otherwise.

Stack names are case insensitive. Blanks are replaced by dashes.`,
}

func init() {
	rootCmd.AddCommand(stackCmd)
}
