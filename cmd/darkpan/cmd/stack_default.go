// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var stackDefault = &cobra.Command{
	Use:   "default NAME",
	Short: "Make a stack the default stack",
	Long: `Make a stack the default stack. The previous default stack remains as a regular stack.

Exits with ENOENT status when the stack does not exist.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("setting default stack", func(ctx context.Context, repo *repository.Repository) error {
			stack, err := repo.SetDefaultStack(ctx, repository.ByName(args[0]))
			if err != nil {
				return err
			}
			infoLogger.Printf("default stack is now %q", stack.Name)
			return nil
		})
	},
}

var stackSet = &cobra.Command{
	Use:   "set NAME",
	Short: "Set the properties of a stack",
	Long:  `Set the properties of a stack. Properties given with an empty value are removed.`,
	Example: `% darkpan stack set dev --property owner=ops --property description=`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("setting stack properties", func(ctx context.Context, repo *repository.Repository) error {
			stack, err := repo.SetStackProperties(ctx, repository.ByName(args[0]), darkpanFlags.stack.properties)
			if err != nil {
				return err
			}
			return printYAML(stack)
		})
	},
}

func init() {
	requireFlags(stackSet, addPropertiesFlag(stackSet))

	stackCmd.AddCommand(stackDefault)
	stackCmd.AddCommand(stackSet)
}
