// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var stackCreate = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a stack",
	Long: `Create a stack, as a copy of another stack. The new stack starts with the packages
registered on the stack it is forked from, then evolves independently.

Exits with EEXIST status when the stack exists already.`,
	Example: `% darkpan stack create dev --from production --property owner=ops`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("creating stack", func(ctx context.Context, repo *repository.Repository) error {
			stack, err := repo.CreateStack(ctx, args[0], darkpanFlags.stack.properties, repository.Fork(darkpanFlags.stack.from))
			if err != nil {
				return err
			}
			infoLogger.Printf("created stack %q", stack.Name)
			return nil
		})
	},
}

func init() {
	addFromStackFlag(stackCreate)
	addPropertiesFlag(stackCreate)

	stackCmd.AddCommand(stackCreate)
}
