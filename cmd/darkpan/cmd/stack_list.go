// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var defaultMarker = color.New(color.FgGreen, color.Bold)

var stackList = &cobra.Command{
	Use:   "list",
	Short: "List stacks",
	Long:  `List all stacks. The default stack is marked with a star.`,
	Example: `% darkpan stack list
* master
  dev`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("listing stacks", func(ctx context.Context, repo *repository.Repository) error {
			stacks, err := repo.ListStacks(ctx)
			if err != nil {
				return err
			}
			for _, stack := range stacks {
				if stack.IsDefault {
					infoLogger.Printf("%s %s", defaultMarker.Sprint("*"), defaultMarker.Sprint(stack.Name))
					continue
				}
				infoLogger.Printf("  %s", stack.Name)
			}
			return nil
		})
	},
}

func init() {
	stackCmd.AddCommand(stackList)
}
