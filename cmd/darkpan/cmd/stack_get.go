// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/index"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

type stackDescription struct {
	model.Stack `yaml:",inline"`
	Tip         string        `yaml:"tip"`
	Packages    []index.Entry `yaml:"packages,omitempty"`
}

var stackGet = &cobra.Command{
	Use:   "get [NAME]",
	Short: "Get stack info by name",
	Long: `Describe a stack and the packages registered on it. Describes the default stack when no name is given.

Exits with ENOENT status when the stack does not exist.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("getting stack", func(ctx context.Context, repo *repository.Repository) error {
			ref := repository.DefaultStack()
			if len(args) > 0 {
				ref = repository.ByName(args[0])
			}
			stack, _, err := repo.GetStack(ctx, ref)
			if err != nil {
				return err
			}
			tip, err := repo.StackTip(ctx, repository.Resolved(stack))
			if err != nil {
				return err
			}
			entries, err := repo.StackRegistry(ctx, repository.Resolved(stack))
			if err != nil {
				return err
			}
			return printYAML(stackDescription{Stack: stack, Tip: tip, Packages: entries})
		})
	},
}

func init() {
	stackCmd.AddCommand(stackGet)
}
