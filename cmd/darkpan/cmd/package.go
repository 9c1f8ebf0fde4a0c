// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/spf13/cobra"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Commands to inspect packages",
}

var packageGet = &cobra.Command{
	Use:   "get NAME",
	Short: "Get package info by name",
	Long: `Get the package registered on a stack under some name.

Without the stack flag, reports the latest version of the package available in the repository.
Exits with ENOENT status when the package is not found.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("getting package", func(ctx context.Context, repo *repository.Repository) error {
			var opts []repository.PackageOption
			if darkpanFlags.stack.name != "" {
				opts = append(opts, repository.OnStack(repository.ByName(darkpanFlags.stack.name)))
			}
			pkg, found, err := repo.GetPackage(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			if !found {
				return status.ErrNotFound.WrapMessage("package %q", args[0])
			}
			return printYAML(pkg)
		})
	},
}

func init() {
	addStackFlag(packageGet, "The stack the package is registered on")

	packageCmd.AddCommand(packageGet)
	rootCmd.AddCommand(packageCmd)
}
