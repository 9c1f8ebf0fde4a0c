// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register DISTRIBUTION",
	Short: "Register the packages of a distribution on a stack",
	Long: `Register all the packages provided by a distribution on a stack.

The distribution is designated by its path in the repository, e.g. J/JE/JEFF/Foo-1.0.tar.gz.
Packages of the same name registered on the stack are superseded.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("registering distribution", func(ctx context.Context, repo *repository.Repository) error {
			superseded, err := repo.Register(ctx, stackRef(), args[0])
			if err != nil {
				return err
			}
			infoLogger.Printf("registered %s on stack %s", args[0], stackRef())
			for _, reg := range superseded {
				infoLogger.Printf("superseded %s from %s", reg.Package.PackageSpec, reg.Package.Distribution)
			}
			return nil
		})
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister PACKAGE",
	Short: "Remove a package from a stack",
	Long: `Remove the registration of a package from a stack.

Exits with ENOENT status when the package is not registered on the stack.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("unregistering package", func(ctx context.Context, repo *repository.Repository) error {
			reg, err := repo.Unregister(ctx, stackRef(), args[0])
			if err != nil {
				return err
			}
			infoLogger.Printf("unregistered %s from stack %s", reg.Package.PackageSpec, reg.Stack)
			return nil
		})
	},
}

func init() {
	addStackFlag(registerCmd, "The stack to register the packages on. Defaults to the default stack")
	addStackFlag(unregisterCmd, "The stack to remove the package from. Defaults to the default stack")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)
}
