// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Commands to query the indexes of upstream sources",
	Long: `Commands to query the package indexes of the upstream sources configured for the repository.

Indexes are downloaded on first use, then cached until invalidated.`,
}

var indexLocate = &cobra.Command{
	Use:   "locate PACKAGE",
	Short: "Locate the distribution providing a package upstream",
	Long: `Locate the upstream distribution providing a package, at the version given by the version flag or later.

Exits with ENOENT status when no upstream source provides the package.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("locating package", func(ctx context.Context, repo *repository.Repository) error {
			entry, found, err := repo.Locate(ctx, args[0], darkpanFlags.pkg.version)
			if err != nil {
				return err
			}
			if !found {
				return status.ErrNotFound.WrapMessage("package %q upstream", args[0])
			}
			infoLogger.Printf("%s %s", entry.PackageSpec, entry.URL())
			return nil
		})
	},
}

var indexSearch = &cobra.Command{
	Use:   "search PREFIX",
	Short: "List upstream packages by name prefix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("searching packages", func(ctx context.Context, repo *repository.Repository) error {
			entries, err := repo.Search(ctx, args[0])
			if err != nil {
				return err
			}
			for _, entry := range entries {
				infoLogger.Printf("%s %s", entry.PackageSpec, entry.Distribution)
			}
			return nil
		})
	},
}

var indexInvalidate = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop the cached upstream indexes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("invalidating indexes", func(_ context.Context, repo *repository.Repository) error {
			return repo.InvalidateIndex()
		})
	},
}

func init() {
	addVersionFlag(indexLocate)

	indexCmd.AddCommand(indexLocate)
	indexCmd.AddCommand(indexSearch)
	indexCmd.AddCommand(indexInvalidate)
	rootCmd.AddCommand(indexCmd)
}
