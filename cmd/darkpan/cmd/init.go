// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new repository",
	Long: `Create a new repository in the root directory, with an empty default stack.

Exits with EEXIST status when a repository exists there already.`,
	Example: `% darkpan init --root /srv/darkpan --default-stack production --upstream https://www.cpan.org --author ACME`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Default()
		if darkpanFlags.create.defaultStack != "" {
			cfg.DefaultStack = darkpanFlags.create.defaultStack
		}
		if len(darkpanFlags.create.sources) > 0 {
			cfg.Sources = darkpanFlags.create.sources
		}
		cfg.DefaultAuthor = darkpanFlags.add.author

		repo, err := repository.Init(context.Background(), darkpanFlags.root.dir,
			append(repositoryOptions(), repository.WithConfig(cfg))...,
		)
		if err != nil {
			fatalOnRepoError("initializing repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		infoLogger.Printf("initialized repository in %s, with default stack %q", repo.Root(), repo.Config().DefaultStack)
	},
}

func init() {
	addDefaultStackFlag(initCmd)
	addUpstreamFlag(initCmd)
	addAuthorFlag(initCmd)

	rootCmd.AddCommand(initCmd)
}
