// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"strings"

	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull URL|PACKAGE",
	Short: "Pull a distribution from an upstream repository",
	Long: `Pull a distribution from an upstream repository.

The distribution is given either by the URL of its archive on some CPAN mirror,
or by the name of a package it provides: the package is then located in the indexes of the upstream sources
configured for the repository.

When the distribution has already been pulled, it is only registered on the requested stack.`,
	Example: `% darkpan pull https://www.cpan.org/authors/id/E/ET/ETHER/Moose-2.2206.tar.gz
% darkpan pull --version 2.2 --stack dev Moose`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("pulling distribution", func(ctx context.Context, repo *repository.Repository) error {
			var opts []repository.AddOption
			if darkpanFlags.stack.name != "" {
				opts = append(opts, repository.WithStack(darkpanFlags.stack.name))
			}

			var (
				dist model.Distribution
				err  error
			)
			if strings.Contains(args[0], "://") {
				dist, err = repo.Pull(ctx, args[0], opts...)
			} else {
				dist, err = repo.PullPackage(ctx, args[0], darkpanFlags.pkg.version, opts...)
			}
			if err != nil {
				return err
			}
			printDistributionLine(dist)
			return nil
		})
	},
}

func init() {
	addStackFlag(pullCmd, "The stack to register the packages on")
	addVersionFlag(pullCmd)

	rootCmd.AddCommand(pullCmd)
}
