// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/docker/go-units"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/spf13/cobra"
)

type distributionDescription struct {
	model.Distribution `yaml:",inline"`
	PURL               string `yaml:"purl"`
	HumanSize          string `yaml:"humanSize"`
}

var distributionCmd = &cobra.Command{
	Use:     "distribution",
	Aliases: []string{"dist"},
	Short:   "Commands to inspect distributions",
}

var distributionGet = &cobra.Command{
	Use:   "get PATH",
	Short: "Get distribution info by path",
	Long: `Describe a distribution, with the packages it provides and its prerequisites.

The distribution is designated by its path in the repository, e.g. J/JE/JEFF/Foo-1.0.tar.gz.
Exits with ENOENT status when the distribution is not found.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("getting distribution", func(ctx context.Context, repo *repository.Repository) error {
			dist, found, err := repo.GetDistribution(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return status.ErrNotFound.WrapMessage("distribution %q", args[0])
			}
			return printYAML(distributionDescription{
				Distribution: dist,
				PURL:         dist.PURL(),
				HumanSize:    units.HumanSize(float64(dist.Size)),
			})
		})
	},
}

var distributionList = &cobra.Command{
	Use:   "list",
	Short: "List distributions",
	Long:  `List all the distributions in the repository.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("listing distributions", func(ctx context.Context, repo *repository.Repository) error {
			dists, err := repo.ListDistributions(ctx)
			if err != nil {
				return err
			}
			var total int64
			for _, dist := range dists {
				printDistributionLine(dist)
				total += dist.Size
			}
			if darkpanFlags.core.withSize {
				infoLogger.Printf("\n%d distributions, total size: %s", len(dists), units.HumanSize(float64(total)))
			}
			return nil
		})
	},
}

func init() {
	addSizeFlag(distributionList)

	distributionCmd.AddCommand(distributionGet)
	distributionCmd.AddCommand(distributionList)
	rootCmd.AddCommand(distributionCmd)
}
