// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add ARCHIVE...",
	Short: "Add local distribution archives to the repository",
	Long: `Add local distribution archives to the repository.

Archives are stored under the directory of their author. The packages they provide are recorded,
and registered on a stack when the stack flag is given.

Exits with EEXIST status when a distribution exists already under the same path.`,
	Example: `% darkpan add --author JEFF Foo-Bar-1.02.tar.gz
J/JE/JEFF/Foo-Bar-1.02.tar.gz (12.3kB): Foo::Bar@1.02`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("adding distribution", func(ctx context.Context, repo *repository.Repository) error {
			opts := make([]repository.AddOption, 0, 2)
			if darkpanFlags.add.source != "" {
				opts = append(opts, repository.WithSource(darkpanFlags.add.source))
			}
			if darkpanFlags.stack.name != "" {
				opts = append(opts, repository.WithStack(darkpanFlags.stack.name))
			}

			for _, archive := range args {
				t0 := time.Now()
				dist, err := repo.Add(ctx, archive, darkpanFlags.add.author, opts...)
				if err != nil {
					return err
				}
				printDistributionLine(dist)
				logger.Sugar().Debugf("added %s in %v", dist.Path, time.Since(t0))
			}
			return nil
		})
	},
}

func printDistributionLine(dist model.Distribution) {
	specs := make([]string, 0, len(dist.Packages))
	for _, pkg := range dist.Packages {
		specs = append(specs, pkg.String())
	}
	if len(specs) == 0 {
		specs = append(specs, "no package")
	}
	infoLogger.Printf("%s (%s): %s", dist.Path, units.HumanSize(float64(dist.Size)), strings.Join(specs, ", "))
}

func init() {
	addAuthorFlag(addCmd)
	addSourceFlag(addCmd)
	addStackFlag(addCmd, "The stack to register the packages on")

	rootCmd.AddCommand(addCmd)
}
