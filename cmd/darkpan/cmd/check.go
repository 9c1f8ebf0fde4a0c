// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that recorded distributions and stored archives agree",
	Long: `Check that every distribution recorded in the repository has its archive stored, and that every stored archive
belongs to a distribution.

With the verify flag, the content of stored archives is compared with the digests recorded when they were added.
Exits with a failure when some problem is found.`,
	Example: `% darkpan check --verify
missing-archive J/JE/JEFF/Foo-1.0.tar.gz
pending-recovery J/JE/JEFF/Bar-2.0.tar.gz`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("checking repository", func(ctx context.Context, repo *repository.Repository) error {
			var opts []repository.CheckOption
			if darkpanFlags.check.verify {
				opts = append(opts, repository.VerifyArchives(darkpanFlags.check.concurrency))
			}
			problems, err := repo.Check(ctx, opts...)
			if err != nil {
				return err
			}
			for _, p := range problems {
				infoLogger.Printf("%s %s", p.Kind, p.Path)
			}
			if len(problems) > 0 {
				return status.ErrConsistencyViolation.WrapMessage("%d problem(s) found", len(problems))
			}
			infoLogger.Println("repository is consistent")
			return nil
		})
	},
}

func init() {
	addVerifyFlag(checkCmd)

	rootCmd.AddCommand(checkCmd)
}
