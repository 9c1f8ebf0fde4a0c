// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Complete interrupted additions of distributions",
	Long: `Complete the additions of distributions which were recorded, but whose archive could not be stored.

With the rollback flag, these distributions are removed instead, unless their archive made it to the repository.
Distributions which cannot be recovered are reported and left as they are.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withRepository("recovering distributions", func(ctx context.Context, repo *repository.Repository) error {
			var opts []repository.RecoverOption
			if darkpanFlags.recover.rollback {
				opts = append(opts, repository.Rollback())
			}
			results, err := repo.Recover(ctx, opts...)
			for _, res := range results {
				switch {
				case res.Err != nil:
					infoLogger.Printf("%s: %v", res.Distribution, res.Err)
				case res.RolledBack:
					infoLogger.Printf("%s: removed", res.Distribution)
				default:
					infoLogger.Printf("%s: recovered", res.Distribution)
				}
			}
			if len(results) == 0 && err == nil {
				infoLogger.Println("nothing to recover")
			}
			return err
		})
	},
}

func init() {
	addRollbackFlag(recoverCmd)

	rootCmd.AddCommand(recoverCmd)
}
