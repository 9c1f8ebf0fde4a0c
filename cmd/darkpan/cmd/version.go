// Copyright © 2018 One Concern

package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set at build time
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of darkpan",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		infoLogger.Printf("darkpan version %s", Version)
		if GitCommit != "" {
			infoLogger.Printf("commit: %s", GitCommit)
		}
		if BuildDate != "" {
			infoLogger.Printf("built: %s", BuildDate)
		}
		infoLogger.Printf("go: %s", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
