// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/oneconcern/darkpan/pkg/dlogger"
	"github.com/oneconcern/darkpan/pkg/metrics"
	"github.com/oneconcern/darkpan/pkg/metrics/exporters/zaplog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "darkpan",
	Short: "darkpan hosts a private repository of Perl distributions",
	Long: `darkpan hosts a private, CPAN-like repository of Perl distributions.

Distributions are added from local archives or pulled from upstream CPAN mirrors.
The packages they provide are pinned onto stacks: every stack is a consistent set of package versions,
with its own history.

The repository is laid out like a CPAN mirror, so that the usual installers may consume it.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		l, err := dlogger.GetLogger(darkpanFlags.root.logLevel, dlogger.WithConsole(), dlogger.WithOutput("stderr"))
		if err != nil {
			wrapFatalln("invalid log level", err)
			return
		}
		logger = l

		if darkpanFlags.root.metrics {
			exporter := zaplog.NewExporter(dlogger.MustGetLogger(dlogger.LogLevelInfo, dlogger.WithConsole(), dlogger.WithOutput("stderr")))
			if err = metrics.Init(metrics.WithExporter(exporter)); err != nil {
				wrapFatalln("initializing metrics", err)
				return
			}
		}
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if darkpanFlags.root.metrics {
			metrics.Flush()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	cliConfig *CLIConfig
	logger = zap.NewNop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addRootFlags(rootCmd.PersistentFlags())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("root", ".")
	viper.SetDefault("log_level", dlogger.LogLevelWarn)
	viper.SetDefault("author", "")
	viper.SetDefault("stack", "")
	viper.SetDefault("user", os.Getenv("USER"))
	viper.SetDefault("metrics", false)

	if os.Getenv("DARKPAN_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("DARKPAN_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.darkpan")
		viper.AddConfigPath("/etc/darkpan")
		viper.SetConfigName("darkpan")
	}

	viper.SetEnvPrefix("darkpan")
	viper.AutomaticEnv() // read in environment variables that match
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	cliConfig, err = newConfig()
	if err != nil {
		logFatalln(err)
		return
	}
	cliConfig.setDarkpanParams(rootCmd.PersistentFlags(), &darkpanFlags)
}
