// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/oneconcern/darkpan/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	rootDirFlag  = "root"
	logLevelFlag = "loglevel"
	metricsFlag  = "metrics"
)

type flagsT struct {
	root struct {
		dir      string
		logLevel string
		metrics  bool
		user     string
	}
	add struct {
		author string
		source string
	}
	stack struct {
		name       string
		from       string
		properties map[string]string
	}
	pkg struct {
		version string
	}
	create struct {
		defaultStack string
		sources      []string
	}
	recover struct {
		rollback bool
	}
	check struct {
		verify      bool
		concurrency int
	}
	core struct {
		withSize bool
	}
}

var darkpanFlags = flagsT{}

func addRootFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&darkpanFlags.root.dir, rootDirFlag, "r", ".", "The root directory of the repository")
	fs.StringVar(&darkpanFlags.root.logLevel, logLevelFlag, dlogger.LogLevelWarn, "The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	fs.BoolVar(&darkpanFlags.root.metrics, metricsFlag, false, "Log metrics about the command on completion")
	fs.StringVar(&darkpanFlags.root.user, "user", "", "The name recorded in the history of stacks. Defaults to $USER")
}

func addAuthorFlag(cmd *cobra.Command) string {
	author := "author"
	cmd.Flags().StringVarP(&darkpanFlags.add.author, author, "a", "", "The author id of the distribution, e.g. JEFF. Defaults to the repository default author")
	return author
}

func addSourceFlag(cmd *cobra.Command) string {
	source := "source"
	cmd.Flags().StringVar(&darkpanFlags.add.source, source, "", "The origin recorded with the distribution")
	return source
}

func addStackFlag(cmd *cobra.Command, usage string) string {
	stack := "stack"
	cmd.Flags().StringVarP(&darkpanFlags.stack.name, stack, "s", "", usage)
	return stack
}

func addFromStackFlag(cmd *cobra.Command) string {
	from := "from"
	cmd.Flags().StringVar(&darkpanFlags.stack.from, from, "", "The stack to fork. Defaults to the default stack")
	return from
}

func addPropertiesFlag(cmd *cobra.Command) string {
	properties := "property"
	cmd.Flags().StringToStringVarP(&darkpanFlags.stack.properties, properties, "p", nil, "Properties of the stack, as key=value pairs. An empty value removes a property")
	return properties
}

func addVersionFlag(cmd *cobra.Command) string {
	version := "version"
	cmd.Flags().StringVar(&darkpanFlags.pkg.version, version, "", "The minimum version of the package")
	return version
}

func addDefaultStackFlag(cmd *cobra.Command) string {
	stack := "default-stack"
	cmd.Flags().StringVar(&darkpanFlags.create.defaultStack, stack, "", "The name of the initial default stack. Defaults to master")
	return stack
}

func addUpstreamFlag(cmd *cobra.Command) string {
	upstream := "upstream"
	cmd.Flags().StringSliceVar(&darkpanFlags.create.sources, upstream, nil, "The upstream CPAN mirrors to pull packages from")
	return upstream
}

func addRollbackFlag(cmd *cobra.Command) string {
	rollback := "rollback"
	cmd.Flags().BoolVar(&darkpanFlags.recover.rollback, rollback, false, "Forget the distributions whose archive never made it to the repository")
	return rollback
}

func addSizeFlag(cmd *cobra.Command) string {
	size := "with-size"
	cmd.Flags().BoolVar(&darkpanFlags.core.withSize, size, false, "Report the total size of the distributions")
	return size
}

func addVerifyFlag(cmd *cobra.Command) string {
	verify := "verify"
	cmd.Flags().BoolVar(&darkpanFlags.check.verify, verify, false, "Compare the content of stored archives with their recorded digests")
	cmd.Flags().IntVar(&darkpanFlags.check.concurrency, "concurrency", 4, "The number of archives verified at once")
	return verify
}

func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		err := cmd.MarkFlagRequired(flag)
		if err != nil {
			err = cmd.MarkPersistentFlagRequired(flag)
		}
		if err != nil {
			wrapFatalln(fmt.Sprintf("error attempting to mark the required flag %q", flag), err)
			return
		}
	}
}
