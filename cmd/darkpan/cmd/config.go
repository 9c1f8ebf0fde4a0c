package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	Root     string `json:"root" yaml:"root" mapstructure:"root"`                // Root directory of the repository
	LogLevel string `json:"logLevel" yaml:"log_level" mapstructure:"log_level"` // Log level for diagnostics on stderr
	Author   string `json:"author" yaml:"author" mapstructure:"author"`          // Author of added distributions
	Stack    string `json:"stack" yaml:"stack" mapstructure:"stack"`             // Stack to operate on, the default stack when empty
	User     string `json:"user" yaml:"user" mapstructure:"user"`                // Name recorded on stack history
	Metrics  bool   `json:"metrics" yaml:"metrics" mapstructure:"metrics"`       // Log metrics when a command completes
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// setDarkpanParams fills in the flags left unset on the command line
func (c *CLIConfig) setDarkpanParams(fs *pflag.FlagSet, flags *flagsT) {
	if !fs.Changed(rootDirFlag) && c.Root != "" {
		flags.root.dir = c.Root
	}
	if !fs.Changed(logLevelFlag) && c.LogLevel != "" {
		flags.root.logLevel = c.LogLevel
	}
	if !fs.Changed(metricsFlag) {
		flags.root.metrics = flags.root.metrics || c.Metrics
	}
	if flags.root.user == "" {
		flags.root.user = c.User
	}
	if flags.add.author == "" {
		flags.add.author = c.Author
	}
	if flags.stack.name == "" {
		flags.stack.name = c.Stack
	}
}
