// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/oneconcern/monorel/pkg/config"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "monorel",
	Short: "Monorel releases the packages of a monorepo from CI pipelines",
	Long: `Monorel releases the packages of a monorepo from CI pipelines.

When a merge request is approved, monorel bumps the version of every package changed on the
feature branch, according to its conventional commits, and pushes a single release commit
with one release tag per package back to that branch.

When the merge request lands on the protected branch, monorel publishes every tagged version
which is not yet in the registry, built from the exact tagged snapshot.

Release commits carry a marker, so that they never trigger another bump.
`,
	SilenceUsage: true,
}

// settings hold the layered configuration: defaults, config file, environment and flags
var settings *viper.Viper

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Println(err)
		stop()
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFileFlag(rootCmd)
	addRepoFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addProtectedBranchFlag(rootCmd)
	addRemoteFlag(rootCmd)
	addTimeoutFlag(rootCmd)
	addMetricsTextfileFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	settings = config.New()
	switch {
	case monorelFlags.root.configFile != "":
		settings.SetConfigFile(monorelFlags.root.configFile)
	case os.Getenv("MONOREL_CONFIG") != "":
		settings.SetConfigFile(os.Getenv("MONOREL_CONFIG"))
	default:
		settings.AddConfigPath(".")
		settings.AddConfigPath("$HOME/.monorel")
		settings.AddConfigPath("/etc/monorel")
		settings.SetConfigName(".monorel")
		settings.SetConfigType("yaml")
	}

	for key := range boundFlags {
		if err := settings.BindPFlag(key, boundFlag(key)); err != nil {
			wrapFatalln("bind flag to "+key, err)
			return
		}
	}

	err := settings.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Println("Using config file:", settings.ConfigFileUsed())
	case errors.As(err, &notFound):
	default:
		wrapFatalln("read config file", err)
	}
}

// loadConfig decodes and validates the configuration
func loadConfig() *config.Config {
	cfg, err := config.Load(settings)
	if err != nil {
		wrapFatalln("configuration", err)
		return nil
	}
	return cfg
}
