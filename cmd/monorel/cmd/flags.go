package cmd

import (
	"time"

	"github.com/oneconcern/monorel/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type flagsT struct {
	root struct {
		configFile string
		repo       string
		output     string
	}
	bump struct {
		branch string
		since  string
		dryRun bool
	}
	publish struct {
		commit string
	}
	run struct {
		eventFile string
	}
	guard struct {
		message string
	}
	config struct {
		file string
	}
}

var monorelFlags = flagsT{}

// boundFlags override configuration keys, once set on the command line.
// A key may be bound to a flag of several commands.
var boundFlags = map[string][]*pflag.Flag{}

func bindFlag(flags *pflag.FlagSet, name, key string) {
	boundFlags[key] = append(boundFlags[key], flags.Lookup(name))
}

// boundFlag returns the flag overriding a key: the one set on the command line, if any
func boundFlag(key string) *pflag.Flag {
	candidates := boundFlags[key]
	for _, flag := range candidates {
		if flag.Changed {
			return flag
		}
	}
	return candidates[0]
}

func addConfigFileFlag(cmd *cobra.Command) string {
	configFile := "config"
	cmd.PersistentFlags().StringVar(&monorelFlags.root.configFile, configFile, "",
		"Config file (defaults to $MONOREL_CONFIG, or .monorel.yaml in the current directory, $HOME/.monorel or /etc/monorel)")
	return configFile
}

func addRepoFlag(cmd *cobra.Command) string {
	repo := "repo"
	cmd.PersistentFlags().StringVar(&monorelFlags.root.repo, repo, ".", "The root directory of the git repository")
	return repo
}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "log-level"
	cmd.PersistentFlags().String(logLevel, dlogger.LogLevelInfo, "The logging level: debug, info, warn, error or none")
	bindFlag(cmd.PersistentFlags(), logLevel, "logLevel")
	return logLevel
}

func addProtectedBranchFlag(cmd *cobra.Command) string {
	protected := "protected-branch"
	cmd.PersistentFlags().String(protected, "main", "The branch changed only by human merges")
	bindFlag(cmd.PersistentFlags(), protected, "protectedBranch")
	return protected
}

func addRemoteFlag(cmd *cobra.Command) string {
	remote := "remote"
	cmd.PersistentFlags().String(remote, "origin", "The git remote to fetch from and push to")
	bindFlag(cmd.PersistentFlags(), remote, "remote")
	return remote
}

func addTimeoutFlag(cmd *cobra.Command) string {
	timeout := "timeout"
	cmd.PersistentFlags().Duration(timeout, 30*time.Minute, "Wall-clock limit of engine runs")
	bindFlag(cmd.PersistentFlags(), timeout, "timeout")
	return timeout
}

func addMetricsTextfileFlag(cmd *cobra.Command) string {
	textfile := "metrics-textfile"
	cmd.PersistentFlags().String(textfile, "", "Write run metrics to this file, in the prometheus text format")
	bindFlag(cmd.PersistentFlags(), textfile, "metricsTextfile")
	return textfile
}

func addOutputFlag(cmd *cobra.Command) string {
	output := "output"
	cmd.Flags().StringVarP(&monorelFlags.root.output, output, "o", outputText, "The output format: text, json or yaml")
	return output
}

func addBranchFlag(cmd *cobra.Command) string {
	branch := "branch"
	cmd.Flags().StringVar(&monorelFlags.bump.branch, branch, "", "The feature branch to bump (defaults to the current branch)")
	return branch
}

func addSinceFlag(cmd *cobra.Command) string {
	since := "since"
	cmd.Flags().StringVar(&monorelFlags.bump.since, since, "",
		"Start the history of every package from this tag, instead of its last release")
	return since
}

func addDryRunFlag(cmd *cobra.Command) string {
	dryRun := "dry-run"
	cmd.Flags().BoolVar(&monorelFlags.bump.dryRun, dryRun, false, "Compute the bumps without writing anything")
	return dryRun
}

func addBuildCommandFlag(cmd *cobra.Command) string {
	build := "build-command"
	cmd.Flags().String(build, "", "Shell command validating a release")
	bindFlag(cmd.Flags(), build, "buildCommand")
	return build
}

func addCommitFlag(cmd *cobra.Command) string {
	commit := "commit"
	cmd.Flags().StringVar(&monorelFlags.publish.commit, commit, "HEAD", "The commit of the protected branch to publish from")
	return commit
}

func addEventFileFlag(cmd *cobra.Command) string {
	eventFile := "event"
	cmd.Flags().StringVar(&monorelFlags.run.eventFile, eventFile, "",
		"A JSON file with the trigger event. Defaults to reading the event from CI variables")
	return eventFile
}

func addReportFlag(cmd *cobra.Command) string {
	report := "report"
	cmd.Flags().String(report, "", "Write the JSON run report to this file")
	bindFlag(cmd.Flags(), report, "report")
	return report
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVar(&monorelFlags.guard.message, message, "",
		"The commit message to check. Defaults to $CI_COMMIT_MESSAGE, then to the message of HEAD")
	return message
}

func addConfigOutputFlag(cmd *cobra.Command) string {
	file := "file"
	cmd.Flags().StringVar(&monorelFlags.config.file, file, "", "Write the configuration to this file instead of stdout")
	return file
}
