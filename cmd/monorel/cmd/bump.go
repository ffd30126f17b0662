package cmd

import (
	"context"
	"os"
	"time"

	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var bumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Bump the versions of the packages changed on a feature branch",
	Long: `Bump the versions of the packages changed on a feature branch.

Each package changed since its last release is bumped according to its conventional commits.
Manifests and changelogs are updated in a single release commit, tagged once per package,
and pushed to the branch. Use --dry-run to only print the planned bumps.

When the push token variable is set, the token is installed on the remote for the duration
of the command.
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := newApp(cfg)
		if err != nil {
			wrapFatalln("setup", err)
			return
		}
		defer a.flush()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		defer cancel()

		branch := monorelFlags.bump.branch
		if branch == "" {
			if branch, err = a.repo.CurrentBranch(ctx); err != nil {
				wrapFatalln("current branch", err)
				return
			}
		}

		result, err := withLease(ctx, a, model.Event{Type: model.EventMergeRequestApproved, SourceBranch: branch},
			func(ctx context.Context) (*model.BumpResult, error) {
				return a.bumpEngine(monorelFlags.bump.dryRun).Bump(ctx, branch, monorelFlags.bump.since)
			})
		switch {
		case errors.Is(err, status.ErrNothingToRelease):
			infoLogger.Printf("nothing to release on %s", branch)
			return
		case err != nil:
			a.flush()
			wrapFatalWithCodef(exitFailure, "bump %s: %v (%s)", branch, err, status.Cause(err))
			return
		}

		if err = render(cmd.OutOrStdout(), result, formatBump); err != nil {
			wrapFatalln("print bump", err)
		}
	},
}

// withLease runs fn with the push credential installed, when a token is available
func withLease[T any](ctx context.Context, a *app, evt model.Event, fn func(context.Context) (T, error)) (result T, err error) {
	if os.Getenv(a.cfg.Credential.TokenEnv) == "" {
		return fn(ctx)
	}
	broker, err := a.broker(ctx)
	if err != nil {
		return result, err
	}
	run := model.NewRun(evt, time.Now())
	cred, err := broker.Acquire(ctx, run)
	if err != nil {
		return result, err
	}
	defer func() {
		if rerr := cred.Release(context.WithoutCancel(ctx)); rerr != nil {
			a.l.Warn("could not release credential", zap.String("run_id", run.ID), zap.Error(rerr))
			err = multierr.Append(err, rerr)
		}
	}()
	return fn(ctx)
}

func init() {
	addBranchFlag(bumpCmd)
	addSinceFlag(bumpCmd)
	addDryRunFlag(bumpCmd)
	addBuildCommandFlag(bumpCmd)
	addOutputFlag(bumpCmd)
	rootCmd.AddCommand(bumpCmd)
}
