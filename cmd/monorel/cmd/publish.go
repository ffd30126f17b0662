package cmd

import (
	"context"

	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the released versions merged into the protected branch",
	Long: `Publish the released versions merged into the protected branch.

Every release tag reachable from the commit and not yet in the registry is published from its
tagged snapshot. Versions already in the registry are reported and left untouched, so the
command may safely run again after a failure.
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := newApp(cfg)
		if err != nil {
			wrapFatalln("setup", err)
			return
		}
		defer a.flush()

		engine, err := a.publishEngine()
		if err != nil {
			wrapFatalln("setup", err)
			return
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		defer cancel()

		commit := monorelFlags.publish.commit
		result, err := withLease(ctx, a, model.Event{Type: model.EventProtectedBranchPush, SourceBranch: cfg.ProtectedBranch, CommitID: commit},
			func(ctx context.Context) (*model.PublishResult, error) {
				return engine.Publish(ctx, commit)
			})
		if result != nil {
			if rerr := render(cmd.OutOrStdout(), result, formatPublish); rerr != nil {
				wrapFatalln("print publication", rerr)
				return
			}
		}
		if err != nil {
			a.flush()
			wrapFatalWithCodef(exitFailure, "publish %s: %v (%s)", commit, err, status.Cause(err))
		}
	},
}

func init() {
	addCommitFlag(publishCmd)
	addBuildCommandFlag(publishCmd)
	addOutputFlag(publishCmd)
	rootCmd.AddCommand(publishCmd)
}
