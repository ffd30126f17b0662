package cmd

import (
	"os"

	"github.com/oneconcern/monorel/pkg/event"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Handle a pipeline event",
	Long: `Handle a pipeline event: decide whether an engine runs, then run it to completion.

An approved merge request bumps the versions of its feature branch. A push to the protected
branch publishes the released versions. Any other event, an automation commit or a merge request
lacking approvals is skipped.

The event is read from the CI variables of the job, unless a JSON event file is given:

	{"type": "merge-request-approved", "sourceBranch": "feature/x", "targetBranch": "main",
	 "commit": "4f2a9c1", "approvals": 2}

The command exits with a non-zero status when the run fails.
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		var (
			evt model.Event
			err error
		)
		if monorelFlags.run.eventFile != "" {
			evt, err = event.FromFile(appFs, monorelFlags.run.eventFile)
		} else {
			evt, err = event.FromEnv(os.Getenv)
		}
		if err != nil {
			wrapFatalln("read event", err)
			return
		}

		a, err := newApp(cfg)
		if err != nil {
			wrapFatalln("setup", err)
			return
		}
		defer a.flush()

		ctrl, err := a.controller(cmd.Context())
		if err != nil {
			wrapFatalln("setup", err)
			return
		}

		run := ctrl.Handle(cmd.Context(), evt)

		if err = writeReport(cfg.Report, run); err != nil {
			wrapFatalln("write report", err)
			return
		}
		if err = render(cmd.OutOrStdout(), run, formatRun); err != nil {
			wrapFatalln("print run", err)
			return
		}
		if run.State == model.StateFailed {
			a.flush()
			wrapFatalWithCodef(exitFailure, "run %s failed: %s", run.ID, run.Error)
		}
	},
}

func init() {
	addEventFileFlag(runCmd)
	addReportFlag(runCmd)
	addBuildCommandFlag(runCmd)
	addOutputFlag(runCmd)
	rootCmd.AddCommand(runCmd)
}
