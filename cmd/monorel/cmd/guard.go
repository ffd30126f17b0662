package cmd

import (
	"os"
	"path/filepath"

	"github.com/oneconcern/monorel/pkg/event"
	"github.com/oneconcern/monorel/pkg/git"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/spf13/cobra"
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Tell if a commit was made by monorel",
	Long: `Tell if a commit was made by monorel.

Exits with status 0 when the pipeline should run, and with status 1 when the commit carries
the automation marker or trailer, so that CI rules can skip release commits:

	monorel guard || exit 0
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		message := monorelFlags.guard.message
		if message == "" {
			message = os.Getenv(event.EnvCommitMessage)
		}
		if message == "" {
			dir, err := filepath.Abs(monorelFlags.root.repo)
			if err != nil {
				wrapFatalln("repository", err)
				return
			}
			if message, err = git.NewRepository(dir).Run(cmd.Context(), "log", "-1", "--format=%B"); err != nil {
				wrapFatalln("read commit message", err)
				return
			}
		}

		if guard.New(cfg.AutomationCommitMarker, cfg.AutomationTrailer).Automated(message) {
			infoLogger.Println("automation commit: skipping")
			osExit(1)
			return
		}
		infoLogger.Println("human commit: running")
	},
}

func init() {
	addMessageFlag(guardCmd)
	rootCmd.AddCommand(guardCmd)
}
