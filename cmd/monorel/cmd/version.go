package cmd

import (
	"io"
	"runtime"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X github.com/oneconcern/monorel/cmd/monorel/cmd.Version=..."
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

// VersionInfo describes the build of the binary
type VersionInfo struct {
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	BuildDate string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GitCommit string `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitState  string `json:"gitState,omitempty" yaml:"gitState,omitempty"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

// NewVersionInfo reports a "dev" version for binaries built without ldflags
func NewVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GitState:  GitState,
		GoVersion: runtime.Version(),
	}
	if info.Version == "" {
		info.Version = "dev"
	} else if info.GitState == "" {
		info.GitState = "clean"
	}
	return info
}

func (v VersionInfo) String() string {
	table := uitable.New()
	table.AddRow("Version:", v.Version)
	table.AddRow("Build date:", v.BuildDate)
	table.AddRow("Commit:", v.GitCommit)
	table.AddRow("Working tree:", v.GitState)
	table.AddRow("Go:", v.GoVersion)
	return table.String() + "\n"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of monorel",
	Long: `Prints the version of monorel, with the date and commit it was built from.

The working tree is "dirty" when the binary was built with uncommitted changes.
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := render(cmd.OutOrStdout(), NewVersionInfo(), func(w io.Writer, data interface{}) error {
			_, err := io.WriteString(w, data.(VersionInfo).String())
			return err
		}); err != nil {
			wrapFatalln("print version", err)
		}
	},
}

func init() {
	addOutputFlag(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
