package cmd

import (
	"bytes"

	"github.com/oneconcern/monorel/pkg/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the monorel configuration",
	Long: `Commands to manage the monorel configuration.

The configuration is layered: defaults, then the config file, then MONOREL_* environment
variables (e.g. MONOREL_PROTECTEDBRANCH, MONOREL_REGISTRY_KIND), then command line flags.
`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			wrapFatalln("serialize config to yaml", err)
			return
		}
		_ = enc.Close()
		_, _ = cmd.OutOrStdout().Write(buf.Bytes())
	},
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a documented config file with all defaults",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := config.Generate()
		if err != nil {
			wrapFatalln("generate config", err)
			return
		}
		if monorelFlags.config.file == "" {
			_, _ = cmd.OutOrStdout().Write(out)
			return
		}
		if err = afero.WriteFile(appFs, monorelFlags.config.file, out, 0o644); err != nil {
			wrapFatalln("write config file", err)
			return
		}
		infoLogger.Println("config written to", monorelFlags.config.file)
	},
}

func init() {
	addConfigOutputFlag(configGenerateCmd)
	configCmd.AddCommand(configShowCmd, configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}
