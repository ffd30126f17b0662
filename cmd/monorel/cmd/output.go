package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	units "github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// appFs is where reports and generated files are written, patched in tests
	appFs = afero.NewOsFs()
)

// Formatter renders data for humans
type Formatter interface {
	Format(io.Writer, interface{}) error
}

// FormatterFunc is a function rendering data
type FormatterFunc func(io.Writer, interface{}) error

// Format implements Formatter
func (f FormatterFunc) Format(w io.Writer, data interface{}) error {
	return f(w, data)
}

// render data in the output format selected by the --output flag
func render(w io.Writer, data interface{}, text FormatterFunc) error {
	switch monorelFlags.root.output {
	case outputJSON:
		buf, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(buf))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case outputText, "":
		return text.Format(w, data)
	default:
		return fmt.Errorf("unsupported output format %q", monorelFlags.root.output)
	}
}

func formatBump(w io.Writer, data interface{}) error {
	result := data.(*model.BumpResult)
	if len(result.Bumps) == 0 {
		_, err := fmt.Fprintln(w, "nothing to release")
		return err
	}
	fmt.Fprintf(w, "%s %s on %s\n", color.GreenString("released"), shortID(result.Commit), result.Branch)

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("PACKAGE", "FROM", "TO", "IMPACT", "CHANGES")
	for _, bump := range result.Bumps {
		table.AddRow(bump.Package, bump.From, color.CyanString(bump.To), bump.Impact, len(bump.Entries))
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func formatPublish(w io.Writer, data interface{}) error {
	result := data.(*model.PublishResult)
	table := uitable.New()
	table.AddRow("PACKAGE", "VERSION", "STATUS")
	for _, pv := range result.Published {
		table.AddRow(pv.Name, pv.Version, color.GreenString("published"))
	}
	for _, pv := range result.AlreadyPublished {
		table.AddRow(pv.Name, pv.Version, color.HiBlackString("already published"))
	}
	if len(result.Published)+len(result.AlreadyPublished) == 0 {
		_, err := fmt.Fprintf(w, "nothing to publish from %s\n", result.Commit)
		return err
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func formatRun(w io.Writer, data interface{}) error {
	run := data.(*model.Run)

	state := string(run.State)
	switch run.State {
	case model.StateSucceeded:
		state = color.GreenString(state)
	case model.StateFailed:
		state = color.RedString(state)
	case model.StateSkipped:
		state = color.YellowString(state)
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("run:", run.ID)
	table.AddRow("event:", fmt.Sprintf("%s on %s at %s", run.Event.Type, run.Event.Branch(), shortID(run.Event.CommitID)))
	table.AddRow("state:", state)
	if run.Engine != model.EngineNone {
		table.AddRow("engine:", run.Engine)
	}
	if run.Reason != "" {
		table.AddRow("reason:", run.Reason)
	}
	if run.Error != "" {
		table.AddRow("error:", fmt.Sprintf("%s (%s)", run.Error, run.Cause))
	}
	if !run.FinishedAt.IsZero() {
		table.AddRow("duration:", units.HumanDuration(run.Duration(run.FinishedAt)))
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, table)
	switch {
	case run.Bump != nil:
		if err := formatBump(&buf, run.Bump); err != nil {
			return err
		}
	case run.Publish != nil:
		if err := formatPublish(&buf, run.Publish); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func shortID(commit string) string {
	if len(commit) > 8 && !strings.ContainsAny(commit, "/@~^") {
		return commit[:8]
	}
	return commit
}

// writeReport saves the JSON report of a run
func writeReport(name string, run *model.Run) error {
	if name == "" {
		return nil
	}
	buf, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(appFs, name, append(buf, '\n'), 0o644)
}
