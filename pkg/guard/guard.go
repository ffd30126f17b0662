// Package guard suppresses version bumps triggered by the release automation's own commits.
package guard

import (
	"strings"

	"github.com/oneconcern/monorel/pkg/model"
)

// Defaults
const (
	DefaultMarker  = "chore: publish"
	DefaultTrailer = "Release-Bot"
)

// Guard recognizes automation-authored commits, by their message only
type Guard struct {
	// Marker prefixes the message of automation commits
	Marker string

	// Trailer is a git trailer key carried by automation commits. Empty disables the check.
	Trailer string
}

// New guard, with defaults for empty values
func New(marker, trailer string) Guard {
	if marker == "" {
		marker = DefaultMarker
	}
	return Guard{Marker: marker, Trailer: trailer}
}

// Automated tells if a commit message was produced by the release automation
func (g Guard) Automated(message string) bool {
	if g.Marker != "" && strings.HasPrefix(strings.TrimLeft(message, " \t\r\n"), g.Marker) {
		return true
	}
	if g.Trailer == "" {
		return false
	}
	_, ok := model.Trailers(message)[g.Trailer]
	return ok
}

// ShouldRun tells if an event may trigger a version bump: it is false
// for events triggered by an automation commit, whatever their approvals.
func (g Guard) ShouldRun(event model.Event) bool {
	return !g.Automated(event.CommitMessage)
}

// Message formats the message of an automation commit, so that Automated recognizes it
func (g Guard) Message(released []model.PackageVersion, body string) string {
	parts := make([]string, 0, len(released))
	for _, pv := range released {
		parts = append(parts, pv.String())
	}
	var b strings.Builder
	b.WriteString(g.Marker)
	b.WriteString(" ")
	b.WriteString(strings.Join(parts, ", "))
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	if g.Trailer != "" {
		b.WriteString("\n\n")
		b.WriteString(g.Trailer)
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
