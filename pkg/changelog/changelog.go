// Package changelog infers the version impact of commits and renders changelog sections.
//
// The default classifier follows the conventional commits format. Other
// conventions may be plugged into the bump engine through the Classifier interface.
package changelog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oneconcern/monorel/pkg/model"
)

// Section titles
const (
	SectionBreaking    = "BREAKING CHANGES"
	SectionFeatures    = "Features"
	SectionFixes       = "Bug Fixes"
	SectionPerformance = "Performance Improvements"
	SectionReverts     = "Reverts"
)

// DefaultTitle heads a new changelog
const DefaultTitle = "# Changelog"

var sectionOrder = []string{SectionBreaking, SectionFeatures, SectionFixes, SectionPerformance, SectionReverts}

// Classifier infers the impact of a commit and its changelog entry.
//
// Commits with no impact do not show up in changelogs.
type Classifier interface {
	Classify(commit model.Commit) model.ChangelogEntry
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(model.Commit) model.ChangelogEntry

// Classify a commit
func (f ClassifierFunc) Classify(commit model.Commit) model.ChangelogEntry {
	return f(commit)
}

var (
	rexHeader   = regexp.MustCompile(`^(?P<type>[A-Za-z]+)(?:\((?P<scope>[^)]*)\))?(?P<bang>!)?:\s*(?P<summary>.+)$`)
	rexBreaking = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:\s*`)
)

// Conventional classifies commits following the conventional commits format:
//
//	feat: ...                    minor
//	fix: ..., perf: ..., revert: ...  patch
//	type!: ... or a BREAKING CHANGE footer  major
//
// Any other commit has no impact.
type Conventional struct{}

var _ Classifier = Conventional{}

// Classify a commit
func (Conventional) Classify(commit model.Commit) model.ChangelogEntry {
	subject := commit.Subject()
	entry := model.ChangelogEntry{
		Commit:  commit.ID,
		Summary: subject,
	}

	m := rexHeader.FindStringSubmatch(subject)
	if m == nil {
		return entry
	}
	kind := strings.ToLower(m[rexHeader.SubexpIndex("type")])
	entry.Scope = strings.TrimSpace(m[rexHeader.SubexpIndex("scope")])
	entry.Summary = strings.TrimSpace(m[rexHeader.SubexpIndex("summary")])

	switch kind {
	case "feat":
		entry.Impact, entry.Section = model.ImpactMinor, SectionFeatures
	case "fix":
		entry.Impact, entry.Section = model.ImpactPatch, SectionFixes
	case "perf":
		entry.Impact, entry.Section = model.ImpactPatch, SectionPerformance
	case "revert":
		entry.Impact, entry.Section = model.ImpactPatch, SectionReverts
	}

	if m[rexHeader.SubexpIndex("bang")] != "" || rexBreaking.MatchString(body(commit.Message)) {
		entry.Impact, entry.Section = model.ImpactMajor, SectionBreaking
	}
	return entry
}

func body(message string) string {
	message = strings.TrimSpace(strings.ReplaceAll(message, "\r\n", "\n"))
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[i+1:]
	}
	return ""
}

// Render a changelog section for a version. Entries without impact are skipped.
func Render(version string, date time.Time, entries []model.ChangelogEntry) string {
	grouped := make(map[string][]model.ChangelogEntry)
	for _, entry := range entries {
		if entry.Impact == model.ImpactNone {
			continue
		}
		section := entry.Section
		if section == "" {
			section = defaultSection(entry.Impact)
		}
		grouped[section] = append(grouped[section], entry)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n", version, date.UTC().Format("2006-01-02"))

	var extra []string
	for section := range grouped {
		if !contains(sectionOrder, section) {
			extra = append(extra, section)
		}
	}
	sort.Strings(extra)
	sections := append(append([]string{}, sectionOrder...), extra...)
	for _, section := range sections {
		list := grouped[section]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", section)
		for _, entry := range list {
			b.WriteString("* ")
			if entry.Scope != "" {
				fmt.Fprintf(&b, "**%s:** ", entry.Scope)
			}
			b.WriteString(entry.Summary)
			if entry.Commit != "" {
				fmt.Fprintf(&b, " (%s)", model.ShortID(entry.Commit))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func defaultSection(impact model.Impact) string {
	switch impact {
	case model.ImpactMajor:
		return SectionBreaking
	case model.ImpactMinor:
		return SectionFeatures
	default:
		return SectionFixes
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// Prepend inserts a rendered section at the top of an existing changelog,
// below its top-level title if any. An empty changelog gets a default title.
func Prepend(existing, section string) string {
	section = strings.TrimRight(section, "\n") + "\n"
	existing = strings.ReplaceAll(existing, "\r\n", "\n")
	if strings.TrimSpace(existing) == "" {
		return DefaultTitle + "\n\n" + section
	}

	if !strings.HasPrefix(existing, "# ") {
		return section + "\n" + existing
	}

	title, rest, _ := strings.Cut(existing, "\n")
	rest = strings.TrimLeft(rest, "\n")
	if rest == "" {
		return title + "\n\n" + section
	}
	return title + "\n\n" + section + "\n" + rest
}
