package model

// ChangelogEntry is one line of a changelog section, inferred from a commit
type ChangelogEntry struct {
	Commit  string `json:"commit" yaml:"commit"`
	Impact  Impact `json:"impact" yaml:"impact"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	Scope   string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Summary string `json:"summary" yaml:"summary"`
}

// Bump describes the version increment of a single package
type Bump struct {
	Package string           `json:"package" yaml:"package"`
	From    string           `json:"from" yaml:"from"`
	To      string           `json:"to" yaml:"to"`
	Impact  Impact           `json:"impact" yaml:"impact"`
	Entries []ChangelogEntry `json:"entries" yaml:"entries"`
}

// BumpResult is the outcome of a successful bump: one commit, one tag per bumped package
type BumpResult struct {
	Branch string       `json:"branch" yaml:"branch"`
	Commit string       `json:"commit" yaml:"commit"`
	Bumps  []Bump       `json:"bumps" yaml:"bumps"`
	Tags   []ReleaseTag `json:"tags" yaml:"tags"`
}

// PublishResult is the outcome of a publish run
type PublishResult struct {
	Commit           string           `json:"commit" yaml:"commit"`
	Published        []PackageVersion `json:"published" yaml:"published"`
	AlreadyPublished []PackageVersion `json:"alreadyPublished,omitempty" yaml:"alreadyPublished,omitempty"`
}
