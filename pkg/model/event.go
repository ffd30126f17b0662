package model

// EventType is the kind of pipeline event triggering a run
type EventType string

const (
	// EventMergeRequestApproved is emitted when a merge request receives an approval
	EventMergeRequestApproved EventType = "merge-request-approved"

	// EventProtectedBranchPush is emitted when commits land on the protected branch, i.e. after a merge
	EventProtectedBranchPush EventType = "protected-branch-push"
)

// Gated tells if this event type may start an engine at all
func (t EventType) Gated() bool {
	return t == EventMergeRequestApproved || t == EventProtectedBranchPush
}

// Event is the trigger payload handed over by the CI platform
type Event struct {
	Type          EventType `json:"type" yaml:"type"`
	SourceBranch  string    `json:"sourceBranch" yaml:"sourceBranch"`
	TargetBranch  string    `json:"targetBranch,omitempty" yaml:"targetBranch,omitempty"`
	CommitID      string    `json:"commit" yaml:"commit"`
	Approvals     int       `json:"approvals" yaml:"approvals"`
	CommitMessage string    `json:"commitMessage" yaml:"commitMessage"`
	Author        Identity  `json:"author" yaml:"author"`
}

// Branch the run operates on: the source branch of a merge request, or the pushed branch
func (e Event) Branch() string {
	return e.SourceBranch
}
