// Package event reads the trigger event handed over by the CI platform.
//
// Events are read either from a JSON payload, or from the predefined
// variables of a GitLab CI job.
package event

import (
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/spf13/afero"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CI variables
const (
	EnvPipelineSource = "CI_PIPELINE_SOURCE"
	EnvSourceBranch   = "CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"
	EnvTargetBranch   = "CI_MERGE_REQUEST_TARGET_BRANCH_NAME"
	EnvCommitSHA      = "CI_COMMIT_SHA"
	EnvCommitMessage  = "CI_COMMIT_MESSAGE"
	EnvCommitAuthor   = "CI_COMMIT_AUTHOR"
	EnvCommitBranch   = "CI_COMMIT_BRANCH"

	// EnvEvent overrides the event type inferred from the pipeline source
	EnvEvent = "MONOREL_EVENT"

	// EnvApprovals carries the approval count of a merge request, e.g. as set by an approval webhook
	EnvApprovals = "MONOREL_APPROVALS"
)

// pipeline sources
const (
	sourceMergeRequest = "merge_request_event"
	sourcePush         = "push"
)

// FromEnv builds an event from CI variables
func FromEnv(getenv func(string) string) (model.Event, error) {
	e := model.Event{
		Type:          model.EventType(strings.TrimSpace(getenv(EnvEvent))),
		TargetBranch:  getenv(EnvTargetBranch),
		CommitID:      getenv(EnvCommitSHA),
		CommitMessage: getenv(EnvCommitMessage),
		Author:        model.ParseIdentity(getenv(EnvCommitAuthor)),
	}

	source := getenv(EnvPipelineSource)
	if e.Type == "" {
		switch source {
		case sourceMergeRequest:
			e.Type = model.EventMergeRequestApproved
		case sourcePush:
			e.Type = model.EventProtectedBranchPush
		default:
			// unsupported, e.g. schedule or web: the run is skipped
			e.Type = model.EventType(source)
		}
	}

	if e.Type == model.EventMergeRequestApproved {
		e.SourceBranch = getenv(EnvSourceBranch)
	} else {
		e.SourceBranch = getenv(EnvCommitBranch)
	}

	if raw := strings.TrimSpace(getenv(EnvApprovals)); raw != "" {
		approvals, err := strconv.Atoi(raw)
		if err != nil {
			return model.Event{}, status.ErrInvalidEvent.Wrapf("%s=%q: %v", EnvApprovals, raw, err)
		}
		e.Approvals = approvals
	}

	return e, Validate(e)
}

// Parse a JSON event payload
func Parse(data []byte) (model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return model.Event{}, status.ErrInvalidEvent.Wrap(err)
	}
	return e, Validate(e)
}

// FromFile reads a JSON event payload
func FromFile(fs afero.Fs, name string) (model.Event, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return model.Event{}, status.ErrInvalidEvent.Wrap(err)
	}
	return Parse(data)
}

// Validate an event payload.
//
// Unsupported event types are valid: they are skipped by the controller.
func Validate(e model.Event) error {
	var problems []string
	if e.Type == "" {
		problems = append(problems, "event type is required")
	}
	if e.CommitID == "" {
		problems = append(problems, "commit id is required")
	}
	if e.Approvals < 0 {
		problems = append(problems, fmt.Sprintf("approval count must not be negative, got %d", e.Approvals))
	}
	if e.Type.Gated() && e.SourceBranch == "" {
		problems = append(problems, fmt.Sprintf("a branch is required for %s events", e.Type))
	}
	if len(problems) > 0 {
		return status.ErrInvalidEvent.Wrapf("%s", strings.Join(problems, "; "))
	}
	return nil
}
