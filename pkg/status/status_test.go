package status

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCause(t *testing.T) {
	for _, tc := range []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{fmt.Errorf("boom"), "Internal"},
		{ErrAuth.Wrapf("token missing"), "AuthError"},
		{fmt.Errorf("bump: %w", ErrBuild.Wrapf("exit status 1")), "BuildError"},
		{ErrNothingToRelease, "NothingToRelease"},
		{ErrPublish.Wrap(fmt.Errorf("non-fast-forward")), "PublishError"},
		{ErrPartialPublish.Wrap(ErrPublish), "PartialPublishFailure"},
		{ErrBuild.Wrap(context.DeadlineExceeded), "Timeout"},
		{ErrTimeout.Wrapf("build exceeded 1m0s"), "Timeout"},
		{ErrPartialPublish.Wrap(ErrTimeout.Wrap(context.DeadlineExceeded)), "PartialPublishFailure"},
	} {
		assert.Equal(t, tc.expected, Cause(tc.err), "for %v", tc.err)
	}
}

func TestFatal(t *testing.T) {
	assert.False(t, Fatal(nil))
	assert.False(t, Fatal(ErrNothingToRelease))
	assert.False(t, Fatal(fmt.Errorf("core@1.0.0: %w", ErrAlreadyPublished)))
	assert.True(t, Fatal(ErrAuth))
	assert.True(t, Fatal(ErrPartialPublish))
	assert.True(t, Fatal(fmt.Errorf("whatever")))
}
