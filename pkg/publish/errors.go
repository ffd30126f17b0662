package publish

import (
	"fmt"
	"strings"

	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
)

// PartialPublishFailure reports a publication which stopped after some packages were published.
//
// It matches status.ErrPartialPublish, as well as the class of the failure which stopped it.
type PartialPublishFailure struct {
	Published []model.PackageVersion
	Failed    []model.PackageVersion
	Err       error
}

func (e *PartialPublishFailure) Error() string {
	return fmt.Sprintf("%v: published [%s], failed [%s]: %v",
		status.ErrPartialPublish, join(e.Published), join(e.Failed), e.Err)
}

// Unwrap yields the sentinel along with the underlying failure
func (e *PartialPublishFailure) Unwrap() error {
	return status.ErrPartialPublish.Wrap(e.Err)
}

func join(pvs []model.PackageVersion) string {
	names := make([]string, 0, len(pvs))
	for _, pv := range pvs {
		names = append(names, pv.String())
	}
	return strings.Join(names, ", ")
}
