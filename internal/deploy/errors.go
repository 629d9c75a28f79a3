package deploy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuntimeUnavailable marks deployments rejected because the
	// container runtime did not answer the pre-flight ping.
	ErrRuntimeUnavailable = errors.New("deploy: container runtime unavailable")

	// ErrStartFailed marks deployments whose container could not be
	// started after the previous instance was already removed.
	ErrStartFailed = errors.New("deploy: container start failed")
)

// BuildError reports a failed image build together with the tail of the
// captured build output.
type BuildError struct {
	Image string
	Tail  []string
	Err   error
}

func (e *BuildError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("deploy: build %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("deploy: build %s: %v\n%s", e.Image, e.Err, strings.Join(e.Tail, "\n"))
}

func (e *BuildError) Unwrap() error { return e.Err }
