package deploy

import (
	"context"
	"time"
)

// Engine abstracts the container runtime used to build and run deployed
// sites. The production implementation lives in internal/docker; tests
// substitute a fake.
type Engine interface {
	// Ping verifies the runtime is reachable.
	Ping(ctx context.Context) error

	// BuildImage builds the project at dir into an image tagged tag.
	// Build output lines are streamed to onOutput when non-nil.
	BuildImage(ctx context.Context, dir, tag string, onOutput func(string)) error

	// ContainerExists reports whether a container with the given name
	// exists in any state.
	ContainerExists(ctx context.Context, name string) (bool, error)

	// StopContainer stops the named container, waiting up to timeout for
	// it to exit. A missing container is not an error.
	StopContainer(ctx context.Context, name string, timeout time.Duration) error

	// RemoveContainer force-removes the named container together with its
	// anonymous volumes. A missing container is not an error.
	RemoveContainer(ctx context.Context, name string) error

	// StartContainer creates and starts a container from spec and returns
	// the host port the runtime bound. A zero spec.HostPort asks the
	// runtime to assign an ephemeral port.
	StartContainer(ctx context.Context, spec StartSpec) (int, error)
}

// StartSpec describes a container to create and start.
type StartSpec struct {
	Name          string
	Image         string
	HostIP        string
	HostPort      int
	ContainerPort int
}
