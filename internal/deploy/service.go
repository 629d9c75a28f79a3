// Package deploy turns an uploaded file set into a running container:
// fingerprint, materialize, build, replace, start, publish. The container
// runtime, the port registry and the route publisher are injected so the
// pipeline can be exercised without Docker or nginx on the host.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Gleb-Shall/full-project/internal/domain"
	"github.com/Gleb-Shall/full-project/internal/fingerprint"
	"github.com/Gleb-Shall/full-project/internal/project"
)

const (
	defaultBuildTimeout = 10 * time.Minute
	defaultStopTimeout  = 30 * time.Second
	defaultStartTimeout = 30 * time.Second

	// Preferred local-mode ports land in [9000, 9998], derived from the
	// fingerprint so repeat deploys ask for the same port.
	preferredPortBase = 9000
	preferredPortSpan = 999

	buildTailLimit = 40
)

// Registry persists container records keyed by fingerprint and arbitrates
// host-port reuse.
type Registry interface {
	Save(ctx context.Context, rec domain.Record) error
	// ReservePort returns the host port to request for a fingerprint: the
	// recorded port when it is free, otherwise preferred when positive and
	// free, otherwise 0 meaning the runtime should assign one.
	ReservePort(ctx context.Context, fingerprint string, preferred int) (int, error)
	All(ctx context.Context) []domain.Record
}

// RoutePublisher exposes a deployed site on the host web server.
type RoutePublisher interface {
	// Publish writes the route for fingerprint proxying to hostPort and
	// reports whether the web server picked it up.
	Publish(ctx context.Context, fingerprint string, hostPort int) (reloaded bool, err error)
}

// Options tunes the deployment pipeline.
type Options struct {
	Mode Mode

	// StageDir receives a copy of each project before the image build in
	// direct mode. Empty disables staging and builds from the project dir.
	StageDir string

	BuildTimeout time.Duration
	StopTimeout  time.Duration
	StartTimeout time.Duration
}

// Service orchestrates the deployment pipeline.
type Service struct {
	engine   Engine
	projects *project.Manager
	registry Registry
	routes   RoutePublisher
	opts     Options
	logger   *slog.Logger
}

func NewService(engine Engine, projects *project.Manager, registry Registry, routes RoutePublisher, opts Options, logger *slog.Logger) *Service {
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = defaultBuildTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:   engine,
		projects: projects,
		registry: registry,
		routes:   routes,
		opts:     opts,
		logger:   logger,
	}
}

// Mode reports the configured exposure mode.
func (s *Service) Mode() Mode {
	return s.opts.Mode
}

// Deploy runs the full pipeline for one upload. Identical uploads map to
// the same fingerprint and replace the running container in place.
func (s *Service) Deploy(ctx context.Context, ownerID string, files []domain.File) (domain.Deployment, error) {
	id := uuid.NewString()

	fp, err := fingerprint.Generate(ownerID, files)
	if err != nil {
		return domain.Deployment{}, err
	}
	logger := s.logger.With("deployment_id", id, "owner_id", ownerID, "fingerprint", fp)
	logger.Info("deployment accepted", "files", len(files), "mode", string(s.opts.Mode))

	dir, created, err := s.projects.Materialize(fp, ownerID, files)
	if err != nil {
		return domain.Deployment{}, err
	}
	logger.Info("project materialized", "dir", dir, "created", created)

	// Ping before anything destructive; an unreachable runtime must leave
	// the previous deployment untouched.
	if err := s.engine.Ping(ctx); err != nil {
		return domain.Deployment{}, fmt.Errorf("%w: %w", ErrRuntimeUnavailable, err)
	}

	buildDir := dir
	if s.opts.Mode == ModeDirect && s.opts.StageDir != "" {
		if buildDir, err = s.stage(fp, dir); err != nil {
			return domain.Deployment{}, err
		}
		logger.Info("project staged", "dir", buildDir)
	}

	name := ContainerName(fp)
	image := ImageName(fp)

	if err := s.buildImage(ctx, buildDir, image, logger); err != nil {
		return domain.Deployment{}, err
	}

	if err := s.replaceContainer(ctx, name, logger); err != nil {
		return domain.Deployment{}, err
	}

	preferred := 0
	if s.opts.Mode == ModeLocal {
		preferred = fingerprint.PreferredPort(fp, preferredPortBase, preferredPortSpan)
	}
	port, err := s.registry.ReservePort(ctx, fp, preferred)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("deploy: reserve port: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, s.opts.StartTimeout)
	defer cancel()
	hostPort, err := s.engine.StartContainer(startCtx, StartSpec{
		Name:          name,
		Image:         image,
		HostIP:        "127.0.0.1",
		HostPort:      port,
		ContainerPort: project.InternalPort,
	})
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	logger.Info("container started", "container", name, "host_port", hostPort)

	rec := domain.Record{
		Fingerprint:   fp,
		ContainerName: name,
		ContainerPort: hostPort,
		ImageName:     image,
	}
	if err := s.registry.Save(ctx, rec); err != nil {
		logger.Warn("registry save failed", "error", err)
	}

	dep := domain.Deployment{
		ID:            id,
		OwnerID:       ownerID,
		Fingerprint:   fp,
		ContainerName: name,
		ImageName:     image,
		HostPort:      hostPort,
		CreatedAt:     time.Now().UTC(),
	}

	if s.opts.Mode == ModeDirect && s.routes != nil {
		reloaded, err := s.routes.Publish(ctx, fp, hostPort)
		if err != nil {
			return domain.Deployment{}, fmt.Errorf("deploy: publish route: %w", err)
		}
		dep.RoutePublished = true
		if !reloaded {
			logger.Warn("route published but web server not reloaded")
		}
	}

	logger.Info("deployment complete", "container", name, "host_port", hostPort)
	return dep, nil
}

// ConfigureRoute republishes the route and registry record for an already
// running deployment. In local mode there is no route to publish.
func (s *Service) ConfigureRoute(ctx context.Context, fp string, hostPort int) (bool, error) {
	if s.opts.Mode != ModeDirect || s.routes == nil {
		return true, nil
	}
	reloaded, err := s.routes.Publish(ctx, fp, hostPort)
	if err != nil {
		return false, fmt.Errorf("deploy: publish route: %w", err)
	}
	rec := domain.Record{
		Fingerprint:   fp,
		ContainerName: ContainerName(fp),
		ContainerPort: hostPort,
		ImageName:     ImageName(fp),
	}
	if err := s.registry.Save(ctx, rec); err != nil {
		s.logger.Warn("registry save failed", "fingerprint", fp, "error", err)
	}
	return reloaded, nil
}

// Health reports whether the container runtime is reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.engine.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntimeUnavailable, err)
	}
	return nil
}

// Deployments lists the registry records for every known deployment.
func (s *Service) Deployments(ctx context.Context) []domain.Record {
	return s.registry.All(ctx)
}

func (s *Service) buildImage(ctx context.Context, dir, image string, logger *slog.Logger) error {
	buildCtx, cancel := context.WithTimeout(ctx, s.opts.BuildTimeout)
	defer cancel()

	logger.Info("building image", "image", image, "dir", dir)
	tail := newTailBuffer(buildTailLimit)
	if err := s.engine.BuildImage(buildCtx, dir, image, tail.Append); err != nil {
		return &BuildError{Image: image, Tail: tail.Snapshot(), Err: err}
	}
	return nil
}

// replaceContainer clears a previous instance of the container. Stop
// failures are tolerated; the force remove kills anything still running.
func (s *Service) replaceContainer(ctx context.Context, name string, logger *slog.Logger) error {
	exists, err := s.engine.ContainerExists(ctx, name)
	if err != nil {
		return fmt.Errorf("deploy: inspect %s: %w", name, err)
	}
	if !exists {
		return nil
	}
	logger.Info("replacing existing container", "container", name)
	if err := s.engine.StopContainer(ctx, name, s.opts.StopTimeout); err != nil {
		logger.Warn("container stop failed", "container", name, "error", err)
	}
	if err := s.engine.RemoveContainer(ctx, name); err != nil {
		return fmt.Errorf("deploy: remove %s: %w", name, err)
	}
	return nil
}

// stage refreshes the build copy of a project under the stage directory.
func (s *Service) stage(fp, dir string) (string, error) {
	target := filepath.Join(s.opts.StageDir, fp)
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("deploy: clear stage %s: %w", target, err)
	}
	if err := os.MkdirAll(s.opts.StageDir, 0o755); err != nil {
		return "", fmt.Errorf("deploy: create stage root: %w", err)
	}
	if err := copyFS(target, os.DirFS(dir)); err != nil {
		return "", fmt.Errorf("deploy: stage project to %s: %w", target, err)
	}
	return target, nil
}
