package ingress

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const reloadTimeout = 10 * time.Second

// Reloader asks the host web server to pick up new configuration.
type Reloader interface {
	Name() string
	Reload(ctx context.Context) error
}

// ContainerSignaler sends a signal to a named container. The docker
// client satisfies it.
type ContainerSignaler interface {
	KillContainer(ctx context.Context, name, signal string) error
}

// DefaultReloaders is the production cascade, tried in order: SIGHUP via
// pidfile, HUP to a containerized nginx, systemctl, the nginx binary.
func DefaultReloaders(signaler ContainerSignaler, container string) []Reloader {
	rs := []Reloader{PidfileReloader()}
	if signaler != nil && strings.TrimSpace(container) != "" {
		rs = append(rs, ContainerReloader(signaler, container))
	}
	return append(rs, SystemdReloader(), BinaryReloader())
}

// PidfileReloader signals the nginx master named by the first readable
// pidfile.
func PidfileReloader() Reloader {
	return &signalReloader{paths: []string{
		"/var/run/nginx.pid",
		"/run/nginx.pid",
		"/var/run/nginx/nginx.pid",
	}}
}

type signalReloader struct {
	paths []string
}

func (r *signalReloader) Name() string { return "pidfile" }

func (r *signalReloader) Reload(ctx context.Context) error {
	for _, path := range r.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || pid <= 0 {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGHUP); err != nil {
			return fmt.Errorf("signal pid %d: %w", pid, err)
		}
		return nil
	}
	return fmt.Errorf("no nginx pidfile found")
}

// ContainerReloader sends HUP to a containerized nginx.
func ContainerReloader(signaler ContainerSignaler, container string) Reloader {
	return &containerReloader{signaler: signaler, container: container}
}

type containerReloader struct {
	signaler  ContainerSignaler
	container string
}

func (r *containerReloader) Name() string { return "docker" }

func (r *containerReloader) Reload(ctx context.Context) error {
	return r.signaler.KillContainer(ctx, r.container, "HUP")
}

// SystemdReloader runs systemctl reload nginx.
func SystemdReloader() Reloader {
	return commandReloader{name: "systemctl", argv: []string{"systemctl", "reload", "nginx"}}
}

type commandReloader struct {
	name string
	argv []string
}

func (r commandReloader) Name() string { return r.name }

func (r commandReloader) Reload(ctx context.Context) error {
	return runCommand(ctx, r.argv[0], r.argv[1:]...)
}

// BinaryReloader runs nginx -s reload with the discovered binary.
func BinaryReloader() Reloader {
	return binaryReloader{}
}

type binaryReloader struct{}

func (binaryReloader) Name() string { return "nginx" }

func (binaryReloader) Reload(ctx context.Context) error {
	bin := findNginx()
	if bin == "" {
		return fmt.Errorf("nginx binary not found")
	}
	return runCommand(ctx, bin, "-s", "reload")
}

func runCommand(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func findNginx() string {
	for _, path := range []string{"/usr/sbin/nginx", "/usr/bin/nginx"} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	if path, err := exec.LookPath("nginx"); err == nil {
		return path
	}
	return ""
}
