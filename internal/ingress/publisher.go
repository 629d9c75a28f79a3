// Package ingress publishes routes for deployed sites on the host nginx:
// one config fragment per fingerprint under a dedicated directory, an
// include directive spliced into the main site config, and a cascade of
// reload mechanisms so new routes go live without manual intervention.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Config locates the nginx configuration on the host.
type Config struct {
	// FragmentDir holds one {fingerprint}.conf per deployed site.
	FragmentDir string
	// SitesAvailable and SitesEnabled are the usual debian-style config
	// directories used to find the main site config.
	SitesAvailable string
	SitesEnabled   string
	// Domain narrows the site config search to the server_name serving
	// the deployments. Empty means take the first enabled site.
	Domain string
}

// Publisher writes route fragments and keeps the main config including
// them.
type Publisher struct {
	cfg       Config
	reloaders []Reloader
	logger    *slog.Logger
}

func NewPublisher(cfg Config, reloaders []Reloader, logger *slog.Logger) *Publisher {
	if cfg.FragmentDir == "" {
		cfg.FragmentDir = "/etc/nginx/sites-available/deploy"
	}
	if cfg.SitesAvailable == "" {
		cfg.SitesAvailable = "/etc/nginx/sites-available"
	}
	if cfg.SitesEnabled == "" {
		cfg.SitesEnabled = "/etc/nginx/sites-enabled"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, reloaders: reloaders, logger: logger}
}

// Publish writes the fragment for a fingerprint and asks nginx to pick it
// up. The returned bool reports whether any reload mechanism succeeded; a
// false with nil error means the route is on disk but needs a manual
// reload.
func (p *Publisher) Publish(ctx context.Context, fingerprint string, port int) (bool, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return false, fmt.Errorf("ingress: fingerprint cannot be empty")
	}
	if err := os.MkdirAll(p.cfg.FragmentDir, 0o755); err != nil {
		return false, fmt.Errorf("ingress: create fragment dir: %w", err)
	}
	path := filepath.Join(p.cfg.FragmentDir, fingerprint+".conf")
	if err := os.WriteFile(path, []byte(Fragment(fingerprint, port)), 0o644); err != nil {
		return false, fmt.Errorf("ingress: write fragment %s: %w", path, err)
	}
	p.logger.Info("route fragment written", "path", path, "port", port)

	if err := p.ensureInclude(); err != nil {
		p.logger.Warn("include directive not ensured, add it manually", "fragment_dir", p.cfg.FragmentDir, "error", err)
	}
	p.testConfig(ctx)

	return p.reload(ctx), nil
}

// ensureInclude splices the include directive into the main site config,
// once.
func (p *Publisher) ensureInclude() error {
	configPath, err := p.siteConfig()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read site config %s: %w", configPath, err)
	}
	if strings.Contains(string(content), p.cfg.FragmentDir) {
		return nil
	}
	include := fmt.Sprintf("    include %s/*.conf;", p.cfg.FragmentDir)
	updated, ok := insertBeforeLastServerClose(string(content), include)
	if !ok {
		return fmt.Errorf("no server block found in %s", configPath)
	}
	if err := os.WriteFile(configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write site config %s: %w", configPath, err)
	}
	p.logger.Info("include directive added", "path", configPath)
	return nil
}

// siteConfig finds the main site config: the sites-available file whose
// server_name mentions the domain, else the first enabled .conf mapped
// back to sites-available.
func (p *Publisher) siteConfig() (string, error) {
	if p.cfg.Domain != "" {
		if path := p.findByDomain(); path != "" {
			return path, nil
		}
	}
	entries, err := os.ReadDir(p.cfg.SitesEnabled)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p.cfg.SitesEnabled, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".conf") {
			continue
		}
		path := filepath.Join(p.cfg.SitesAvailable, entry.Name())
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no site config found under %s or %s", p.cfg.SitesAvailable, p.cfg.SitesEnabled)
}

func (p *Publisher) findByDomain() string {
	var found string
	filepath.WalkDir(p.cfg.SitesAvailable, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if d.IsDir() {
			// Fragments live below sites-available and never carry a
			// server_name.
			if path == p.cfg.FragmentDir {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, "server_name") && strings.Contains(line, p.cfg.Domain) {
				found = path
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found
}

// insertBeforeLastServerClose places line directly above the closing
// brace of the last top-level server block.
func insertBeforeLastServerClose(content, line string) (string, bool) {
	lines := strings.Split(content, "\n")
	lastEnd := -1
	inServer := false
	depth := 0
	for i, l := range lines {
		if !inServer && strings.Contains(l, "server {") {
			inServer = true
			depth = 1
			continue
		}
		if inServer {
			depth += strings.Count(l, "{")
			depth -= strings.Count(l, "}")
			if depth <= 0 {
				lastEnd = i
				inServer = false
			}
		}
	}
	if lastEnd < 0 {
		return "", false
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:lastEnd]...)
	out = append(out, line)
	out = append(out, lines[lastEnd:]...)
	return strings.Join(out, "\n"), true
}

// testConfig runs nginx -t when the binary is around. Failures only
// warn and never block publication.
func (p *Publisher) testConfig(ctx context.Context) {
	bin := findNginx()
	if bin == "" {
		p.logger.Debug("nginx binary not found, skipping config test")
		return
	}
	out, err := exec.CommandContext(ctx, bin, "-t").CombinedOutput()
	if err != nil {
		p.logger.Warn("nginx config test failed", "output", strings.TrimSpace(string(out)), "error", err)
	}
}

func (p *Publisher) reload(ctx context.Context) bool {
	for _, r := range p.reloaders {
		if err := r.Reload(ctx); err != nil {
			p.logger.Debug("reload attempt failed", "via", r.Name(), "error", err)
			continue
		}
		p.logger.Info("web server reloaded", "via", r.Name())
		return true
	}
	p.logger.Warn("web server not reloaded, run it manually", "hint", "systemctl reload nginx")
	return false
}
