// Package httpx exposes the deployment pipeline over HTTP.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gleb-Shall/full-project/internal/deploy"
	"github.com/Gleb-Shall/full-project/internal/domain"
	"github.com/Gleb-Shall/full-project/internal/fingerprint"
	"github.com/Gleb-Shall/full-project/internal/project"
)

// DeployService is the part of the pipeline the router needs.
type DeployService interface {
	Deploy(ctx context.Context, ownerID string, files []domain.File) (domain.Deployment, error)
	Health(ctx context.Context) error
	Deployments(ctx context.Context) []domain.Record
}

// Config carries the request-facing settings.
type Config struct {
	Mode     deploy.Mode
	Domain   string
	UseHTTPS bool
	// Token, when set, is required in X-Deploy-Token on mutating routes.
	Token string
}

// Router exposes HTTP endpoints for the deploy service.
type Router struct {
	mux                *http.ServeMux
	logger             *slog.Logger
	deploy             DeployService
	cfg                Config
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	deployResults      *prometheus.CounterVec
	deployDuration     prometheus.Histogram
}

const healthCheckTimeout = 2 * time.Second

// New creates and registers handlers.
func New(logger *slog.Logger, deploySvc DeployService, cfg Config) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		deploy: deploySvc,
		cfg:    cfg,
	}
	r.initMetrics()
	r.routes()
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/", r.instrument("/", r.handleRoot))
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealth))
	r.mux.HandleFunc("/health", r.instrument("/healthz", r.handleHealth))
	r.mux.HandleFunc("/deploy", r.instrument("/deploy", r.requireToken(r.handleDeploy)))
	r.mux.HandleFunc("/deployments", r.instrument("/deployments", r.handleDeployments))
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"message": "deploy API is running"})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	component := map[string]any{"status": "up"}
	status := "ok"
	if err := r.deploy.Health(ctx); err != nil {
		status = "degraded"
		component = map[string]any{
			"status": "down",
			"error":  err.Error(),
		}
	}
	payload := map[string]any{
		"status": status,
		"components": map[string]any{
			"docker": component,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	r.writeJSON(w, code, payload)
}

type deployResponse struct {
	DeploymentID string `json:"deployment_id"`
	OwnerID      string `json:"owner_id"`
	Fingerprint  string `json:"fingerprint"`
	HostPort     int    `json:"host_port"`
	URL          string `json:"url"`
}

func (r *Router) handleDeploy(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := readUpload(req)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upload, err := ParseUpload(data)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A dropped client must not cancel a deployment already in flight;
	// the pipeline bounds itself with its own timeouts.
	ctx := context.WithoutCancel(req.Context())

	start := time.Now()
	dep, err := r.deploy.Deploy(ctx, upload.OwnerID, upload.Files)
	if err != nil {
		r.recordDeployResult("failure")
		r.logger.Error("deployment failed", "owner_id", upload.OwnerID, "error", err)
		r.writeError(w, deployStatus(err), err.Error())
		return
	}
	r.recordDeployResult("success")
	r.observeDeployDuration(time.Since(start))

	r.writeJSON(w, http.StatusOK, deployResponse{
		DeploymentID: dep.ID,
		OwnerID:      dep.OwnerID,
		Fingerprint:  dep.Fingerprint,
		HostPort:     dep.HostPort,
		URL:          r.siteURL(dep),
	})
}

func (r *Router) handleDeployments(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	recs := r.deploy.Deployments(req.Context())
	if recs == nil {
		recs = []domain.Record{}
	}
	r.writeJSON(w, http.StatusOK, map[string]any{
		"deployments": recs,
		"count":       len(recs),
	})
}

// deployStatus maps pipeline failures to response codes: bad uploads are
// the client's fault, an unreachable runtime is a temporary outage.
func deployStatus(err error) int {
	switch {
	case errors.Is(err, fingerprint.ErrInvalidInput),
		errors.Is(err, project.ErrMissingManifest),
		errors.Is(err, project.ErrUnsafePath):
		return http.StatusBadRequest
	case errors.Is(err, deploy.ErrRuntimeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) siteURL(dep domain.Deployment) string {
	if r.cfg.Mode == deploy.ModeLocal {
		return fmt.Sprintf("http://127.0.0.1:%d/", dep.HostPort)
	}
	scheme := "http"
	if r.cfg.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, r.cfg.Domain, dep.Fingerprint)
}

func (r *Router) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.Token != "" && req.Header.Get("X-Deploy-Token") != r.cfg.Token {
			r.writeError(w, http.StatusUnauthorized, "invalid deploy token")
			return
		}
		next(w, req)
	}
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

func (r *Router) writeError(w http.ResponseWriter, status int, msg string) {
	r.writeJSON(w, status, map[string]string{"error": msg})
}
