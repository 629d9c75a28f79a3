package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gleb-Shall/full-project/internal/deploy"
	"github.com/Gleb-Shall/full-project/internal/domain"
)

type fakeService struct {
	dep       domain.Deployment
	err       error
	healthErr error
	records   []domain.Record
	gotOwner  string
	gotFiles  []domain.File
}

func (f *fakeService) Deploy(ctx context.Context, ownerID string, files []domain.File) (domain.Deployment, error) {
	f.gotOwner = ownerID
	f.gotFiles = files
	if f.err != nil {
		return domain.Deployment{}, f.err
	}
	return f.dep, nil
}

func (f *fakeService) Health(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeService) Deployments(ctx context.Context) []domain.Record {
	return f.records
}

func newTestRouter(svc *fakeService, cfg Config) *Router {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, cfg)
}

const validUpload = `{
  "files": [
    {"telegram_id": 123456789},
    {"name": "package.json", "content": {"name": "site"}},
    {"name": "index.html", "content": "<h1>hi</h1>"}
  ]
}`

func directConfig() Config {
	return Config{Mode: deploy.ModeDirect, Domain: "example.com"}
}

func postJSON(router *Router, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/deploy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDeployRawJSON(t *testing.T) {
	svc := &fakeService{dep: domain.Deployment{
		ID: "dep-1", OwnerID: "123456789", Fingerprint: "abc123def456", HostPort: 40100,
	}}
	router := newTestRouter(svc, directConfig())

	rec := postJSON(router, validUpload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["deployment_id"] != "dep-1" || resp["fingerprint"] != "abc123def456" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp["url"] != "http://example.com/abc123def456" {
		t.Fatalf("unexpected url %v", resp["url"])
	}
	if svc.gotOwner != "123456789" {
		t.Fatalf("owner %q, want numeric id as string", svc.gotOwner)
	}
	if len(svc.gotFiles) != 2 || svc.gotFiles[0].Name != "package.json" {
		t.Fatalf("unexpected files %+v", svc.gotFiles)
	}
}

func TestDeployMultipart(t *testing.T) {
	svc := &fakeService{dep: domain.Deployment{ID: "dep-1", Fingerprint: "abc123def456"}}
	router := newTestRouter(svc, directConfig())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "project.json")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(validUpload)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/deploy", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if svc.gotOwner != "123456789" {
		t.Fatalf("owner %q not parsed from multipart upload", svc.gotOwner)
	}
}

func TestDeployBadUploads(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: "not json", want: "invalid JSON format"},
		{name: "no files field", body: `{}`, want: "missing 'files' field"},
		{name: "empty files", body: `{"files": []}`, want: "non-empty list"},
		{name: "no owner", body: `{"files": [{"foo": 1}]}`, want: "must carry"},
		{name: "file without name", body: `{"files": [{"telegram_id": 1}, {"content": "x"}]}`, want: "'name' field"},
		{name: "file without content", body: `{"files": [{"telegram_id": 1}, {"name": "a.txt"}]}`, want: "'content' field"},
	}
	router := newTestRouter(&fakeService{}, directConfig())
	for _, tc := range cases {
		rec := postJSON(router, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", tc.name, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.want) {
			t.Fatalf("%s: body %s missing %q", tc.name, rec.Body, tc.want)
		}
	}
}

func TestDeployErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: deploy.ErrRuntimeUnavailable, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("%w: %s", deploy.ErrRuntimeUnavailable, "dial failed"), want: http.StatusServiceUnavailable},
		{err: errors.New("build exploded"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := newTestRouter(&fakeService{err: tc.err}, directConfig())
		rec := postJSON(router, validUpload)
		if rec.Code != tc.want {
			t.Fatalf("error %v: status %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestDeployMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeService{}, directConfig())
	req := httptest.NewRequest(http.MethodGet, "/deploy", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", rec.Code)
	}
}

func TestRootAndNotFound(t *testing.T) {
	router := newTestRouter(&fakeService{}, directConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "deploy API is running") {
		t.Fatalf("root: %d %s", rec.Code, rec.Body)
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path: status %d, want 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, directConfig())

	for _, path := range []string{"/healthz", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", path, rec.Code, rec.Body)
		}
	}

	svc.healthErr = errors.New("daemon down")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: status %d, want 503", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if payload["status"] != "degraded" {
		t.Fatalf("unexpected health payload %+v", payload)
	}
}

func TestDeploymentsEndpoint(t *testing.T) {
	svc := &fakeService{records: []domain.Record{
		{Fingerprint: "abc123def456", ContainerName: "deploy-abc123def456", ContainerPort: 40100, ImageName: "deploy-abc123def456"},
	}}
	router := newTestRouter(svc, directConfig())

	req := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var payload struct {
		Deployments []domain.Record `json:"deployments"`
		Count       int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 1 || payload.Deployments[0].ContainerPort != 40100 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDeployTokenGuard(t *testing.T) {
	cfg := directConfig()
	cfg.Token = "s3cret"
	svc := &fakeService{dep: domain.Deployment{ID: "dep-1"}}
	router := newTestRouter(svc, cfg)

	rec := postJSON(router, validUpload)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/deploy", strings.NewReader(validUpload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Deploy-Token", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/deploy", strings.NewReader(validUpload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Deploy-Token", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d: %s", rec.Code, rec.Body)
	}
}

func TestSiteURLByMode(t *testing.T) {
	local := newTestRouter(&fakeService{}, Config{Mode: deploy.ModeLocal})
	dep := domain.Deployment{Fingerprint: "abc123def456", HostPort: 9500}
	if got := local.siteURL(dep); got != "http://127.0.0.1:9500/" {
		t.Fatalf("local url %q", got)
	}

	tls := newTestRouter(&fakeService{}, Config{Mode: deploy.ModeDirect, Domain: "example.com", UseHTTPS: true})
	if got := tls.siteURL(dep); got != "https://example.com/abc123def456" {
		t.Fatalf("https url %q", got)
	}
}
