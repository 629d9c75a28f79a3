package project

import (
	"strings"
	"testing"
)

func TestRenderDockerfile(t *testing.T) {
	recipe := renderDockerfile()

	builderIdx := strings.Index(recipe, "FROM node:20-alpine AS builder")
	runtimeIdx := strings.Index(recipe, "FROM nginx:alpine")
	if builderIdx < 0 || runtimeIdx < 0 {
		t.Fatalf("expected a two stage recipe:\n%s", recipe)
	}
	if builderIdx > runtimeIdx {
		t.Fatalf("builder stage must precede the runtime stage")
	}

	for _, marker := range []string{
		"COPY package*.json ./",
		"RUN npm install",
		"RUN npm run build",
		"RUN test -d dist || (echo \"ERROR: dist directory not found after build\" && exit 1)",
		"COPY --from=builder /app/dist /usr/share/nginx/html",
		"listen 8000;",
		"try_files $uri $uri/ /index.html;",
		"gzip on;",
		"EXPOSE 8000",
		"CMD [\"nginx\", \"-g\", \"daemon off;\"]",
	} {
		if !strings.Contains(recipe, marker) {
			t.Fatalf("recipe missing %q:\n%s", marker, recipe)
		}
	}
}

func TestRenderDockerignore(t *testing.T) {
	ignore := renderDockerignore()
	for _, entry := range []string{"node_modules", "npm-debug.log", ".env", ".git", ".gitignore", "*.md", ".DS_Store"} {
		if !strings.Contains(ignore, entry) {
			t.Fatalf("ignore list missing %q:\n%s", entry, ignore)
		}
	}
}

func TestInternalPort(t *testing.T) {
	if InternalPort != 8000 {
		t.Fatalf("internal port must match the recipe listen directive, got %d", InternalPort)
	}
}
