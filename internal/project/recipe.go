package project

import "strings"

// InternalPort is the port the generated static server listens on inside
// the container. Host bindings always target this port.
const InternalPort = 8000

// renderDockerfile produces the two-stage build recipe written into every
// project directory: a node builder that installs dependencies and runs
// the site build, then an nginx stage serving the dist output.
func renderDockerfile() string {
	var b strings.Builder
	b.WriteString("FROM node:20-alpine AS builder\n\n")
	b.WriteString("WORKDIR /app\n\n")
	b.WriteString("COPY package*.json ./\n")
	b.WriteString("RUN npm install\n\n")
	b.WriteString("COPY . .\n\n")
	b.WriteString("RUN npm run build\n\n")
	// Fail the build early when the site build produced no output.
	b.WriteString("RUN test -d dist || (echo \"ERROR: dist directory not found after build\" && exit 1)\n\n")
	b.WriteString("FROM nginx:alpine\n\n")
	b.WriteString("COPY --from=builder /app/dist /usr/share/nginx/html\n\n")
	b.WriteString("RUN echo 'server { \\\n")
	b.WriteString("    listen 8000; \\\n")
	b.WriteString("    server_name _; \\\n")
	b.WriteString("    root /usr/share/nginx/html; \\\n")
	b.WriteString("    index index.html; \\\n")
	b.WriteString("    gzip on; \\\n")
	b.WriteString("    gzip_vary on; \\\n")
	b.WriteString("    gzip_min_length 1024; \\\n")
	b.WriteString("    gzip_types text/plain text/css text/xml text/javascript application/javascript application/xml+rss application/json; \\\n")
	b.WriteString("    location ~* \\.(js|css|png|jpg|jpeg|gif|ico|svg|woff|woff2|ttf|eot|webp)$ { \\\n")
	b.WriteString("        expires 1y; \\\n")
	b.WriteString("        add_header Cache-Control \"public, immutable\"; \\\n")
	b.WriteString("        access_log off; \\\n")
	b.WriteString("        try_files $uri =404; \\\n")
	b.WriteString("    } \\\n")
	b.WriteString("    location / { \\\n")
	b.WriteString("        try_files $uri $uri/ /index.html; \\\n")
	b.WriteString("    } \\\n")
	b.WriteString("}' > /etc/nginx/conf.d/default.conf\n\n")
	b.WriteString("EXPOSE 8000\n\n")
	b.WriteString("CMD [\"nginx\", \"-g\", \"daemon off;\"]\n")
	return b.String()
}

// renderDockerignore keeps host-side clutter out of the build context.
// dist and .astro stay includable on purpose: the builder stage needs them
// when a payload ships prebuilt output.
func renderDockerignore() string {
	var b strings.Builder
	b.WriteString("node_modules\n")
	b.WriteString("npm-debug.log\n")
	b.WriteString(".env\n")
	b.WriteString(".git\n")
	b.WriteString(".gitignore\n")
	b.WriteString("*.md\n")
	b.WriteString(".DS_Store\n")
	return b.String()
}
