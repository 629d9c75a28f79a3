package ingress

import "fmt"

// fragmentTemplate is the location set for one deployed site. The first
// block proxies /{fingerprint}/ to the container and strips the prefix,
// the second passes through built assets that browsers request without
// the prefix, the third redirects the bare path to its canonical form.
const fragmentTemplate = `# Route for /%[1]s
location /%[1]s/ {
    proxy_pass http://127.0.0.1:%[2]d/;
    proxy_http_version 1.1;
    proxy_set_header Upgrade $http_upgrade;
    proxy_set_header Connection 'upgrade';
    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;
    proxy_cache_bypass $http_upgrade;

    proxy_connect_timeout 60s;
    proxy_send_timeout 60s;
    proxy_read_timeout 60s;

    # Strip the route prefix before proxying to the container.
    rewrite ^/%[1]s(/.*)$ $1 break;
}

# Built assets are requested without the route prefix.
location ~ ^/(_astro|assets|node_modules|public)/ {
    proxy_pass http://127.0.0.1:%[2]d$request_uri;
    proxy_http_version 1.1;
    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;

    expires 1y;
    add_header Cache-Control "public, immutable";
}

# Redirect /%[1]s to /%[1]s/
location = /%[1]s {
    return 301 /%[1]s/;
}
`

// Fragment renders the nginx location set routing a fingerprint to its
// container port.
func Fragment(fingerprint string, port int) string {
	return fmt.Sprintf(fragmentTemplate, fingerprint, port)
}
