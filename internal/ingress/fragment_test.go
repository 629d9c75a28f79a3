package ingress

import (
	"strings"
	"testing"
)

func TestFragmentRoutingDirectives(t *testing.T) {
	frag := Fragment("abc123def456", 40100)

	for _, marker := range []string{
		"location /abc123def456/ {",
		"proxy_pass http://127.0.0.1:40100/;",
		"rewrite ^/abc123def456(/.*)$ $1 break;",
		"location ~ ^/(_astro|assets|node_modules|public)/ {",
		"proxy_pass http://127.0.0.1:40100$request_uri;",
		"proxy_connect_timeout 60s;",
		"proxy_set_header Upgrade $http_upgrade;",
		`add_header Cache-Control "public, immutable";`,
		"location = /abc123def456 {",
		"return 301 /abc123def456/;",
	} {
		if !strings.Contains(frag, marker) {
			t.Fatalf("fragment missing %q:\n%s", marker, frag)
		}
	}
}
