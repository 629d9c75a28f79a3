package deploy

import (
	"fmt"
	"strings"
)

// Mode selects how deployed sites are exposed.
type Mode string

const (
	// ModeDirect publishes every deployment on the host web server under
	// the configured domain.
	ModeDirect Mode = "direct"

	// ModeLocal binds containers to loopback ports for development and
	// skips route publication.
	ModeLocal Mode = "local"
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDirect:
		return ModeDirect, nil
	case ModeLocal:
		return ModeLocal, nil
	default:
		return "", fmt.Errorf("deploy: unknown mode %q", s)
	}
}
