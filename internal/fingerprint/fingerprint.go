// Package fingerprint derives deterministic, content-addressed identifiers
// for uploaded site payloads. The fingerprint keys every downstream
// resource: project directory, image tag, container name, registry entry
// and published route.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/Gleb-Shall/full-project/internal/domain"
)

// Length is the number of hex characters kept from the SHA-256 digest.
const Length = 12

// ErrInvalidInput indicates the owner id or file set cannot be hashed.
var ErrInvalidInput = errors.New("fingerprint: invalid input")

// Generate derives the deployment fingerprint for an owner and a set of
// project files. File order does not matter; any change to the owner, a
// file name or a single content byte yields a different fingerprint.
func Generate(ownerID string, files []domain.File) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", fmt.Errorf("%w: owner id required", ErrInvalidInput)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: at least one file required", ErrInvalidInput)
	}

	sorted := make([]domain.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	h.Write([]byte(ownerID))
	for _, f := range sorted {
		if strings.TrimSpace(f.Name) == "" {
			return "", fmt.Errorf("%w: file with empty name", ErrInvalidInput)
		}
		canonical, err := f.CanonicalContent()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		h.Write([]byte(f.Name))
		h.Write([]byte(canonical))
	}
	return hex.EncodeToString(h.Sum(nil))[:Length], nil
}

// PreferredPort maps a fingerprint onto a stable host port in
// [base, base+span). Local deployments use it so repeated deploys of the
// same site land on the same port without a prior registry entry.
func PreferredPort(fingerprint string, base, span int) int {
	if span <= 0 {
		return base
	}
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return base + int(h.Sum32()%uint32(span))
}
