package domain

import (
	"encoding/json"
	"fmt"
)

// File is a single entry of an uploaded site payload. Content holds either
// plain text or a structured JSON document, mirroring how uploads arrive
// off the wire.
type File struct {
	Name    string `json:"name"`
	Content any    `json:"content"`
}

// CanonicalContent returns the deterministic text representation used for
// fingerprinting. Structured payloads are re-marshalled compactly with
// sorted keys so that semantically equal documents hash identically.
func (f File) CanonicalContent() (string, error) {
	switch v := f.Content.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal content of %s: %w", f.Name, err)
		}
		return string(data), nil
	}
}

// RenderContent returns the text written to disk during materialization.
// Structured payloads become indented JSON; strings pass through verbatim.
func (f File) RenderContent() (string, error) {
	switch v := f.Content.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal content of %s: %w", f.Name, err)
		}
		return string(data), nil
	}
}
