package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gleb-Shall/full-project/internal/domain"
)

const maxUploadBytes = 10 << 20

// Upload is a parsed deploy request: the owner and the project files.
type Upload struct {
	OwnerID string
	Files   []domain.File
}

// ParseUpload decodes the upload document: {"files": [...]} where the
// first element carries the owner id and the rest are {name, content}
// entries. Bot clients send the owner as owner_id, telegram_id or the
// historical "telegram id" key, as a string or a number.
func ParseUpload(data []byte) (Upload, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Upload{}, fmt.Errorf("invalid JSON format")
	}
	rawFiles, ok := doc["files"]
	if !ok {
		return Upload{}, fmt.Errorf("missing 'files' field in JSON")
	}
	var items []map[string]any
	if err := json.Unmarshal(rawFiles, &items); err != nil || len(items) == 0 {
		return Upload{}, fmt.Errorf("'files' must be a non-empty list")
	}

	ownerID := ownerFrom(items[0])
	if ownerID == "" {
		return Upload{}, fmt.Errorf("first item in 'files' must carry 'owner_id', 'telegram_id' or 'telegram id'")
	}

	files := make([]domain.File, 0, len(items)-1)
	for _, item := range items[1:] {
		name, ok := item["name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return Upload{}, fmt.Errorf("each file must have a 'name' field")
		}
		content, ok := item["content"]
		if !ok {
			return Upload{}, fmt.Errorf("file %q must have a 'content' field", name)
		}
		files = append(files, domain.File{Name: name, Content: content})
	}
	return Upload{OwnerID: ownerID, Files: files}, nil
}

func ownerFrom(item map[string]any) string {
	for _, key := range []string{"owner_id", "telegram_id", "telegram id"} {
		v, ok := item[key]
		if !ok {
			continue
		}
		switch id := v.(type) {
		case string:
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				return trimmed
			}
		case float64:
			if id != 0 {
				return strconv.FormatInt(int64(id), 10)
			}
		}
	}
	return ""
}

// readUpload accepts either a multipart form with the document in the
// "file" field or a raw JSON body.
func readUpload(req *http.Request) ([]byte, error) {
	ct := req.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart form")
		}
		file, _, err := req.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("multipart field 'file' is required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(req.Body, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("request body is required")
	}
	return data, nil
}
