package objects

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallbackContentType = "application/octet-stream"

// spooled is an upload made seekable, either in place or through a temp file.
type spooled struct {
	io.ReadSeeker
	cleanup func()
}

func (s spooled) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// spool returns r as a seekable stream. Readers that already seek are used
// as is; anything else is copied to a temp file removed on Close.
func spool(r io.Reader) (spooled, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		if _, err := rs.Seek(0, io.SeekStart); err == nil {
			return spooled{ReadSeeker: rs}, nil
		}
	}

	tmp, err := os.CreateTemp("", "filevault-upload-*")
	if err != nil {
		return spooled{}, fmt.Errorf("spool upload: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return spooled{}, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return spooled{}, fmt.Errorf("spool upload: %w", err)
	}
	return spooled{ReadSeeker: tmp, cleanup: cleanup}, nil
}

// sniff detects the content type of rs and rewinds it.
func sniff(rs io.ReadSeeker) (*mimetype.MIME, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	detected, err := mimetype.DetectReader(rs)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return detected, nil
}

// resolveContentType picks the stored content type: an explicit hint, then
// the sniffed type, then the filename extension.
func resolveContentType(hint string, detected *mimetype.MIME, filename string) string {
	if mediaType := normalizeMediaType(hint); mediaType != "" && mediaType != fallbackContentType {
		return mediaType
	}
	if detected != nil {
		if mediaType := normalizeMediaType(detected.String()); mediaType != "" && mediaType != fallbackContentType && mediaType != "text/plain" {
			return mediaType
		}
	}
	if ext := filepath.Ext(filename); ext != "" {
		if mediaType := normalizeMediaType(mime.TypeByExtension(ext)); mediaType != "" {
			return mediaType
		}
	}
	if detected != nil {
		if mediaType := normalizeMediaType(detected.String()); mediaType != "" {
			return mediaType
		}
	}
	return fallbackContentType
}

// resolveFilename cleans a client supplied name, or builds one from the id
// and the detected extension.
func resolveFilename(hint, id string, detected *mimetype.MIME) string {
	hint = strings.TrimSpace(strings.ReplaceAll(hint, "\\", "/"))
	if hint != "" {
		if base := filepath.Base(hint); base != "." && base != "/" {
			return base
		}
	}
	ext := ""
	if detected != nil {
		ext = detected.Extension()
	}
	return id + ext
}

func normalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed)
}

// isImageType reports whether the image pipeline can take contentType.
func isImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	default:
		return false
	}
}
