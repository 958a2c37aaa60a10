package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"filevault/internal/objects"
)

// backendHeader names the backend that answered a body read.
const backendHeader = "X-Filevault-Backend"

func (s *Server) handleServe(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	obj, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServeError(w, r, err)
		return
	}
	if obj.IsImage() {
		target := "/serve-image/" + id
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if raw := r.Header.Get("Range"); raw != "" {
		offset, length, ok := parseByteRange(raw, obj.Length)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", obj.Length))
			s.writeErrorReq(w, r, http.StatusRequestedRangeNotSatisfiable, makeAPIError(http.StatusRequestedRangeNotSatisfiable, "invalid_range", ErrCodeInvalidRange, fmt.Errorf("unsatisfiable range %q", raw)))
			return
		}
		data, err := s.service.FetchRange(r.Context(), id, offset, length)
		if err != nil {
			s.writeServeError(w, r, err)
			return
		}
		s.setContentHeaders(w, obj.ContentType, obj.Filename, obj.MD5)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(data))-1, obj.Length))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(data)
		return
	}

	content, err := s.service.Fetch(r.Context(), id)
	if err != nil {
		s.writeServeError(w, r, err)
		return
	}
	s.writeContent(w, r, content, content.Object.MD5)
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, false)
}

func (s *Server) handleServeImageOriginal(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, true)
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, noWatermark bool) {
	// Malformed rendition parameters name no rendition, same as a bad box.
	crop, err := queryBool(r, "crop")
	if err != nil {
		s.writeServeError(w, r, fmt.Errorf("%w: %v", objects.ErrNotFound, err))
		return
	}
	quality, err := queryInt(r, "quality")
	if err != nil {
		s.writeServeError(w, r, fmt.Errorf("%w: %v", objects.ErrNotFound, err))
		return
	}
	req := objects.VariantRequest{
		Box:         r.URL.Query().Get("format"),
		Crop:        crop,
		Quality:     quality,
		NoWatermark: noWatermark,
	}
	if noWatermark {
		req.Entitled = s.isAdmin(r)
	}

	s.withLimiter(w, r, s.imageLimiter, "image", func() {
		content, err := s.service.FetchImageVariant(r.Context(), strings.TrimSpace(r.PathValue("id")), req)
		if err != nil {
			s.writeServeError(w, r, err)
			return
		}
		s.writeContent(w, r, content, "")
	})
}

// writeContent sends a fetched body. etag is empty for renditions.
func (s *Server) writeContent(w http.ResponseWriter, r *http.Request, content objects.Content, etag string) {
	if etag != "" && r.Header.Get("If-None-Match") == `"`+etag+`"` {
		w.Header().Set("ETag", `"`+etag+`"`)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.setContentHeaders(w, content.ContentType, content.Filename, etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	if content.Backend != "" {
		w.Header().Set(backendHeader, content.Backend)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(content.Data); err != nil {
		s.log().Debug("write body", "id", content.Object.ID, "error", err)
	}
}

func (s *Server) setContentHeaders(w http.ResponseWriter, contentType, filename, etag string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	if disposition := mime.FormatMediaType("inline", map[string]string{"filename": filename}); disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	if etag != "" {
		w.Header().Set("ETag", `"`+etag+`"`)
	}
}

// writeServeError answers body requests. Unknown and malformed ids are
// both plain not found here.
func (s *Server) writeServeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, objects.ErrInvalidID) {
		err = fmt.Errorf("%w: %w", objects.ErrNotFound, err)
	}
	s.writeServiceError(w, r, err)
}

// parseByteRange parses a single "bytes=a-b", "bytes=a-" or "bytes=-n"
// range against size.
func parseByteRange(raw string, size int64) (int64, int64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(raw), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, false
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return 0, 0, false
		}
		n = min(n, size)
		return size - n, n, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		end = min(end, size-1)
	}
	return start, end - start + 1, true
}
