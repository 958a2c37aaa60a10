package main

import (
	"context"
	"errors"
	"net"

	"filevault/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: admin operations need FILEVAULT_ADMIN_TOKEN matching the server's admin_token_hash.")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly or reduce concurrent uploads and image renders.")
		case "request_too_large":
			lines = append(lines, "hint: raise uploads.max_upload_bytes or storage.temp_capacity_bytes on the server.")
		case "unsupported_media_type":
			lines = append(lines, "hint: check uploads.allowed_media_types on the server.")
		case "backend_unavailable":
			lines = append(lines, "hint: every configured write backend failed; check remote storage settings and server logs.")
		}
		if apiErr.NotFound() && apiErr.Code == "not_found" {
			lines = append(lines, "hint: check the id; soft-deleted objects are hidden when serve_deleted is false.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify FILEVAULT_API_URL points to a filevault server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase FILEVAULT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a filevault server is running at FILEVAULT_API_URL.",
			"hint: start local server manually with: filevault srv",
			"hint: you can increase FILEVAULT_HTTP_TIMEOUT for slower environments.",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
