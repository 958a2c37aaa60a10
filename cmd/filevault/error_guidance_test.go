package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"filevault/internal/api"
)

func TestFormatCLIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "network",
			err:  &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true},
			want: "hint: start local server manually with: filevault srv",
		},
		{
			name: "unknown service",
			err:  &api.APIError{Status: 404, Message: "api error: 404 Not Found"},
			want: "hint: verify FILEVAULT_API_URL points to a filevault server.",
		},
		{
			name: "not found",
			err:  &api.APIError{Status: 404, Code: "not_found", ErrorCode: 2001, Message: "object missing"},
			want: "hint: check the id; soft-deleted objects are hidden when serve_deleted is false.",
		},
		{
			name: "forbidden",
			err:  &api.APIError{Status: 403, Code: "forbidden", Message: "forbidden"},
			want: "hint: admin operations need FILEVAULT_ADMIN_TOKEN matching the server's admin_token_hash.",
		},
		{
			name: "internal",
			err:  &api.APIError{Status: 500, Code: "internal", Message: "internal error"},
			want: "hint: server returned an internal error; check server logs for details.",
		},
		{
			name: "backend",
			err:  &api.APIError{Status: 502, Code: "backend_unavailable", Message: "internal error"},
			want: "hint: every configured write backend failed; check remote storage settings and server logs.",
		},
		{
			name: "timeout",
			err:  fmt.Errorf("get object: %w", context.DeadlineExceeded),
			want: "hint: request timed out; check server health or increase FILEVAULT_HTTP_TIMEOUT.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lines := formatCLIError(tc.err)
			if lines[0] != tc.err.Error() {
				t.Fatalf("first line = %q, want error text", lines[0])
			}
			if !containsLine(lines, tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, lines)
			}
		})
	}
}

func TestFormatCLIErrorPlain(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("id is required"))
	if len(lines) != 1 || lines[0] != "id is required" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if formatCLIError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
