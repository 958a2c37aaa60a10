package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestPutObjectsSendsMultipart(t *testing.T) {
	var gotParts []string
	var gotDescriptions []string
	var gotTemp, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/objects" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for _, header := range r.MultipartForm.File["file"] {
			gotParts = append(gotParts, header.Filename+":"+header.Header.Get("Content-Type"))
		}
		gotDescriptions = r.MultipartForm.Value["description"]
		gotTemp = r.FormValue("temp")
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(StoreResponse{Stored: 2, Items: []StoreItemResponse{{Index: 0}, {Index: 1}}})
	}))
	defer srv.Close()

	t.Setenv(adminTokenEnvKey, "secret-admin-token")
	client := NewClient(srv.URL + "/")
	resp, err := client.PutObjects(context.Background(), []Upload{
		{Filename: "a.txt", ContentType: "text/plain", Description: "first", Content: strings.NewReader("a")},
		{Filename: "b.png", Content: strings.NewReader("b")},
	}, StoreOptions{Temp: true})
	if err != nil {
		t.Fatalf("put objects: %v", err)
	}
	if resp.Stored != 2 || len(resp.Items) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(gotParts) != 2 || gotParts[0] != "a.txt:text/plain" || !strings.HasPrefix(gotParts[1], "b.png:") {
		t.Fatalf("unexpected parts: %v", gotParts)
	}
	if len(gotDescriptions) != 2 || gotDescriptions[0] != "first" || gotDescriptions[1] != "" {
		t.Fatalf("unexpected descriptions: %v", gotDescriptions)
	}
	if gotTemp != "true" {
		t.Fatalf("expected temp=true, got %q", gotTemp)
	}
	if gotAuth != "Bearer secret-admin-token" {
		t.Fatalf("expected admin bearer token, got %q", gotAuth)
	}

	if _, err := client.PutObjects(context.Background(), nil, StoreOptions{}); err == nil {
		t.Fatal("expected error for empty upload list")
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "object missing", Code: "not_found", ErrorCode: 2001})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetObject(context.Background(), "0123")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.ErrorCode != 2001 || apiErr.Code != "not_found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if apiErr.Error() != "not_found (2001): object missing" {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
	if !apiErr.NotFound() {
		t.Fatal("expected NotFound to report true")
	}
}

func TestDownloadPicksRoute(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var buf bytes.Buffer
	contentType, err := client.Download(context.Background(), "abc", nil, &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if contentType != "text/plain" || buf.String() != "body" {
		t.Fatalf("unexpected download %q %q", contentType, buf.String())
	}
	if _, err := client.Download(context.Background(), "abc", url.Values{"format": {"10x10"}}, io.Discard); err != nil {
		t.Fatalf("download image: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/serve/abc" || paths[1] != "/serve-image/abc?format=10x10" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestDimensionsQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DimensionsResponse{ID: "abc", Width: 400, Height: 300})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Dimensions(context.Background(), "abc", "400x400", true)
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	if got != "/v1/objects/abc/dimensions?crop=1&format=400x400" {
		t.Fatalf("unexpected request %q", got)
	}
	if resp.Width != 400 || resp.Height != 300 {
		t.Fatalf("unexpected response %+v", resp)
	}
}
