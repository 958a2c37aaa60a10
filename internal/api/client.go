package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "FILEVAULT_HTTP_TIMEOUT"
	adminTokenEnvKey   = "FILEVAULT_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the filevault API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Health reports server status and the backend chains it reads and writes.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &resp)
	return resp, err
}

// PutObjects uploads files in one multipart request. Per-file failures are
// reported in the response items, not as an error.
func (c *Client) PutObjects(ctx context.Context, uploads []Upload, opts StoreOptions) (StoreResponse, error) {
	var resp StoreResponse
	if len(uploads) == 0 {
		return resp, fmt.Errorf("at least one file is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"owner_type": opts.OwnerType,
		"owner_id":   opts.OwnerID,
	}
	if opts.Temp {
		fields["temp"] = "true"
	}
	if opts.NoWatermark {
		fields["no_watermark"] = "true"
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return resp, err
		}
	}
	for _, upload := range uploads {
		if err := mw.WriteField("description", upload.Description); err != nil {
			return resp, err
		}
	}
	for _, upload := range uploads {
		if upload.Content == nil {
			return resp, fmt.Errorf("upload %q has no content", upload.Filename)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
		if upload.ContentType != "" {
			header.Set("Content-Type", upload.ContentType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return resp, err
		}
		if _, err := io.Copy(part, upload.Content); err != nil {
			return resp, fmt.Errorf("read %s: %w", upload.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/objects", &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.send(req, &resp)
	return resp, err
}

func (c *Client) GetObject(ctx context.Context, id string) (ObjectResponse, error) {
	var resp ObjectResponse
	err := c.do(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListObjects(ctx context.Context, ownerType, ownerID string) ([]ObjectResponse, error) {
	var resp []ObjectResponse
	query := url.Values{"owner_type": {ownerType}, "owner_id": {ownerID}}
	err := c.do(ctx, http.MethodGet, "/v1/objects", query, nil, &resp)
	return resp, err
}

func (c *Client) UpdateObject(ctx context.Context, id string, req ObjectUpdateRequest) (ObjectResponse, error) {
	var resp ObjectResponse
	err := c.do(ctx, http.MethodPatch, "/v1/objects/"+url.PathEscape(id), nil, req, &resp)
	return resp, err
}

func (c *Client) DeleteObject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/objects/"+url.PathEscape(id), nil, nil, nil)
}

// Dimensions predicts the size of an image rendition without rendering it.
func (c *Client) Dimensions(ctx context.Context, id, format string, crop bool) (DimensionsResponse, error) {
	var resp DimensionsResponse
	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}
	if crop {
		query.Set("crop", "1")
	}
	err := c.do(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(id)+"/dimensions", query, nil, &resp)
	return resp, err
}

// DataURI returns the body of id inlined as a data URI.
func (c *Client) DataURI(ctx context.Context, id string) (DataURIResponse, error) {
	var resp DataURIResponse
	err := c.do(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(id)+"/data-uri", nil, nil, &resp)
	return resp, err
}

// Download streams the body of id to w. Images are fetched through the
// image route; query carries format, crop and quality.
func (c *Client) Download(ctx context.Context, id string, query url.Values, w io.Writer) (string, error) {
	path := "/serve/" + url.PathEscape(id)
	if len(query) > 0 {
		path = "/serve-image/" + url.PathEscape(id)
	}
	return c.stream(ctx, path, query, w)
}

// DownloadOriginal streams an image without its watermark. It requires
// the admin token.
func (c *Client) DownloadOriginal(ctx context.Context, id string, query url.Values, w io.Writer) (string, error) {
	return c.stream(ctx, "/nowm-serve-image/"+url.PathEscape(id), query, w)
}

// Promote asks the server to copy temp objects to permanent storage.
func (c *Client) Promote(ctx context.Context, ids []string) (SweepResponse, error) {
	var resp SweepResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/promote", nil, PromoteRequest{IDs: ids}, &resp)
	return resp, err
}

func (c *Client) stream(ctx context.Context, path string, query url.Values, w io.Writer) (string, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.setAdminHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	c.setAdminHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
	}
	return apiErr
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
