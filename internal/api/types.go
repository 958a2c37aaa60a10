package api

import (
	"io"

	"filevault/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ChainInfo lists the backend names of one chain in order.
type ChainInfo struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status string               `json:"status"`
	Chains map[string]ChainInfo `json:"chains,omitempty"`
}

// ObjectResponse is an object record plus the path it is served from.
type ObjectResponse struct {
	models.Object
	URL string `json:"url"`
}

// StoreItemResponse reports one uploaded part of a multipart store.
// Exactly one of Object and Error is set.
type StoreItemResponse struct {
	Index     int             `json:"index"`
	Filename  string          `json:"filename,omitempty"`
	Object    *ObjectResponse `json:"object,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	ErrorCode int             `json:"error_code,omitempty"`
}

// StoreResponse is the reply to POST /v1/objects.
type StoreResponse struct {
	Items  []StoreItemResponse `json:"items"`
	Stored int                 `json:"stored"`
	Failed int                 `json:"failed"`
}

// ObjectUpdateRequest defines the payload for PATCH /v1/objects/{id}.
type ObjectUpdateRequest struct {
	Filename    *string `json:"filename,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
	Description *string `json:"description,omitempty"`
	OwnerType   *string `json:"owner_type,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	NoWatermark *bool   `json:"no_watermark,omitempty"`
}

// DimensionsResponse is the predicted size of an image rendition.
type DimensionsResponse struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
	Crop   bool   `json:"crop"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DataURIResponse carries an object body inlined as a data URI.
type DataURIResponse struct {
	ID      string `json:"id"`
	DataURI string `json:"data_uri"`
}

// PromoteRequest lists the temp objects to copy to permanent storage.
type PromoteRequest struct {
	IDs []string `json:"ids"`
}

// SweepResponse summarizes one promotion or migration pass.
type SweepResponse struct {
	Scanned int `json:"scanned"`
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Upload is one file to send in a multipart store.
type Upload struct {
	Filename    string
	ContentType string
	Description string
	Content     io.Reader
}

// StoreOptions apply to every file of one multipart store.
type StoreOptions struct {
	Temp        bool
	OwnerType   string
	OwnerID     string
	NoWatermark bool
}
