package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Object records.
	mux.HandleFunc("POST /v1/objects", s.handleStoreObjects)
	mux.HandleFunc("GET /v1/objects", s.handleListObjects)
	mux.HandleFunc("GET /v1/objects/{id}", s.handleGetObject)
	mux.HandleFunc("PATCH /v1/objects/{id}", s.handleUpdateObject)
	mux.HandleFunc("PUT /v1/objects/{id}/content", s.handleReplaceContent)
	mux.HandleFunc("DELETE /v1/objects/{id}", s.handleDeleteObject)
	mux.HandleFunc("GET /v1/objects/{id}/dimensions", s.handleObjectDimensions)
	mux.HandleFunc("GET /v1/objects/{id}/data-uri", s.handleObjectDataURI)

	// Bodies.
	mux.HandleFunc("GET /serve/{id}", s.handleServe)
	mux.HandleFunc("GET /serve-image/{id}", s.handleServeImage)
	mux.HandleFunc("GET /nowm-serve-image/{id}", s.handleServeImageOriginal)

	// Admin.
	mux.HandleFunc("POST /v1/admin/promote", s.withAdmin(s.handleAdminPromote))
	mux.HandleFunc("POST /v1/admin/sweep", s.withAdmin(s.handleAdminSweep))

	return s.withRequestLogging(mux)
}
