package server

import (
	"net/http"

	"filevault/internal/api"
	"filevault/internal/objects"
)

func (s *Server) handleAdminPromote(w http.ResponseWriter, r *http.Request) {
	var req api.PromoteRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if err := requireIDs(req.IDs); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := s.sweeper.PromoteIDs(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sweepResponse(result))
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.sweepLimiter, "sweep", func() {
		promoted, migrated, err := s.sweeper.RunOnce(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]api.SweepResponse{
			"promoted": sweepResponse(promoted),
			"migrated": sweepResponse(migrated),
		})
	})
}

func sweepResponse(result objects.SweepResult) api.SweepResponse {
	return api.SweepResponse{
		Scanned: result.Scanned,
		Copied:  result.Copied,
		Skipped: result.Skipped,
		Failed:  result.Failed,
	}
}
