package server

import (
	"fmt"
	"net/http"
	"strings"

	"filevault/internal/auth"
)

// isAdmin reports whether r carries a bearer token matching the configured
// admin hash. Without a hash nobody is admin.
func (s *Server) isAdmin(r *http.Request) bool {
	token := bearerToken(r)
	if token == "" || s.opts.AdminTokenHash == "" {
		return false
	}
	return auth.VerifyToken(s.opts.AdminTokenHash, token)
}

func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("admin token required")))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
