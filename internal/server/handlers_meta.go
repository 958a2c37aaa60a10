package server

import (
	"net/http"

	"filevault/internal/api"
	"filevault/internal/backend"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok"}
	if registry := s.service.Backends(); registry != nil {
		resp.Chains = map[string]api.ChainInfo{}
		for _, chain := range []*backend.Chain{registry.Permanent(), registry.Temp()} {
			if chain != nil {
				resp.Chains[chain.Name()] = chainInfo(chain)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func chainInfo(chain *backend.Chain) api.ChainInfo {
	info := api.ChainInfo{Read: []string{}, Write: []string{}}
	for _, b := range chain.Readers() {
		info.Read = append(info.Read, b.Name())
	}
	for _, b := range chain.Writers() {
		info.Write = append(info.Write, b.Name())
	}
	return info
}
