package server

import (
	"net/http"
	"strings"

	"github.com/raterudder/cezhdo/pkg/catalog"
	"github.com/raterudder/cezhdo/pkg/hdo"
)

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, catalog.Codes())
}

type codeResponse struct {
	Code string       `json:"code"`
	Data hdo.Schedule `json:"data"`
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sched, ok := catalog.Lookup(code)
	if !ok {
		writeJSONError(w, "unknown code", http.StatusNotFound)
		return
	}
	writeJSON(w, codeResponse{Code: strings.ToUpper(code), Data: sched})
}
