package http

import (
	"net/http"

	"iuran/internal/ledger"
)

type provisionRequest struct {
	Year int `json:"year"`
}

type provisionResponse struct {
	Houses  int `json:"houses"`
	Months  int `json:"months"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// handleProvision creates missing obligation rows. Without a year it fills
// every month from the program epoch through the current month; with one
// it fills that calendar year. Safe to call repeatedly.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var (
		summary ledger.ProvisionSummary
		err     error
	)
	if req.Year == 0 {
		summary, err = s.provisioner.ProvisionToCurrent(r.Context())
	} else {
		summary, err = s.provisioner.ProvisionYear(r.Context(), req.Year)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, provisionResponse{
		Houses:  summary.Houses,
		Months:  summary.Months,
		Created: summary.Created,
		Failed:  summary.Failed,
	})
}
