package http

import (
	"fmt"
	"net/http"

	"iuran/internal/core"
)

func (s *Server) handleListHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := s.directory.ListHouses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]houseResponse, len(houses))
	for i, h := range houses {
		out[i] = toHouseResponse(h)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateHouse(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	h := req.toCore()
	if err := h.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.directory.CreateHouse(r.Context(), h); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.directory.GetHouse(r.Context(), h.HouseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toHouseResponse(*created))
}

func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	houseID := r.PathValue("id")
	house, err := s.directory.GetHouse(r.Context(), houseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	obligations, err := s.directory.ListObligations(r.Context(), houseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	statuses, err := s.directory.ListMonthStatuses(r.Context(), houseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail := houseDetailResponse{
		houseResponse: toHouseResponse(*house),
		Obligations:   make([]obligationResponse, len(obligations)),
		MonthStatuses: make([]monthStatusResponse, len(statuses)),
	}
	for i, ob := range obligations {
		detail.Obligations[i] = toObligationResponse(ob)
	}
	for i, ms := range statuses {
		detail.MonthStatuses[i] = toMonthStatusResponse(ms)
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateHouse(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	h := req.toCore()
	h.HouseID = r.PathValue("id")
	if err := h.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.directory.UpdateHouse(r.Context(), h); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.directory.GetHouse(r.Context(), h.HouseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toHouseResponse(*updated))
}

func (s *Server) handleDeleteHouse(w http.ResponseWriter, r *http.Request) {
	if err := s.directory.DeleteHouse(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMonthStatus(w http.ResponseWriter, r *http.Request) {
	houseID := r.PathValue("id")
	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req monthStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	house, err := s.directory.GetHouse(r.Context(), houseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Unspecified fields inherit the house defaults.
	ms := core.MonthStatus{
		Month:              month,
		Occupancy:          house.OccupancyStatus,
		CommunityFeeDue:    true,
		NeighborhoodFeeDue: house.NeighborhoodFee.Rupiah > 0,
	}
	if req.Occupancy != "" {
		ms.Occupancy = core.Occupancy(req.Occupancy)
	}
	if !ms.Occupancy.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown occupancy %q", core.ErrInvalidInput, req.Occupancy))
		return
	}
	if req.CommunityFeeDue != nil {
		ms.CommunityFeeDue = *req.CommunityFeeDue
	}
	if req.NeighborhoodFeeDue != nil {
		ms.NeighborhoodFeeDue = *req.NeighborhoodFeeDue
	}

	if err := s.directory.SetMonthStatus(r.Context(), houseID, ms); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMonthStatusResponse(ms))
}
