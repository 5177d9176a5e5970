package http

import (
	"net/http"

	"iuran/internal/auth"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.directory.ListTransactions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = toTransactionResponse(t)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.directory.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionResponse(*tx))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actor, ok := auth.ActorFrom(r.Context()); ok {
		in.CreatedBy = actor.Username
	}

	tx, err := s.reconciler.CreateTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTransactionResponse(*tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.reconciler.UpdateTransaction(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionResponse(*tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.reconciler.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
