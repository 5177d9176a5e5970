package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"iuran/internal/core"
)

const maxUploadBytes = 10 << 20

type uploadResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateUpload stores a payment-proof file and records its URL.
// multipart fields: "file" (required) and "title".
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	if s.proofs == nil {
		s.writeError(w, r, fmt.Errorf("%w: proof storage not configured", core.ErrStorageUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrInvalidInput))
		return
	}
	defer file.Close()

	url, err := s.proofs.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("store proof: %w", err))
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	up := core.Upload{
		ID:        uuid.NewString(),
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.directory.CreateUpload(r.Context(), up); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		ID:        up.ID,
		Title:     up.Title,
		URL:       up.URL,
		CreatedAt: up.CreatedAt,
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.directory.ListUploads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]uploadResponse, len(uploads))
	for i, up := range uploads {
		out[i] = uploadResponse{ID: up.ID, Title: up.Title, URL: up.URL, CreatedAt: up.CreatedAt}
	}
	s.writeJSON(w, http.StatusOK, out)
}
