// Package local stores payment proofs on the server's own disk, for
// deployments without a Drive folder.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"iuran/internal/proofs"
)

type Store struct {
	dir string
	mu  sync.Mutex
}

var _ proofs.Store = (*Store)(nil)

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create proof directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir is the directory the HTTP server mounts as the /proofs/ static root.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the file under a unique name and returns the URL path the
// API serves it from.
func (s *Store) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	filename := uuid.NewString()
	if ext := filepath.Ext(sanitize(name)); ext != "" {
		filename += ext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write proof file: %w", err)
	}
	return "/proofs/" + filename, nil
}

// sanitize strips path separators so a crafted upload name cannot escape
// the proof directory.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return filepath.Base(name)
}
