// Package proofs stores payment-proof files. The API accepts an upload,
// hands it to a Store, and records only the returned URL; the Drive and
// local backends decide where the bytes actually live.
package proofs

import (
	"context"
	"io"
)

type Store interface {
	// Save persists the file and returns the URL to record on the
	// transaction.
	Save(ctx context.Context, name, contentType string, r io.Reader) (url string, err error)
}
