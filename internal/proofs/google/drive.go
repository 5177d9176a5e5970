// Package google stores payment proofs in a Google Drive folder using
// service-account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"iuran/internal/proofs"
)

type Client struct {
	svc      *drive.Service
	folderID string
}

var _ proofs.Store = (*Client)(nil)

// New builds a Drive client. Credentials come from inline JSON when
// provided, else from a file path; with neither, Application Default
// Credentials apply.
func New(ctx context.Context, folderID, credentialsFile, credentialsJSON string) (*Client, error) {
	if folderID == "" {
		return nil, errors.New("missing Drive folder id")
	}

	opts := []option.ClientOption{option.WithScopes(drive.DriveFileScope)}
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &Client{svc: svc, folderID: folderID}, nil
}

func (c *Client) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	meta := &drive.File{
		Name:    name,
		Parents: []string{c.folderID},
	}
	created, err := c.svc.Files.Create(meta).
		Media(r, googleapi.ContentType(contentType)).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload proof %s: %w", name, err)
	}
	return fileLink(created.Id, created.WebViewLink), nil
}

// fileLink prefers the API-reported view link and falls back to the
// canonical Drive URL when the field was not populated.
func fileLink(id, webViewLink string) string {
	if webViewLink != "" {
		return webViewLink
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", id)
}
