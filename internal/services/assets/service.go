package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/storage/blob"
)

// Asset describes one stored generation output.
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// SaveParams names where a generation output belongs.
type SaveParams struct {
	UserID      uuid.UUID
	ProjectID   *uuid.UUID
	Operation   catalog.Operation
	ContentType string
	Body        io.Reader
}

// Service stores generation outputs in the configured blob backend and hands
// back stable keys. Keys are scoped user/project so project deletion can sweep
// by prefix later.
type Service struct {
	store     blob.Store
	publicURL string
}

func NewService(store blob.Store, publicURL string) *Service {
	return &Service{store: store, publicURL: strings.TrimRight(publicURL, "/")}
}

// Save writes the output under a fresh key.
func (s *Service) Save(ctx context.Context, params SaveParams) (Asset, error) {
	if params.Body == nil {
		params.Body = bytes.NewReader(nil)
	}
	project := "unassigned"
	if params.ProjectID != nil {
		project = params.ProjectID.String()
	}
	key := fmt.Sprintf("users/%s/projects/%s/%s/%s", params.UserID, project, params.Operation, uuid.New())

	info, err := s.store.Put(ctx, key, params.Body, blob.PutOptions{
		ContentType: params.ContentType,
		Metadata: map[string]string{
			"operation": params.Operation.String(),
			"user_id":   params.UserID.String(),
		},
	})
	if err != nil {
		return Asset{}, fmt.Errorf("store asset: %w", err)
	}
	return Asset{
		Key:         key,
		URL:         s.urlFor(key),
		Size:        info.Size,
		ContentType: params.ContentType,
	}, nil
}

// Open returns the asset body for download.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, Asset, error) {
	reader, info, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, Asset{}, err
	}
	return reader, Asset{
		Key:         key,
		URL:         s.urlFor(key),
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

// Delete removes the asset.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

func (s *Service) urlFor(key string) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/" + key
}
