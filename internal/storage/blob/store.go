package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/storyreel/backend/internal/config"
)

// ErrNotFound is returned when the requested asset does not exist in the
// backend.
var ErrNotFound = errors.New("asset not found")

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// Store persists generated assets (frames, clips, voiceover audio, music
// stems). Keys are forward-slash paths scoped by user and project.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by assets.storage.
func New(ctx context.Context, cfg config.AssetsConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "s3":
		awsCfg, err := loadS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return newS3Store(cfg.S3, awsCfg)
	default:
		return newLocalStore(cfg.Local)
	}
}
