// Package storage persists generated artifacts to a filesystem root
// and maps them to public URLs.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Meta describes the artifact being stored.
type Meta struct {
	OwnerID     string
	Category    string
	ContentType string
}

// Stored locates a persisted artifact.
type Stored struct {
	URL  string
	Path string
}

// Store is the persistence collaborator for the image pipeline.
type Store interface {
	Store(ctx context.Context, data []byte, meta Meta) (*Stored, error)
}

// FileStore writes artifacts under a filesystem root. The filesystem
// is injected so tests can run against an in-memory one.
type FileStore struct {
	fs      afero.Fs
	root    string
	baseURL string
	nowFunc func() time.Time
}

// NewFileStore creates a store rooted at root, serving URLs under
// baseURL.
func NewFileStore(fs afero.Fs, root, baseURL string) *FileStore {
	return &FileStore{
		fs:      fs,
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		nowFunc: time.Now,
	}
}

// Store writes data under a collision-resistant name derived from the
// owner, the current time, and a short random token. Failures are not
// retried.
func (s *FileStore) Store(ctx context.Context, data []byte, meta Meta) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("refusing to store empty artifact")
	}

	owner := meta.OwnerID
	if owner == "" {
		owner = "anonymous"
	}

	name := fmt.Sprintf("%s-%s%s",
		s.nowFunc().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		extension(meta.ContentType))
	rel := path.Join(owner, name)
	full := path.Join(s.root, rel)

	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	return &Stored{
		URL:  s.baseURL + "/" + rel,
		Path: full,
	}, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
