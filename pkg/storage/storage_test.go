package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWritesArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", "https://cdn.example.com/images")
	s.nowFunc = func() time.Time {
		return time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)
	}

	stored, err := s.Store(context.Background(), []byte("png-bytes"), Meta{
		OwnerID:     "user-7",
		Category:    "generated",
		ContentType: "image/png",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.Path, "/data/user-7/20260214T103000-"), "path %q", stored.Path)
	assert.True(t, strings.HasSuffix(stored.Path, ".png"))
	assert.True(t, strings.HasPrefix(stored.URL, "https://cdn.example.com/images/user-7/"))

	data, err := afero.ReadFile(fs, stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestStoreNamesDoNotCollide(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", "http://localhost/images")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		stored, err := s.Store(context.Background(), []byte("x"), Meta{OwnerID: "u", ContentType: "image/jpeg"})
		require.NoError(t, err)
		assert.False(t, seen[stored.Path], "duplicate path %s", stored.Path)
		seen[stored.Path] = true
	}
}

func TestStoreAnonymousOwner(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", "http://localhost/images")

	stored, err := s.Store(context.Background(), []byte("x"), Meta{ContentType: "image/webp"})
	require.NoError(t, err)
	assert.Contains(t, stored.Path, "/anonymous/")
	assert.True(t, strings.HasSuffix(stored.Path, ".webp"))
}

func TestStoreRejectsEmptyData(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "/data", "http://localhost")
	_, err := s.Store(context.Background(), nil, Meta{OwnerID: "u"})
	assert.Error(t, err)
}

func TestStoreHonorsContext(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "/data", "http://localhost")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Store(ctx, []byte("x"), Meta{OwnerID: "u"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreUnknownContentType(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "/data", "http://localhost")
	stored, err := s.Store(context.Background(), []byte("x"), Meta{OwnerID: "u", ContentType: "application/x-thing"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Path, ".bin"))
}
