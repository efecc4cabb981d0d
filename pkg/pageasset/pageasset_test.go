package pageasset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	diskPage     = `<!DOCTYPE html><html><head><title>Disk</title></head><body><p>disk</p></body></html>`
	fallbackPage = `<html><head><title>Fallback</title></head><body></body></html>`
)

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(diskPage), 0o644))

	p := New(path, []byte(fallbackPage), slog.Default())
	require.NoError(t, p.Load())

	content, ok := p.Content()
	assert.True(t, ok)
	assert.Equal(t, diskPage, string(content))
	assert.Equal(t, "Disk", p.Title())
}

func TestLoadFallsBackWhenFileMissing(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing.html"), []byte(fallbackPage), slog.Default())
	require.NoError(t, p.Load())

	content, ok := p.Content()
	assert.True(t, ok)
	assert.Equal(t, fallbackPage, string(content))
	assert.Equal(t, "Fallback", p.Title())
}

func TestLoadUnavailable(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing.html"), nil, slog.Default())

	err := p.Load()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, ok := p.Content()
	assert.False(t, ok)
}

func TestLoadRejectsNonHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte("   "), 0o644))

	p := New(path, nil, slog.Default())
	assert.ErrorIs(t, p.Load(), ErrNotHTML)

	require.NoError(t, os.WriteFile(path, []byte("just some words"), 0o644))
	assert.ErrorIs(t, p.Load(), ErrNotHTML)
}

func TestReloadKeepsLastGoodDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(diskPage), 0o644))

	p := New(path, []byte(fallbackPage), slog.Default())
	require.NoError(t, p.Load())

	// an editor truncating the file before writing it back
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.ErrorIs(t, p.Load(), ErrNotHTML)

	content, ok := p.Content()
	assert.True(t, ok)
	assert.Equal(t, diskPage, string(content))
	assert.Equal(t, "Disk", p.Title())
}

func TestLoadBrokenFileServesFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte("just some words"), 0o644))

	p := New(path, []byte(fallbackPage), slog.Default())
	assert.ErrorIs(t, p.Load(), ErrNotHTML)

	content, ok := p.Content()
	assert.True(t, ok)
	assert.Equal(t, fallbackPage, string(content))
	assert.Equal(t, "Fallback", p.Title())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(diskPage), 0o644))

	p := New(path, nil, slog.Default())
	require.NoError(t, p.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Watch(ctx)

	updated := `<html><head><title>Edited</title></head><body>edited</body></html>`
	require.Eventually(t, func() bool {
		// rewrite until the watcher is registered and picks the change up
		_ = os.WriteFile(path, []byte(updated), 0o644)
		return p.Title() == "Edited"
	}, 2*time.Second, 20*time.Millisecond)

	content, ok := p.Content()
	assert.True(t, ok)
	assert.Equal(t, updated, string(content))
}

func TestWatchWithoutPath(t *testing.T) {
	p := New("", []byte(fallbackPage), slog.Default())
	assert.NoError(t, p.Watch(context.Background()))
}
