package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/imagebroker/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestResolver(outputDir, workDir string) *Resolver {
	r := NewResolver(outputDir)
	r.workDir = func() (string, error) { return workDir, nil }
	return r
}

func TestResolver_HistoryHitSkipsDisk(t *testing.T) {
	h := NewMediaHistory(10)
	h.Append(domain.MediaRecord{StoredPath: "/gone/a.png", Data: []byte("a"), MimeType: "image/png"})
	h.Append(domain.MediaRecord{StoredPath: "/gone/b.png", Data: []byte("b"), MimeType: "image/jpeg"})

	r := newTestResolver(t.TempDir(), t.TempDir())

	img, err := r.ResolveOrPath(context.Background(), h, "last")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), img.Data)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, "/gone/b.png", img.Path)
	assert.Contains(t, img.Source, "history:1")

	img, err = r.ResolveOrPath(context.Background(), h, "history:0")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), img.Data)
}

func TestResolver_Paths(t *testing.T) {
	outDir := t.TempDir()
	workDir := t.TempDir()
	r := newTestResolver(outDir, workDir)
	ctx := context.Background()

	abs := writeFile(t, t.TempDir(), "abs.png", pngHeader)
	img, err := r.ResolveOrPath(ctx, nil, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, img.Path)
	assert.Equal(t, "image/png", img.MimeType)

	rel := writeFile(t, workDir, "sub/rel.jpg", []byte("not really a jpeg"))
	img, err = r.ResolveOrPath(ctx, nil, "sub/rel.jpg")
	require.NoError(t, err)
	assert.Equal(t, rel, img.Path)
	assert.Equal(t, "image/jpeg", img.MimeType)

	fallback := writeFile(t, outDir, "generated_1.png", pngHeader)
	img, err = r.ResolveOrPath(ctx, nil, "elsewhere/generated_1.png")
	require.NoError(t, err)
	assert.Equal(t, fallback, img.Path)
}

func TestResolver_NotFound(t *testing.T) {
	r := newTestResolver(t.TempDir(), t.TempDir())
	ctx := context.Background()

	_, err := r.ResolveOrPath(ctx, NewMediaHistory(10), "missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.ResolveOrPath(ctx, NewMediaHistory(10), "last")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "history")

	_, err = r.ResolveOrPath(ctx, NewMediaHistory(10), "history:-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.ResolveOrPath(ctx, nil, "  ")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolver_DirectoryIsNotAnImage(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workDir, "dir.png"), 0o755))

	r := newTestResolver(t.TempDir(), workDir)
	_, err := r.ResolveOrPath(context.Background(), nil, "dir.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolver_ResolveAllKeepsOrder(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, workDir, "one.png", append(append([]byte{}, pngHeader...), '1'))
	writeFile(t, workDir, "two.png", append(append([]byte{}, pngHeader...), '2'))

	h := NewMediaHistory(10)
	h.Append(domain.MediaRecord{StoredPath: "/h/0.png", Data: []byte("h0"), MimeType: "image/png"})

	r := newTestResolver(t.TempDir(), workDir)
	images, warnings := r.ResolveAll(context.Background(), h, []string{"two.png", "nope.png", "history:0", "one.png"})

	require.Len(t, images, 3)
	assert.Equal(t, byte('2'), images[0].Data[len(images[0].Data)-1])
	assert.Equal(t, []byte("h0"), images[1].Data)
	assert.Equal(t, byte('1'), images[2].Data[len(images[2].Data)-1])

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "nope.png")
}

func TestResolver_ResolveAllEmpty(t *testing.T) {
	r := newTestResolver(t.TempDir(), t.TempDir())
	images, warnings := r.ResolveAll(context.Background(), nil, nil)
	assert.Empty(t, images)
	assert.Empty(t, warnings)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMimeType(pngHeader, "x.jpg"))
	assert.Equal(t, "image/jpeg", DetectMimeType([]byte("\xff\xd8\xff\xe0"), "x.png"))
	assert.Equal(t, "image/webp", DetectMimeType([]byte("plain"), "x.WEBP"))
	assert.Equal(t, "image/png", DetectMimeType([]byte("plain"), "x.bin"))
}
