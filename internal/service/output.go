package service

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/set-night/imagebroker/internal/domain"
)

// SaveRequest describes where an artifact goes. Path overrides the generated
// name; Subject names the edited image for the default edit filename.
type SaveRequest struct {
	Path    string
	Kind    domain.MediaKind
	Subject string
}

const maxNameAttempts = 1000

// OutputWriter persists artifacts to disk.
type OutputWriter struct {
	dir     string
	now     func() time.Time
	workDir func() (string, error)
}

func NewOutputWriter(dir string) *OutputWriter {
	return &OutputWriter{dir: dir, now: time.Now, workDir: os.Getwd}
}

func (w *OutputWriter) Dir() string {
	return w.dir
}

// Save writes data and returns the absolute path used. Requested paths
// always end in .png, replacing any other extension. Generated names never
// replace an existing file.
func (w *OutputWriter) Save(data []byte, req SaveRequest) (string, error) {
	if strings.TrimSpace(req.Path) == "" {
		millis := w.now().UnixMilli()
		stem := fmt.Sprintf("generated_%d", millis)
		if req.Kind == domain.MediaEdited {
			stem = fmt.Sprintf("%s_edited_%d", subjectName(req.Subject), millis)
		}
		return w.saveUnique(data, stem, ".png")
	}

	path, err := w.requestedPath(req.Path)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (w *OutputWriter) requestedPath(p string) (string, error) {
	path := strings.TrimSpace(p)
	if !filepath.IsAbs(path) {
		wd, err := w.workDir()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	return ForcePNG(filepath.Clean(path)), nil
}

func (w *OutputWriter) saveUnique(data []byte, stem, ext string) (string, error) {
	path, err := reservePath(w.dir, stem, ext)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove reserved file", "path", path, "error", rmErr)
		}
		return "", err
	}
	return path, nil
}

// reservePath creates an empty file named stem+ext in dir, or stem_N+ext
// when that name is taken, and returns its absolute path.
func reservePath(dir, stem, ext string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	for i := 0; i < maxNameAttempts; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(abs, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("reserve %s: %w", name, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s%s after %d attempts", stem, ext, maxNameAttempts)
}

// SaveUpload stores an image received from a chat client so it can be
// referenced later by its basename.
func (w *OutputWriter) SaveUpload(data []byte, mimeType string) (string, error) {
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return w.saveUnique(data, fmt.Sprintf("upload_%d", w.now().UnixMilli()), ext)
}

// ForcePNG replaces the extension of path with .png.
func ForcePNG(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}

func subjectName(subject string) string {
	base := filepath.Base(strings.TrimSpace(subject))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', ' ':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		return "image"
	}
	return base
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-image-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	var success bool
	defer func() {
		if !success {
			if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to remove temporary file", "path", tmp.Name(), "error", err)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move image into place: %w", err)
	}
	success = true
	return nil
}
