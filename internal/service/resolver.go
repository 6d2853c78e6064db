package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

// Resolver turns reference strings into image payloads.
type Resolver struct {
	outputDir string
	workDir   func() (string, error)
}

func NewResolver(outputDir string) *Resolver {
	return &Resolver{outputDir: outputDir, workDir: os.Getwd}
}

// ResolveOrPath resolves ref against the session history first ("last",
// "history:N"). Anything that does not resolve there, including malformed
// history references, is treated as a file path: absolute, relative to the
// working directory, and finally by basename inside the output directory.
func (r *Resolver) ResolveOrPath(ctx context.Context, history *MediaHistory, ref string) (domain.ImageData, error) {
	if history != nil {
		if idx, ok := history.index(ref); ok {
			rec := history.records[idx]
			return domain.ImageData{
				Data:     rec.Data,
				MimeType: rec.MimeType,
				Source:   fmt.Sprintf("%s (%s)", HistoryRef(idx), rec.StoredPath),
				Path:     rec.StoredPath,
			}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.ImageData{}, err
	}

	path, err := r.locate(ref)
	if err != nil {
		return domain.ImageData{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageData{}, fmt.Errorf("read image %s: %w", path, err)
	}

	return domain.ImageData{
		Data:     data,
		MimeType: DetectMimeType(data, path),
		Source:   path,
		Path:     path,
	}, nil
}

func (r *Resolver) locate(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty image reference", domain.ErrNotFound)
	}

	path := trimmed
	if !filepath.IsAbs(path) {
		wd, err := r.workDir()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	if isFile(path) {
		return path, nil
	}

	if r.outputDir != "" {
		fallback := filepath.Join(r.outputDir, filepath.Base(trimmed))
		if isFile(fallback) {
			return fallback, nil
		}
	}

	if IsHistoryRef(trimmed) {
		return "", fmt.Errorf("%w: %q is not in this session's image history", domain.ErrNotFound, ref)
	}
	return "", fmt.Errorf("%w: image %q", domain.ErrNotFound, ref)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ResolveAll resolves refs concurrently, keeping input order. Failures are
// returned as warnings and the failed references are omitted.
func (r *Resolver) ResolveAll(ctx context.Context, history *MediaHistory, refs []string) ([]domain.ImageData, []string) {
	if len(refs) == 0 {
		return nil, nil
	}

	results := make([]domain.ImageData, len(refs))
	errs := make([]error, len(refs))

	var g errgroup.Group
	g.SetLimit(config.MaxImages)
	for i, ref := range refs {
		g.Go(func() error {
			results[i], errs[i] = r.ResolveOrPath(ctx, history, ref)
			return nil
		})
	}
	// Per-reference errors are collected in errs, so Wait never fails.
	g.Wait() //nolint:errcheck

	images := make([]domain.ImageData, 0, len(refs))
	var warnings []string
	for i, ref := range refs {
		if errs[i] != nil {
			warnings = append(warnings, fmt.Sprintf("image %q skipped: %v", ref, errs[i]))
			continue
		}
		images = append(images, results[i])
	}
	return images, warnings
}

var extMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// DetectMimeType sniffs the payload, then falls back to the file extension
// and finally to PNG.
func DetectMimeType(data []byte, path string) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if mt, ok := extMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/png"
}
