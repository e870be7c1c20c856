package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// TempFile is an upload staged on local disk.
type TempFile struct {
	Path   string
	Format Format
	Size   int64
}

// Extractor stages uploads in a directory and extracts their text.
type Extractor struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

// NewExtractor returns an extractor writing temporary files under dir.
func NewExtractor(dir string, maxBytes int64, logger *zap.Logger) *Extractor {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "resumes")
	}
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{dir: dir, maxBytes: maxBytes, logger: logger}
}

// Save copies the upload body to a uniquely named file. The returned file must
// be released with Cleanup. Bodies over the size limit are rejected with
// ErrFileTooLarge and nothing is left on disk.
func (e *Extractor) Save(_ context.Context, u Upload) (*TempFile, error) {
	if u.Body == nil {
		return nil, ErrNoFile
	}
	format, err := DetectFormat(u.Filename)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	pattern := strconv.FormatInt(time.Now().UnixMilli(), 10) + "-*." + string(format)
	f, err := os.CreateTemp(e.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(u.Body, e.maxBytes+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		e.remove(f.Name())
		return nil, fmt.Errorf("failed to write upload: %w", copyErr)
	case closeErr != nil:
		e.remove(f.Name())
		return nil, fmt.Errorf("failed to write upload: %w", closeErr)
	case n > e.maxBytes:
		e.remove(f.Name())
		return nil, fmt.Errorf("%w: upload exceeds the %d byte limit", ErrFileTooLarge, e.maxBytes)
	}

	return &TempFile{Path: f.Name(), Format: format, Size: n}, nil
}

// ExtractText returns the normalised text of a staged file.
func (e *Extractor) ExtractText(ctx context.Context, f *TempFile) (string, error) {
	if f == nil {
		return "", ErrNoFile
	}

	var extract func(context.Context, string) (string, error)
	switch f.Format {
	case FormatPDF:
		extract = extractPDF
	case FormatDOCX:
		extract = extractDOCX
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := extract(ctx, f.Path)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: %w", ErrExtractionFailed, r.err)
		}
		return CleanText(r.text), nil
	}
}

// Cleanup deletes a staged file. Failures are logged, never returned.
func (e *Extractor) Cleanup(f *TempFile) {
	if f == nil {
		return
	}
	e.remove(f.Path)
}

func (e *Extractor) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove temporary upload", zap.String("path", path), zap.Error(err))
	}
}
