// Package ingestion validates uploaded résumés, stages them on disk and extracts their text.
package ingestion

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// MaxUploadBytes is the largest accepted résumé.
const MaxUploadBytes int64 = 5 << 20

var (
	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file uploaded")
	// ErrUnsupportedFormat is returned for anything other than PDF or DOCX.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrExtractionFailed is returned when a document cannot be read.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Format is a supported document format.
type Format string

// Supported formats.
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var formatsByExt = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
}

var contentTypes = map[Format][]string{
	FormatPDF:  {"application/pdf"},
	FormatDOCX: {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// Upload is a résumé received from a client.
type Upload struct {
	Filename    string
	ContentType string
	// Size is the declared size; zero when unknown.
	Size int64
	Body io.Reader
}

// DetectFormat returns the format implied by the file extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, ok := formatsByExt[ext]
	if !ok {
		if ext == ".doc" {
			return "", fmt.Errorf("%w: DOC files are not supported, please upload PDF or DOCX", ErrUnsupportedFormat)
		}
		return "", fmt.Errorf("%w: %q, only PDF and DOCX are allowed", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// Validate checks presence, extension, declared content type and declared size.
func Validate(u Upload, maxBytes int64) (Format, error) {
	if u.Body == nil || strings.TrimSpace(u.Filename) == "" {
		return "", ErrNoFile
	}

	format, err := DetectFormat(u.Filename)
	if err != nil {
		return "", err
	}

	if !contentTypeAllowed(format, u.ContentType) {
		return "", fmt.Errorf("%w: content type %q does not match %s", ErrUnsupportedFormat, u.ContentType, format)
	}

	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	if u.Size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, u.Size, maxBytes)
	}
	return format, nil
}

func contentTypeAllowed(format Format, declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	for _, ct := range contentTypes[format] {
		if strings.EqualFold(mediaType, ct) {
			return true
		}
	}
	return false
}
