package ingestion

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

const (
	// MaxDocumentBytes bounds the decompressed size of word/document.xml.
	MaxDocumentBytes = 8 * MaxUploadBytes
	// MaxTextBytes bounds the text collected from a single document.
	MaxTextBytes = 1 << 20
)

var errDocumentTooLarge = errors.New("document exceeds the size limit")

// limitedReader fails with errDocumentTooLarge once more than n bytes are read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var one [1]byte
		if n, _ := l.r.Read(one[:]); n > 0 {
			return 0, errDocumentTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// extractDOCX walks word/document.xml and collects the w:t runs, keeping
// paragraph, tab and line breaks.
func extractDOCX(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBody, err)
		}
		defer rc.Close()
		if f.UncompressedSize64 > uint64(MaxDocumentBytes) {
			return "", fmt.Errorf("%s: %w", docxBody, errDocumentTooLarge)
		}
		return documentText(ctx, &limitedReader{r: rc, n: MaxDocumentBytes})
	}
	return "", fmt.Errorf("docx has no %s", docxBody)
}

func documentText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if sb.Len() > MaxTextBytes {
			return "", fmt.Errorf("text: %w", errDocumentTooLarge)
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errDocumentTooLarge) {
			return "", fmt.Errorf("%s: %w", docxBody, err)
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}
