package ingestion

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"rsc.io/pdf"
)

// extractPDF reads the text runs of every page. rsc.io/pdf panics on some
// malformed inputs, so panics are turned into errors.
func extractPDF(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}

	doc, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if sb.Len() > MaxTextBytes {
			return "", fmt.Errorf("text: %w", errDocumentTooLarge)
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		writePageText(&sb, page.Content().Text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// writePageText joins glyph runs, starting a new line when the baseline moves
// and inserting a space when runs are visibly apart.
func writePageText(sb *strings.Builder, runs []pdf.Text) {
	var prev *pdf.Text
	for i := range runs {
		t := &runs[i]
		if t.S == "" {
			continue
		}
		if prev != nil {
			size := math.Max(t.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > size*0.5:
				sb.WriteByte('\n')
			case t.X-(prev.X+prev.W) > size*0.15:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		prev = t
	}
}
