package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pdfType  = "application/pdf"
	docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// buildDOCX returns a minimal DOCX archive with one paragraph per entry.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p>")
		for i, part := range strings.Split(p, "\t") {
			if i > 0 {
				body.WriteString("<w:r><w:tab/></w:r>")
			}
			fmt.Fprintf(&body, "<w:r><w:t xml:space=\"preserve\">%s</w:t></w:r>", part)
		}
		body.WriteString("</w:p>")
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF returns a single-page PDF showing each line with Helvetica.
func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()

	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("0 -16 Td\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", line)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestValidate(t *testing.T) {
	body := strings.NewReader("x")
	tests := []struct {
		name    string
		upload  Upload
		format  Format
		wantErr error
	}{
		{name: "pdf", upload: Upload{Filename: "cv.pdf", ContentType: pdfType, Body: body}, format: FormatPDF},
		{name: "docx", upload: Upload{Filename: "CV.DOCX", ContentType: docxType, Body: body}, format: FormatDOCX},
		{name: "content type params", upload: Upload{Filename: "cv.pdf", ContentType: "application/pdf; charset=binary", Body: body}, format: FormatPDF},
		{name: "no body", upload: Upload{Filename: "cv.pdf", ContentType: pdfType}, wantErr: ErrNoFile},
		{name: "no name", upload: Upload{ContentType: pdfType, Body: body}, wantErr: ErrNoFile},
		{name: "doc", upload: Upload{Filename: "cv.doc", ContentType: "application/msword", Body: body}, wantErr: ErrUnsupportedFormat},
		{name: "txt", upload: Upload{Filename: "cv.txt", ContentType: "text/plain", Body: body}, wantErr: ErrUnsupportedFormat},
		{name: "mismatched type", upload: Upload{Filename: "cv.pdf", ContentType: "image/png", Body: body}, wantErr: ErrUnsupportedFormat},
		{name: "missing type", upload: Upload{Filename: "cv.pdf", Body: body}, wantErr: ErrUnsupportedFormat},
		{name: "too large", upload: Upload{Filename: "cv.pdf", ContentType: pdfType, Size: MaxUploadBytes + 1, Body: body}, wantErr: ErrFileTooLarge},
		{name: "at limit", upload: Upload{Filename: "cv.pdf", ContentType: pdfType, Size: MaxUploadBytes, Body: body}, format: FormatPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := Validate(tt.upload, MaxUploadBytes)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestExtractor_DOCX(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, MaxUploadBytes, zap.NewNop())
	ctx := context.Background()

	data := buildDOCX(t, "Jane   Doe", "Go\tRedis", "", "", "", "Postgres")
	f, err := e.Save(ctx, Upload{Filename: "cv.docx", ContentType: docxType, Body: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, f.Format)
	assert.Equal(t, int64(len(data)), f.Size)
	assert.Equal(t, dir, filepath.Dir(f.Path))

	text, err := e.ExtractText(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo Redis\n\nPostgres", text)

	e.Cleanup(f)
	assert.Empty(t, dirEntries(t, dir))
}

func TestExtractor_PDF(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, MaxUploadBytes, zap.NewNop())
	ctx := context.Background()

	f, err := e.Save(ctx, Upload{Filename: "cv.pdf", ContentType: pdfType, Body: bytes.NewReader(buildPDF(t, "Hello World", "Go Engineer"))})
	require.NoError(t, err)
	defer e.Cleanup(f)

	text, err := e.ExtractText(ctx, f)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello World")
	assert.Contains(t, text, "Go Engineer")
}

func TestExtractor_CorruptInput(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, MaxUploadBytes, zap.NewNop())
	ctx := context.Background()

	for _, name := range []string{"broken.pdf", "broken.docx"} {
		t.Run(name, func(t *testing.T) {
			f, err := e.Save(ctx, Upload{Filename: name, Body: strings.NewReader("definitely not a document")})
			require.NoError(t, err)

			_, err = e.ExtractText(ctx, f)
			assert.ErrorIs(t, err, ErrExtractionFailed)

			e.Cleanup(f)
			_, statErr := os.Stat(f.Path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestExtractor_SaveRejectsOversizedBody(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, 10, zap.NewNop())

	_, err := e.Save(context.Background(), Upload{Filename: "cv.pdf", Body: strings.NewReader(strings.Repeat("x", 11))})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, dirEntries(t, dir))
}

func TestExtractor_SaveRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, 0, nil)

	_, err := e.Save(context.Background(), Upload{Filename: "cv.doc", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Empty(t, dirEntries(t, dir))
}

func TestExtractor_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, MaxUploadBytes, zap.NewNop())

	f, err := e.Save(context.Background(), Upload{Filename: "cv.docx", Body: bytes.NewReader(buildDOCX(t, "x"))})
	require.NoError(t, err)
	defer e.Cleanup(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either outcome is acceptable when the work is this fast; a cancelled
	// context must never yield a non-extraction error.
	if _, err := e.ExtractText(ctx, f); err != nil {
		assert.ErrorIs(t, err, ErrExtractionFailed)
	}
}

func TestExtractor_DOCXSizeLimits(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "decompressed body over limit", body: strings.Repeat("A", int(MaxDocumentBytes)+1024)},
		{name: "text over limit", body: strings.Repeat("word ", MaxTextBytes/4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			e := NewExtractor(dir, MaxUploadBytes, zap.NewNop())
			ctx := context.Background()

			data := buildDOCX(t, tt.body)
			require.Less(t, int64(len(data)), MaxUploadBytes)

			f, err := e.Save(ctx, Upload{Filename: "cv.docx", ContentType: docxType, Body: bytes.NewReader(data)})
			require.NoError(t, err)
			defer e.Cleanup(f)

			start := time.Now()
			_, err = e.ExtractText(ctx, f)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtractionFailed)
			assert.ErrorIs(t, err, errDocumentTooLarge)
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestDocumentText_Limits(t *testing.T) {
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>` + strings.Repeat("A", 4096) + `</w:t></w:r></w:p></w:body></w:document>`

	_, err := documentText(context.Background(), &limitedReader{r: strings.NewReader(doc), n: 512})
	assert.ErrorIs(t, err, errDocumentTooLarge)

	text, err := documentText(context.Background(), &limitedReader{r: strings.NewReader(doc), n: int64(len(doc))})
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(text), 4096)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = documentText(ctx, strings.NewReader(doc))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_CleanupMissingFileIsSilent(t *testing.T) {
	e := NewExtractor(t.TempDir(), 0, zap.NewNop())
	assert.NotPanics(t, func() {
		e.Cleanup(&TempFile{Path: filepath.Join(t.TempDir(), "gone.pdf")})
		e.Cleanup(nil)
	})
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "line endings", input: "a\r\nb\rc", want: "a\nb\nc"},
		{name: "inline space", input: "Go \t  developer  here  ", want: "Go developer here"},
		{name: "blank runs", input: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "bullets kept", input: "• Built APIs\n- Led team", want: "• Built APIs\n- Led team"},
		{name: "outer trim", input: "\n\n  text  \n\n", want: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "héll", Excerpt("héllo", 4))
	assert.Equal(t, "hi", Excerpt("hi", 10))
	assert.Equal(t, "", Excerpt("hi", 0))
}

func TestNewMetadata(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMetadata("Go engineer résumé", FormatPDF, at)
	assert.Equal(t, FormatPDF, m.Format)
	assert.Equal(t, 18, m.Characters)
	assert.Equal(t, 3, m.Words)
	assert.Len(t, m.Hash, 64)
	assert.Equal(t, at, m.ExtractedAt)
}
