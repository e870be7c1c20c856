package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// Metadata describes an extracted résumé.
type Metadata struct {
	Format      Format    `json:"format"`
	Characters  int       `json:"characters"`
	Words       int       `json:"words"`
	Hash        string    `json:"hash"` // SHA256 hex digest of the extracted text
	ExtractedAt time.Time `json:"extractedAt"`
}

// NewMetadata summarises extracted text.
func NewMetadata(text string, format Format, at time.Time) *Metadata {
	return &Metadata{
		Format:      format,
		Characters:  utf8.RuneCountInString(text),
		Words:       len(strings.Fields(text)),
		Hash:        computeHash(text),
		ExtractedAt: at.UTC(),
	}
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
