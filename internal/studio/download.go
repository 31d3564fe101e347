package studio

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"product-studio-ai/internal/gemini"
)

type Download struct {
	Filename string
	MimeType string
	Data     []byte
}

// Filename builds "<slug>_<id>.png" for a node's current image.
func Filename(title, nodeID string) string {
	slug := slugify(title)
	if slug == "" {
		return nodeID + ".png"
	}
	return slug + "_" + nodeID + ".png"
}

func (s *Session) Download(nodeID string) (Download, error) {
	snap, ok := s.Node(nodeID)
	if !ok {
		return Download{}, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	if snap.ImageURL == "" {
		return Download{}, fmt.Errorf("%s: %w", nodeID, ErrNoImage)
	}

	mimeType, data, err := gemini.DecodeDataURL(snap.ImageURL)
	if err != nil {
		return Download{}, fmt.Errorf("%s: %w", nodeID, err)
	}

	return Download{
		Filename: Filename(snap.Title, snap.ID),
		MimeType: mimeType,
		Data:     data,
	}, nil
}

func slugify(value string) string {
	// A chain keeps state between calls, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
