package resolver

import (
	"regexp"
	"slices"
	"strings"

	"github.com/desertthunder/discx/internal/shared"
)

var (
	marketingSuffix = regexp.MustCompile(`(?i)\((deluxe|remastered)\)`)
	catalogNumber   = regexp.MustCompile(`[A-Z]{2,}-?\d{3,}`)
)

// Candidate is the artist, album and catalog number guessed from OCR text.
type Candidate struct {
	Artist        string
	Album         string
	CatalogNumber string
}

// Empty reports whether nothing could be parsed.
func (c Candidate) Empty() bool {
	return c.Artist == "" && c.Album == "" && c.CatalogNumber == ""
}

// ParseCandidate reads OCR lines as artist then album. A single line is split on "-".
// The first catalog-number-looking token on any line is returned alongside.
func ParseCandidate(lines []string) Candidate {
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(marketingSuffix.ReplaceAllString(line, ""))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	if len(cleaned) == 0 {
		return Candidate{}
	}

	c := Candidate{CatalogNumber: findCatalogNumber(cleaned)}
	switch {
	case len(cleaned) >= 2:
		c.Artist, c.Album = cleaned[0], cleaned[1]
	default:
		parts := strings.Split(cleaned[0], "-")
		if len(parts) >= 2 {
			c.Artist, c.Album = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		} else {
			c.Artist = cleaned[0]
		}
	}
	return c
}

func findCatalogNumber(lines []string) string {
	for _, line := range lines {
		if m := catalogNumber.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

// BarcodeCandidates returns the digits of barcode followed by its UPC-A/EAN-13 counterpart:
// a 12-digit code gains a leading zero, a 13-digit code with a leading zero loses it.
// Input without digits is returned as is.
func BarcodeCandidates(barcode string) []string {
	digits := shared.DigitsOnly(barcode)
	if digits == "" {
		if strings.TrimSpace(barcode) == "" {
			return nil
		}
		return []string{barcode}
	}

	out := []string{digits}
	switch {
	case len(digits) == 12:
		out = append(out, "0"+digits)
	case len(digits) == 13 && digits[0] == '0':
		out = append(out, digits[1:])
	}
	return slices.Compact(out)
}
