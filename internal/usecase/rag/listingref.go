package rag

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	// the code must carry a digit so "imóvel bonito" is not a reference
	listingCodePattern = regexp.MustCompile(
		`(?i)\b(?:ref\.?|referência|referencia|código|codigo|imóvel|imovel)\s*(?:n\.?º\s*|nº\s*|#|:)?\s*([a-z0-9][a-z0-9_-]*\d[a-z0-9_-]*|\d[a-z0-9_-]*)`)
	// "imóvel T3" names a typology, not a listing
	typologyPattern = regexp.MustCompile(`(?i)^t\d+$`)
)

// MentionedListingID returns the listing id the visitor names explicitly,
// either as a bare UUID or after a reference keyword ("ref A-123").
func MentionedListingID(text string) string {
	for _, m := range uuidPattern.FindAllString(text, -1) {
		if id, err := uuid.Parse(m); err == nil {
			return id.String()
		}
	}
	for _, m := range listingCodePattern.FindAllStringSubmatch(text, -1) {
		code := strings.TrimRight(m[1], "-_")
		if typologyPattern.MatchString(code) {
			continue
		}
		return code
	}
	return ""
}
