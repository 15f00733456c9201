package provider

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// IDNormalizer is implemented by providers whose ids follow a naming scheme.
type IDNormalizer interface {
	NormalizeID(raw string) (string, error)
}

// NormalizeID maps a user-supplied id to the form p fetches. Providers that
// do not implement IDNormalizer use opaque ids: only surrounding whitespace
// is trimmed.
func NormalizeID(p NeighborProvider, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.New(errors.ErrCodeInvalidNodeID, "node id is empty", nil)
	}
	if n, ok := p.(IDNormalizer); ok {
		return n.NormalizeID(id)
	}
	return id, nil
}

// ArtistID turns an artist name or music-map slug into a node id: lower case,
// words joined by '+'. "The Beatles" and "the+beatles" both become
// "the+beatles".
func ArtistID(raw string) (string, error) {
	s := strings.Trim(strings.TrimSpace(raw), "/")
	if s == "" {
		return "", errors.New(errors.ErrCodeInvalidNodeID, "node id is empty", nil).
			WithSuggestion("Pass an artist name such as \"the beatles\" or \"the+beatles\"")
	}

	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '+' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return "", errors.New(errors.ErrCodeInvalidNodeID,
			fmt.Sprintf("node id %q has no name characters", raw), nil)
	}

	id := strings.Join(words, "+")
	for _, r := range id {
		if unicode.IsControl(r) || strings.ContainsRune("/?#\\", r) {
			return "", errors.New(errors.ErrCodeInvalidNodeID,
				fmt.Sprintf("node id %q contains %q", raw, r), nil).
				WithDetail("id", raw)
		}
	}
	return id, nil
}
