// Package slug derives URL-safe identifiers from human-readable names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gallery/service/internal/apperr"
)

var pattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Letters that do not decompose into a base letter plus combining marks.
var specials = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th", "&", " and ",
)

// Make converts name into a lowercase, hyphen-separated slug restricted to
// [a-z0-9-]. Accented letters are folded to their base form; every other run
// of characters becomes a single hyphen. The result is deterministic.
func Make(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		specials.Replace(name),
	)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Valid reports whether s is already a well-formed slug.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Resolve returns given verbatim when set, otherwise the slug of name.
func Resolve(given *string, name string) (string, error) {
	if given != nil && *given != "" {
		return *given, nil
	}
	s := Make(name)
	if s == "" {
		return "", apperr.Validation("a slug cannot be derived from name; provide one explicitly",
			map[string]string{"slug": "is required when name has no letters or digits"})
	}
	return s, nil
}
