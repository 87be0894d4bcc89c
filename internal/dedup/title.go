package dedup

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// NormalizeTitle folds a title to the form used for duplicate matching:
// transliterated to ASCII, lowercased, punctuation dropped and whitespace
// collapsed. "Sunburn  Festival!" and "sunburn festival" normalize equally.
func NormalizeTitle(title string) string {
	return foldName(title)
}

// normalizeName applies the same folding to venue and organizer names
func normalizeName(name string) string {
	return foldName(name)
}

func foldName(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(unidecode.Unidecode(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
