// Package slug derives URL-safe identifiers from titles.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title has no transliterable characters.
const Fallback = "post"

// charMap covers characters that NFKD does not decompose into ASCII.
var charMap = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'æ': "ae", 'Æ': "AE",
	'ø': "o", 'Ø': "O",
	'œ': "oe", 'Œ': "OE",
	'ł': "l", 'Ł': "L",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'þ': "th", 'Þ': "TH",
	'ı': "i",
	'&': "and",
	'%': "percent",
	'$': "dollar",
	'€': "euro",
	'£': "pound",
	'¥': "yen",
	'<': "less",
	'>': "greater",
	'|': "or",
}

// Make returns a lowercase slug made of [a-z0-9] words joined by hyphens.
// Words are separated by whitespace, hyphens and underscores in title; every
// other character is transliterated or dropped.
func Make(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if mapped, ok := charMap[r]; ok {
			// mapped symbols become their own word, as in "Tom & Jerry"
			if r < 0x80 || unicode.IsSymbol(r) {
				b.WriteByte(' ')
				b.WriteString(mapped)
				b.WriteByte(' ')
			} else {
				b.WriteString(mapped)
			}
			continue
		}
		switch {
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteByte(' ')
		}
	}

	slug := strings.ToLower(strings.Join(strings.Fields(b.String()), "-"))
	if slug == "" {
		return Fallback
	}
	return slug
}

// Next returns base when it is not taken, otherwise the first free
// base-1, base-2, ... candidate.
func Next(base string, taken map[string]struct{}) string {
	if _, used := taken[base]; !used {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, used := taken[candidate]; !used {
			return candidate
		}
	}
}

// Set builds the lookup used by Next.
func Set(slugs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		set[s] = struct{}{}
	}
	return set
}
