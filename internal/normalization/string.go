package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func ParseInputStringPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := ParseInputString(*input)
	return &normalized
}

// Fold lowercases s and strips diacritics so that "Ruído" and "ruido" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return ParseInputString(out)
}

// ContainsAll reports whether every keyword occurs in text, both folded.
func ContainsAll(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	folded := Fold(text)
	for _, k := range keywords {
		if !strings.Contains(folded, Fold(k)) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one keyword occurs in text.
func ContainsAny(text string, keywords []string) bool {
	folded := Fold(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(folded, Fold(k)) {
			return true
		}
	}
	return false
}
