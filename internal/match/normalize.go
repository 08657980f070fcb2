package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transliterations covers lower-case letters that survive mark stripping
// but have a conventional ASCII spelling. Keys are lower-case because the
// map is applied after lower-casing.
var transliterations = map[rune]string{
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'ł': "l", 'đ': "d",
	'þ': "th", 'ð': "d", 'ı': "i",
}

// NormalizeHeader canonicalizes a raw header for matching.
// The normalization pipeline:
// 1. Split CamelCase boundaries ("SalesAmount" -> "Sales Amount").
// 2. Lower-case with Unicode casing rules.
// 3. Separators (_ . - / & | and whitespace) become spaces, other punctuation is stripped.
// 4. Unicode canonical decomposition and removal of all marks.
// 5. ASCII transliteration; letters without an ASCII form keep their Unicode form.
// 6. Collapse whitespace.
//
// NormalizeHeader is idempotent for every input. When decomposition fails
// the header falls back to a plain lower-case and trim.
func NormalizeHeader(raw string) string {
	lowered := cases.Lower(language.Und).String(splitCamel(raw))

	folded, err := foldASCII(stripPunctuation(lowered))
	if err != nil {
		return collapse(stripPunctuation(strings.ToLower(raw)))
	}

	return collapse(folded)
}

// Tokens splits a normalized header into its words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func foldASCII(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.M)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.Grow(len(out))

	for _, r := range out {
		if repl, ok := transliterations[r]; ok {
			b.WriteString(repl)

			continue
		}

		b.WriteRune(r)
	}

	return b.String(), nil
}

// splitCamel inserts a space at CamelCase boundaries:
//   - "SalesAmount" -> "Sales Amount"
//   - "productID" -> "product ID"
//   - "SKUCode" -> "SKU Code"
func splitCamel(s string) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}

	var b strings.Builder

	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && shouldStartNewToken(runes, i) {
			b.WriteRune(' ')
		}

		b.WriteRune(r)
	}

	return b.String()
}

// shouldStartNewToken determines if a new token should start at position i.
func shouldStartNewToken(runes []rune, i int) bool {
	r := runes[i]
	prevRune := runes[i-1]
	isUpper := hasLowerForm(r)

	// Transition from lowercase to uppercase: "orderID" -> split before 'I'
	if isUpper && unicode.IsLower(prevRune) {
		return true
	}

	// End of acronym: "XMLParser" -> "XML" + "Parser", split before 'P'
	hasNextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

	return isUpper && hasLowerForm(prevRune) && hasNextLower
}

// hasLowerForm reports whether r is an upper-case letter that lower-casing
// changes. Upper-case letters without a lower-case form never start a token.
func hasLowerForm(r rune) bool {
	return unicode.IsUpper(r) && unicode.ToLower(r) != r
}

// isSeparator returns true if the rune separates words in a header.
func isSeparator(r rune) bool {
	switch r {
	case '_', '.', '-', '/', '\\', '&', '|', '+', ',', ';', ':':
		return true
	}

	return unicode.IsSpace(r)
}

func stripPunctuation(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		switch {
		case isSeparator(r):
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		}
	}

	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
