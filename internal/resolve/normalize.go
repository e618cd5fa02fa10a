package resolve

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// foldDiacritics decomposes to NFKD and drops combining marks, so that
// "Łąka Polana" and "Laka Polana" normalize identically.
var foldDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips diacritics and punctuation, and collapses
// whitespace. Used on both sides of every fuzzy comparison.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizePhone parses a raw phone number into E.164 using the lead's
// country as the default region. Returns "" when the number cannot be
// parsed or is not valid; an unparseable phone means "no phone dimension",
// never an error.
func NormalizePhone(raw, country string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	region := strings.ToUpper(strings.TrimSpace(country))
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(num) || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// Similarity returns a 0..1 similarity between two strings after
// normalization. 1 means identical.
func Similarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	return levenshtein.Match(na, nb, nil)
}

// TokenSetSimilarity compares two strings ignoring token order and
// duplicates, which tolerates reordered property names like
// "Camping Mazury Resort" vs "Resort Camping Mazury". Returns the better of
// the token-sorted and plain similarity.
func TokenSetSimilarity(a, b string) float64 {
	plain := Similarity(a, b)

	sa, sb := sortedTokens(a), sortedTokens(b)
	if sa == "" || sb == "" {
		return plain
	}
	sorted := levenshtein.Match(sa, sb, nil)
	if sorted > plain {
		return sorted
	}
	return plain
}

func sortedTokens(s string) string {
	tokens := strings.Fields(NormalizeText(s))
	if len(tokens) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(tokens))
	uniq := tokens[:0]
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			uniq = append(uniq, tok)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}
