package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var namePrefixes = []string{
	"Mr", "Ms", "Mrs", "Mister", "Miss", "Madam", "Madame", "Monsieur",
	"Mme", "Mmme", "Herr", "Hr", "Frau", "Fr", "The", "Fräulein",
	"Senor", "Senorita", "Sr", "Sir", "Lady", "de", "of",
}

// Leading honorifics, a possessive suffix and surrounding punctuation are
// stripped; term is what remains.
var namePattern = regexp.MustCompile(
	`(?i)^[^\p{L}\p{N}_]*((?:` + strings.Join(namePrefixes, "|") + `)\.?\s+)*` +
		`(?P<term>.*?)(['’]s)?[^\p{L}\p{N}_]*$`,
)

var lower = cases.Lower(language.Und)

// CleanEntityName removes honorifics and possessives from a mention, so
// "Mr. John Smith's" becomes "John Smith".
func CleanEntityName(name string) string {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return m[namePattern.SubexpIndex("term")]
}

// Slugify lowercases name, strips diacritics and joins the remaining
// alphanumeric runs with sep.
func Slugify(name, sep string) string {
	return strings.Join(tokens(name), sep)
}

// Fingerprint is the slug of name with its tokens sorted, so word order does
// not matter: "Smith, John" and "John Smith" both give "john-smith".
func Fingerprint(name string) string {
	t := tokens(name)
	slices.Sort(t)
	return strings.Join(t, "-")
}

func tokens(name string) []string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.FieldsFunc(lower.String(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TagID derives the stable id of the tag for fingerprint in article.
func TagID(article, fingerprint string) string {
	sum := sha1.Sum([]byte(article + ">" + fingerprint))
	return hex.EncodeToString(sum[:])
}
