package util

import "strings"

// SanitizePostgresText makes scraped article text storable in a text column.
// Postgres rejects NUL bytes and invalid UTF-8, both of which show up in
// crawled titles, sentences and entity labels; they are dropped.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, strings.ToValidUTF8(value, ""))
}
