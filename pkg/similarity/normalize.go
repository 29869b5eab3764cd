package similarity

import (
	"net/url"
	"strings"
	"unicode"
)

// businessSuffixes are legal-entity designators stripped from the end of organization
// names. Entries are compared with dots removed, so "s.a." matches "sa".
var businessSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {}, "co": {}, "company": {},
	"llc": {}, "llp": {}, "lp": {}, "ltd": {}, "limited": {}, "plc": {},
	"gmbh": {}, "ag": {}, "ab": {}, "as": {}, "asa": {}, "oy": {}, "oyj": {}, "aps": {},
	"bv": {}, "nv": {}, "sa": {}, "sas": {}, "sarl": {}, "srl": {}, "spa": {}, "pty": {},
	"group": {}, "holding": {}, "holdings": {}, "kb": {}, "hb": {},
}

func trimTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func isBusinessSuffix(word string) bool {
	_, ok := businessSuffixes[strings.ReplaceAll(trimTrailingPunct(word), ".", "")]
	return ok
}

// NormalizeBusinessName lowercases name and strips trailing legal-entity suffixes
// ("Acme Holdings AB" -> "acme"). The first word is never stripped.
func NormalizeBusinessName(name string) string {
	words := strings.Fields(strings.ToLower(trimTrailingPunct(name)))
	for len(words) > 1 && isBusinessSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	return trimTrailingPunct(strings.Join(words, " "))
}

// ExtractDomain returns the lowercased host of a website with any scheme, port, path and
// leading "www." removed. Unparseable input yields "".
func ExtractDomain(website string) string {
	website = strings.ToLower(strings.TrimSpace(website))
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "http://" + website
	}

	u, err := url.Parse(website)
	if err != nil {
		return ""
	}

	host := strings.TrimSuffix(u.Hostname(), ".")
	return strings.TrimPrefix(host, "www.")
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
