package deeplink

import (
	"net/url"
	"strings"
)

// Schemes lists the URL schemes this application answers to.
var Schemes = []string{"clash", "koala-clash", "outclash"}

// IsRecognizedScheme reports whether scheme (without "://") is one of Schemes.
func IsRecognizedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, s := range Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// HasRecognizedPrefix reports whether raw starts with "<scheme>://" for a
// recognised scheme.
func HasRecognizedPrefix(raw string) bool {
	for _, s := range Schemes {
		if strings.HasPrefix(raw, s+"://") {
			return true
		}
	}
	return false
}

// DedupKey normalises an activation string for duplicate suppression: the
// decoded first url query parameter when present, otherwise raw itself.
func DedupKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	for _, p := range queryPairs(u.RawQuery) {
		if p.key == "url" {
			return unescapeLenient(p.value, false)
		}
	}
	return raw
}

type queryPair struct{ key, value string }

// queryPairs splits a raw query the way HTML forms encode it: pairs on '&',
// '+' as a space, valid percent escapes decoded and invalid ones kept as
// literal text. Unlike url.ParseQuery it never drops a pair.
func queryPairs(rawQuery string) []queryPair {
	var pairs []queryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: unescapeLenient(k, true), value: unescapeLenient(v, true)})
	}
	return pairs
}

// unescapeLenient percent-decodes s, leaving malformed escapes untouched.
// Invalid UTF-8 in the result is replaced with U+FFFD.
func unescapeLenient(s string, plusAsSpace bool) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case c == '+' && plusAsSpace:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}
