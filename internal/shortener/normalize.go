// Package shortener holds the pure parts of link creation: URL
// normalization, deterministic short code generation and custom alias
// validation.
package shortener

import "strings"

const defaultScheme = "https"

// Normalize canonicalizes a URL into the key used for deduplication, code
// generation and search.
//
// The input is percent-decoded first, so "%7E" and "~" compare equal. Scheme
// and host are lower-cased, a missing scheme becomes https, trailing slashes
// are stripped from the path and the fragment is dropped. The query is kept
// as written. Empty input is returned unchanged.
//
// A literal '%' that survives decoding is re-escaped as "%25", which keeps
// Normalize idempotent for inputs that contain encoded percent signs.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	s := strings.ReplaceAll(unescape(strings.TrimSpace(raw)), "%", "%25")

	s, _, _ = strings.Cut(s, "#")
	s, query, _ := strings.Cut(s, "?")

	scheme := defaultScheme
	rest := s
	if i := strings.Index(s, "://"); i > 0 && validScheme(s[:i]) {
		scheme = s[:i]
		rest = s[i+3:]
	} else if strings.HasPrefix(s, "//") {
		rest = s[2:]
	}

	host, path := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, path = rest[:i], rest[i:]
	}

	var b strings.Builder
	b.Grow(len(s) + len(scheme) + 4)
	b.WriteString(strings.ToLower(scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(host))
	b.WriteString(strings.TrimRight(path, "/"))
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// unescape decodes every valid %XX sequence and leaves malformed ones alone.
// Unlike url.PathUnescape it never fails.
func unescape(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			out = append(out, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// validScheme follows RFC 3986: ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
func validScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
