package utils

import "strings"

// NormalizeDomain lower-cases ASCII letters and strips a single trailing dot.
// Bytes outside the ASCII range are left untouched, so internationalised
// names compare byte-for-byte.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSuffix(domain, ".")

	for i := 0; i < len(domain); i++ {
		if c := domain[i]; 'A' <= c && c <= 'Z' {
			return lowerASCII(domain)
		}
	}
	return domain
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ForEachSuffix calls fn for every label-boundary suffix of domain, starting
// with the top-level label and moving left:
// "a.example.com" yields "com", then "example.com". The full name itself is
// not included. Iteration stops early if fn returns false.
func ForEachSuffix(domain string, fn func(suffix string) bool) {
	for i := len(domain) - 1; i >= 0; i-- {
		if domain[i] == '.' {
			if !fn(domain[i+1:]) {
				return
			}
		}
	}
}
