// Package dedup matches provider records against the company directory
// using multi-signal fingerprinting: external id, normalized website,
// normalized phone, and geo-proximity name similarity, in that order.
package dedup

import "strings"

// countryCallingCodes maps ISO country codes to calling codes for the
// markets the directory covers. Unknown countries fall back to DE.
var countryCallingCodes = map[string]string{
	"DE": "49",
	"AT": "43",
	"CH": "41",
}

// NormalizeWebsite reduces a URL to its comparable form: lowercase with
// scheme, leading "www." and trailing slashes stripped. Query strings and
// fragments are dropped.
func NormalizeWebsite(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "/")
}

// NormalizePhone strips a phone number to digits and maps international
// prefixes to the local form: "+49" and "0049" both become "0" for a
// German number. The country is detected from the record's country field;
// unknown or empty countries are treated as DE.
func NormalizePhone(raw, land string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	cc := countryCallingCodes[strings.ToUpper(strings.TrimSpace(land))]
	if cc == "" {
		cc = countryCallingCodes["DE"]
	}

	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	switch {
	case hadPlus && strings.HasPrefix(digits, cc):
		return "0" + digits[len(cc):]
	case strings.HasPrefix(digits, "00"+cc):
		return "0" + digits[len(cc)+2:]
	}
	return digits
}

// NormalizeName prepares a company name for token comparison: lowercase,
// German umlauts folded to their ASCII digraphs, punctuation collapsed
// to single spaces.
func NormalizeName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch {
		case r == 'ä':
			b.WriteString("ae")
		case r == 'ö':
			b.WriteString("oe")
		case r == 'ü':
			b.WriteString("ue")
		case r == 'ß':
			b.WriteString("ss")
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
