package dedup

import "testing"

func TestNormalizeWebsite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full url", "https://www.Example.de/kontakt/", "example.de/kontakt"},
		{"http scheme", "http://example.de", "example.de"},
		{"no scheme", "www.example.de/", "example.de"},
		{"bare domain", "Example.DE", "example.de"},
		{"query dropped", "https://example.de/?utm=x", "example.de"},
		{"fragment dropped", "example.de/seite#mitte", "example.de/seite"},
		{"empty", "", ""},
		{"whitespace", "  https://example.de  ", "example.de"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWebsite(tt.in); got != tt.want {
				t.Errorf("NormalizeWebsite(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		land string
		want string
	}{
		{"plus prefix", "+49 176 1234567", "DE", "01761234567"},
		{"double zero prefix", "0049 176 1234567", "DE", "01761234567"},
		{"already local", "0176 1234567", "DE", "01761234567"},
		{"formatted", "+49 30 / 12 34 56", "DE", "030123456"},
		{"austria", "+43 1 9876", "AT", "019876"},
		{"country defaulted", "+49 89 555", "", "089555"},
		{"foreign cc kept", "+33 1 2345", "DE", "3312345"},
		{"empty", "", "DE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.in, tt.land); got != tt.want {
				t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tt.in, tt.land, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"umlauts folded", "Müller & Söhne GmbH", "mueller soehne gmbh"},
		{"punctuation", "Bäckerei-Konditorei Weiß", "baeckerei konditorei weiss"},
		{"extra spaces", "  Zwei   Worte ", "zwei worte"},
		{"digits kept", "Taxi 24", "taxi 24"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
