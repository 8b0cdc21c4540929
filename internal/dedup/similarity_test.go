package dedup

import (
	"math"
	"testing"
)

func TestHaversineM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 52.52, 13.405, 52.52, 13.405, 0, 0.01},
		// Berlin Alexanderplatz to Brandenburger Tor, roughly 2.6 km.
		{"across berlin", 52.5219, 13.4132, 52.5163, 13.3777, 2480, 100},
		// One degree of latitude is about 111.2 km.
		{"one degree latitude", 50, 10, 51, 10, 111195, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineM(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("HaversineM = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "mueller gmbh", "mueller gmbh", 1, 1},
		{"word order ignored", "gmbh mueller", "mueller gmbh", 1, 1},
		{"token subset scores full", "mueller gmbh", "mueller", 1, 1},
		{"close names", "baeckerei schmidt", "baeckerei schmitt", 0.85, 1},
		{"unrelated", "autohaus wagner", "pizzeria napoli", 0, 0.5},
		{"empty side", "", "mueller", 0, 0},
		{"both empty", "", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetRatio(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TokenSetRatio(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	a, b := "restaurant zur post", "gasthof zur post"
	if r1, r2 := TokenSetRatio(a, b), TokenSetRatio(b, a); r1 != r2 {
		t.Errorf("ratio not symmetric: %.3f vs %.3f", r1, r2)
	}
}
