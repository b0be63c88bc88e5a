package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		merchant string
		want     string
	}{
		{"case and spacing", "  BigBasket   Online ", "bigbasket online"},
		{"star suffix", "UBER *1234", "uber"},
		{"hash suffix", "Amazon #98765", "amazon"},
		{"ref suffix", "Swiggy ref 123456", "swiggy"},
		{"trailing digits", "ZOMATO 000123456", "zomato"},
		{"stacked suffixes", "NETFLIX #4455 123456", "netflix"},
		{"short numbers kept", "7 ELEVEN", "7 eleven"},
		{"brand with digits kept", "Store 24", "store 24"},
		{"only digits", "123456", "123456"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.merchant)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeKey(got))
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical after normalization", "AMAZON #1234", "amazon", 1, 1},
		{"one typo", "STARBUCKS", "STARBACKS", 0.85, 0.9},
		{"unrelated", "NETFLIX", "BIGBASKET", 0, 0.3},
		{"both empty", "", "", 1, 1},
		{"one empty", "", "uber", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}
