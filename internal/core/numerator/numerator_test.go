package numerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGolden(t *testing.T) {
	assert.True(t, IsGolden(100))
	assert.True(t, IsGolden(12300))
	assert.False(t, IsGolden(101))
	assert.False(t, IsGolden(99))
}

func TestFrontiers(t *testing.T) {
	tests := []struct {
		name       string
		base, next int64
		normal     int64
		golden     int64
	}{
		{name: "bootstrap", base: 1, next: 1, normal: 1, golden: 100},
		{name: "next ahead", base: 1, next: 257, normal: 257, golden: 300},
		{name: "on golden", base: 1, next: 400, normal: 400, golden: 400},
		{name: "next behind base", base: 5001, next: 12, normal: 5001, golden: 5100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.normal, NormalFrontier(tt.base, tt.next))
			assert.Equal(t, tt.golden, GoldenFrontier(tt.base, tt.next))
		})
	}
}

func TestFormatAndParse(t *testing.T) {
	cfg := DefaultConfig("УТЗ")

	assert.Equal(t, "УТЗ-000123", cfg.Format(123))
	assert.Equal(t, int64(123), Parse("УТЗ-000123"))
	assert.Equal(t, int64(77), Parse("77"))
	assert.Equal(t, int64(-1), Parse("УТЗ-abc"))
	assert.Equal(t, int64(-1), Parse(""))

	assert.Equal(t, "000005", Config{}.Format(5))
	assert.Equal(t, int64(999999), cfg.MaxNumeric())
}
