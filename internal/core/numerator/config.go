// Package numerator holds the pure numbering rules of the journal:
// golden-number arithmetic, frontiers and the printable document number.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds display configuration for document numbers.
type Config struct {
	// Prefix added to all numbers (e.g., "УТЗ")
	Prefix string

	// PadWidth is the minimum number width (default 6)
	PadWidth int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:   prefix,
		PadWidth: 6,
	}
}

// Format creates the printable document number: PREFIX-000123.
func (c Config) Format(numeric int64) string {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 6
	}
	if c.Prefix == "" {
		return fmt.Sprintf("%0*d", padWidth, numeric)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, padWidth, numeric)
}

// MaxNumeric is the largest numeric that still fits the pad width.
func (c Config) MaxNumeric() int64 {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 6
	}
	limit := int64(1)
	for i := 0; i < padWidth; i++ {
		limit *= 10
	}
	return limit - 1
}

// Parse extracts the numeric part from a formatted number.
// Anything after the last '-' is taken as the number, so imported
// values like "УТЗ-000123" and bare "123" both parse.
// Returns -1 if parsing fails.
func Parse(formatted string) int64 {
	s := strings.TrimSpace(formatted)
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return -1
	}
	return n
}
