// Package colorhex converts between hex color strings and RGBA components.
//
// Accepted forms, with an optional leading '#':
//
//	RGB       12-bit, alpha is opaque
//	ARGB      16-bit
//	RRGGBB    24-bit, alpha is opaque
//	AARRGGBB  32-bit
package colorhex

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("invalid hex color")

// RGBA holds components in the range [0, 1].
type RGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

func Parse(s string) (RGBA, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(digits) {
	case 3, 4, 6, 8:
	default:
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	switch len(digits) {
	case 3:
		return RGBA{
			R: float64(v>>8&0xF) / 15,
			G: float64(v>>4&0xF) / 15,
			B: float64(v&0xF) / 15,
			A: 1,
		}, nil
	case 4:
		return RGBA{
			A: float64(v>>12&0xF) / 15,
			R: float64(v>>8&0xF) / 15,
			G: float64(v>>4&0xF) / 15,
			B: float64(v&0xF) / 15,
		}, nil
	case 6:
		return RGBA{
			R: float64(v>>16&0xFF) / 255,
			G: float64(v>>8&0xFF) / 255,
			B: float64(v&0xFF) / 255,
			A: 1,
		}, nil
	default:
		return RGBA{
			A: float64(v>>24&0xFF) / 255,
			R: float64(v>>16&0xFF) / 255,
			G: float64(v>>8&0xFF) / 255,
			B: float64(v&0xFF) / 255,
		}, nil
	}
}

// Normalize validates s and returns it upper-cased without the '#' prefix,
// keeping the number of digits the caller chose.
func Normalize(s string) (string, error) {
	if _, err := Parse(s); err != nil {
		return "", err
	}

	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#")), nil
}

// Format renders RRGGBB, or AARRGGBB when the color is not opaque.
func Format(c RGBA) string {
	r, g, b, a := channel(c.R), channel(c.G), channel(c.B), channel(c.A)
	if a == 0xFF {
		return fmt.Sprintf("%02X%02X%02X", r, g, b)
	}

	return fmt.Sprintf("%02X%02X%02X%02X", a, r, g, b)
}

func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xFF
	}

	return uint8(math.Round(v * 255))
}
