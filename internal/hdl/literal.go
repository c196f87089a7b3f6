package hdl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// MaxWidth is the widest vector the engine models; literals are clamped to
// what the solver can represent
const MaxWidth = smt.MaxWidth

// ParseLiteral decodes a numeric literal such as 8'hFF, 'b10, 4'd3 or 42.
// x and z digits read as 0. Unsized based literals are 32 bits wide.
func ParseLiteral(text string) (value uint64, width int, err error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	if s == "" {
		return 0, 0, fmt.Errorf("empty literal")
	}
	tick := strings.IndexByte(s, '\'')
	if tick < 0 {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("literal %q: %w", text, err)
		}
		return v, IntegerWidth, nil
	}

	width = IntegerWidth
	if tick > 0 {
		w, err := strconv.Atoi(s[:tick])
		if err != nil || w <= 0 {
			return 0, 0, fmt.Errorf("literal %q: bad size", text)
		}
		width = w
	}
	rest := strings.ToLower(s[tick+1:])
	switch rest {
	case "0", "x", "z":
		return 0, clampWidth(width), nil
	case "1":
		if tick == 0 {
			return ^uint64(0), MaxWidth, nil
		}
		return mask(clampWidth(width)), clampWidth(width), nil
	}
	rest = strings.TrimPrefix(rest, "s")
	if rest == "" {
		return 0, 0, fmt.Errorf("literal %q: missing base", text)
	}
	base := 10
	switch rest[0] {
	case 'b':
		base = 2
	case 'o':
		base = 8
	case 'h':
		base = 16
	case 'd':
		base = 10
	default:
		return 0, 0, fmt.Errorf("literal %q: unknown base %q", text, rest[0])
	}
	digits := strings.Map(func(r rune) rune {
		if r == 'x' || r == 'z' || r == '?' {
			return '0'
		}
		return r
	}, rest[1:])
	if digits == "" {
		return 0, 0, fmt.Errorf("literal %q: missing digits", text)
	}
	v, err := parseDigits(digits, base)
	if err != nil {
		return 0, 0, fmt.Errorf("literal %q: %w", text, err)
	}
	width = clampWidth(width)
	return v & mask(width), width, nil
}

// parseDigits keeps the low 64 bits of oversized literals
func parseDigits(digits string, base int) (uint64, error) {
	var v uint64
	for _, r := range digits {
		d, err := strconv.ParseUint(string(r), base, 8)
		if err != nil {
			return 0, err
		}
		v = v*uint64(base) + d
	}
	return v, nil
}

func clampWidth(w int) int {
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

func mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}
