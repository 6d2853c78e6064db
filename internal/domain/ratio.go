package domain

import (
	"fmt"
	"strings"
)

// Ratio is an aspect ratio accepted by the image backend.
type Ratio string

const (
	Ratio1x1  Ratio = "1:1"
	Ratio2x3  Ratio = "2:3"
	Ratio3x2  Ratio = "3:2"
	Ratio3x4  Ratio = "3:4"
	Ratio4x3  Ratio = "4:3"
	Ratio4x5  Ratio = "4:5"
	Ratio5x4  Ratio = "5:4"
	Ratio9x16 Ratio = "9:16"
	Ratio16x9 Ratio = "16:9"
	Ratio21x9 Ratio = "21:9"
)

// Ratios lists every valid aspect ratio.
var Ratios = []Ratio{
	Ratio1x1, Ratio2x3, Ratio3x2, Ratio3x4, Ratio4x3,
	Ratio4x5, Ratio5x4, Ratio9x16, Ratio16x9, Ratio21x9,
}

func (r Ratio) String() string {
	return string(r)
}

func (r Ratio) Valid() bool {
	for _, v := range Ratios {
		if v == r {
			return true
		}
	}
	return false
}

// ParseRatio validates s against the enumerated ratios.
func ParseRatio(s string) (Ratio, error) {
	r := Ratio(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unsupported aspect ratio %q (valid: %s)", ErrInvalidArgument, s, RatioList())
	}
	return r, nil
}

// ResolveRatio picks the effective ratio for a generate or edit call: an
// explicit value wins, then the session default. A blank explicit value
// counts as absent. There is no implicit fallback.
func ResolveRatio(explicit string, sessionDefault *Ratio) (Ratio, error) {
	if strings.TrimSpace(explicit) != "" {
		return ParseRatio(explicit)
	}
	if sessionDefault != nil {
		return *sessionDefault, nil
	}
	return "", fmt.Errorf("%w: no aspect ratio given and none configured for this session; pass aspect_ratio or call set_aspect_ratio first (valid: %s)",
		ErrMissingConfiguration, RatioList())
}

func RatioList() string {
	parts := make([]string, len(Ratios))
	for i, r := range Ratios {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
