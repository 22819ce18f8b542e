package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Milliseconds is a time period resolved to whole milliseconds.
type Milliseconds uint32

var timePeriodPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*(us|ms|s|min|h|d)$`)

var timeUnits = map[string]decimal.Decimal{
	"us":  decimal.New(1, -3),
	"ms":  decimal.NewFromInt(1),
	"s":   decimal.NewFromInt(1000),
	"min": decimal.NewFromInt(60 * 1000),
	"h":   decimal.NewFromInt(60 * 60 * 1000),
	"d":   decimal.NewFromInt(24 * 60 * 60 * 1000),
}

// ParseTimePeriod converts strings such as "1min", "1.5s" or "250ms" into
// milliseconds. Decimal magnitudes are exact; the result must be a whole
// number of milliseconds that fits into 32 bits.
func ParseTimePeriod(value string) (Milliseconds, error) {
	match := timePeriodPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0, fmt.Errorf("invalid time period %q: expected a number followed by one of us, ms, s, min, h, d", value)
	}
	magnitude, err := decimal.NewFromString(match[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time period %q: %w", value, err)
	}
	ms := magnitude.Mul(timeUnits[match[2]])
	if !ms.Equal(ms.Truncate(0)) {
		return 0, fmt.Errorf("time period %q is not a whole number of milliseconds", value)
	}
	if ms.GreaterThan(decimal.NewFromInt(math.MaxUint32)) {
		return 0, fmt.Errorf("time period %q is too long", value)
	}
	return Milliseconds(ms.IntPart()), nil
}

// FormatTimePeriod renders ms using the largest unit that divides it evenly,
// so ParseTimePeriod(FormatTimePeriod(x)) == x.
func FormatTimePeriod(ms Milliseconds) string {
	v := uint64(ms)
	switch {
	case v == 0:
		return "0ms"
	case v%(24*60*60*1000) == 0:
		return fmt.Sprintf("%dd", v/(24*60*60*1000))
	case v%(60*60*1000) == 0:
		return fmt.Sprintf("%dh", v/(60*60*1000))
	case v%(60*1000) == 0:
		return fmt.Sprintf("%dmin", v/(60*1000))
	case v%1000 == 0:
		return fmt.Sprintf("%ds", v/1000)
	default:
		return fmt.Sprintf("%dms", v)
	}
}
