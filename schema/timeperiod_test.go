package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTimePeriod(t *testing.T) {
	tests := map[string]Milliseconds{
		"1min":    60000,
		"1.5min":  90000,
		"250ms":   250,
		"2s":      2000,
		"1h":      3600000,
		"1d":      86400000,
		"2000us":  2,
		"0.5s":    500,
		" 10 s ":  10000,
		"0ms":     0,
		"49d":     49 * 86400000,
		"0.001s":  1,
		"1.25min": 75000,
	}
	for input, want := range tests {
		got, err := ParseTimePeriod(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}
}

func TestParseTimePeriodRejects(t *testing.T) {
	for _, input := range []string{"", "10", "abc", "-1s", "0.5ms", "100us", "50d", "1 week"} {
		_, err := ParseTimePeriod(input)
		require.Error(t, err, input)
	}
}

func TestFormatTimePeriodRoundTrip(t *testing.T) {
	for _, ms := range []Milliseconds{0, 1, 999, 1000, 60000, 90000, 3600000, 86400000} {
		got, err := ParseTimePeriod(FormatTimePeriod(ms))
		require.NoError(t, err)
		require.Equal(t, ms, got)
	}
}
