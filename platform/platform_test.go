package platform

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/threadgen/schema"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("ESP32", "esp32c6", "ESP-IDF")
	require.NoError(t, err)
	require.Equal(t, Target{Family: FamilyESP32, Variant: VariantESP32C6, Framework: FrameworkESPIDF}, target)

	target, err = ParseTarget("esp32", "", "")
	require.NoError(t, err)
	require.Equal(t, VariantESP32, target.Variant)
	require.Equal(t, FrameworkArduino, target.Framework)

	_, err = ParseTarget("rp2040", "ESP32C6", "")
	require.Error(t, err)

	_, err = ParseTarget("", "", "")
	require.Error(t, err)
}

func TestCheckerRejectsUnsupportedVariant(t *testing.T) {
	target := Target{Family: FamilyESP32, Variant: VariantESP32H2, Framework: FrameworkESPIDF}
	checker := NewChecker(NewStaticDatabase(target), zerolog.Nop())

	err := checker.Check(&schema.RadioConfig{ID: "net1"}, target)
	var perr *PlatformError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, VariantESP32H2, perr.Variant)
	require.EqualError(t, err, "ESP32H2 does not support WiFi")
}

func TestCheckerAcceptsSupportedVariants(t *testing.T) {
	for _, variant := range []Variant{VariantESP32, VariantESP32S3, VariantESP32C3, VariantESP32C6} {
		target := Target{Family: FamilyESP32, Variant: variant, Framework: FrameworkESPIDF}
		checker := NewChecker(NewStaticDatabase(target), zerolog.Nop())
		require.NoError(t, checker.Check(&schema.RadioConfig{ID: "net1"}, target), variant)
	}
}

func TestCheckerSkipsFamiliesWithoutVariants(t *testing.T) {
	target := Target{Family: FamilyRP2040}
	db := NewStaticDatabase(target)
	_, ok := db.Variant(FamilyRP2040)
	require.False(t, ok)

	checker := NewChecker(db, zerolog.Nop())
	require.NoError(t, checker.Check(&schema.RadioConfig{ID: "net1"}, target))
}

func TestCheckerRequiresConfig(t *testing.T) {
	target := Target{Family: FamilyESP32}
	checker := NewChecker(NewStaticDatabase(target), zerolog.Nop())
	require.Error(t, checker.Check(nil, target))
}

func TestStaticDatabaseDisable(t *testing.T) {
	db := NewStaticDatabase(Target{Family: FamilyESP32, Variant: VariantESP32S2})
	require.True(t, db.Supports(VariantESP32S2, CapabilityWiFi))
	db.Disable(VariantESP32S2, CapabilityWiFi)
	require.False(t, db.Supports(VariantESP32S2, CapabilityWiFi))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	tests := []struct {
		target Target
		want   Decision
	}{
		{Target{Family: FamilyESP32, Variant: VariantESP32C6, Framework: FrameworkESPIDF}, Decision{Applicable: true, Managed: true}},
		{Target{Family: FamilyESP32, Variant: VariantESP32, Framework: FrameworkArduino}, Decision{Applicable: true, Managed: false}},
		{Target{Family: FamilyRP2040}, Decision{Applicable: false, Managed: false}},
		{Target{Family: FamilyESP8266, Framework: FrameworkArduino}, Decision{Applicable: false, Managed: false}},
	}
	for _, tt := range tests {
		got, err := policy.Evaluate(tt.target)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, tt.target.String())
	}
}

func TestCustomPolicy(t *testing.T) {
	policy, err := NewPolicy(`family in ["esp32", "bk72xx"]`, `framework == "esp-idf" || family == "bk72xx"`)
	require.NoError(t, err)

	got, err := policy.Evaluate(Target{Family: FamilyBK72XX})
	require.NoError(t, err)
	require.Equal(t, Decision{Applicable: true, Managed: true}, got)

	applicable, managed := policy.Rules()
	require.Contains(t, applicable, "bk72xx")
	require.Contains(t, managed, "esp-idf")
}

func TestPolicyRejectsInvalidRules(t *testing.T) {
	_, err := NewPolicy(`family + 1`, "")
	require.Error(t, err)

	_, err = NewPolicy("", `unknown_field == "x"`)
	require.Error(t, err)
}
