package platform

import (
	"fmt"
	"strings"
)

// Family is a target hardware family such as esp32 or rp2040.
type Family string

// Variant is a chip variant inside a family.
type Variant string

// Framework is the lower-level software stack a build uses.
type Framework string

// Capability is a hardware feature a component may require.
type Capability string

const (
	FamilyESP32   Family = "esp32"
	FamilyESP8266 Family = "esp8266"
	FamilyRP2040  Family = "rp2040"
	FamilyBK72XX  Family = "bk72xx"
	FamilyHost    Family = "host"

	VariantESP32   Variant = "ESP32"
	VariantESP32S2 Variant = "ESP32S2"
	VariantESP32S3 Variant = "ESP32S3"
	VariantESP32C3 Variant = "ESP32C3"
	VariantESP32C6 Variant = "ESP32C6"
	VariantESP32H2 Variant = "ESP32H2"

	FrameworkESPIDF  Framework = "esp-idf"
	FrameworkArduino Framework = "arduino"

	CapabilityWiFi Capability = "wifi"
)

// Target describes the build target a compile pass runs against. It is
// passed explicitly through the compiler; nothing reads it from globals.
type Target struct {
	Family    Family
	Variant   Variant
	Framework Framework
}

// ParseTarget normalizes user supplied target names.
func ParseTarget(family, variant, framework string) (Target, error) {
	t := Target{
		Family:    Family(strings.ToLower(strings.TrimSpace(family))),
		Variant:   Variant(strings.ToUpper(strings.TrimSpace(variant))),
		Framework: Framework(strings.ToLower(strings.TrimSpace(framework))),
	}
	if t.Family == "" {
		return Target{}, fmt.Errorf("platform family must not be empty")
	}
	if t.Family == FamilyESP32 {
		if t.Variant == "" {
			t.Variant = VariantESP32
		}
		if t.Framework == "" {
			t.Framework = FrameworkArduino
		}
	} else if t.Variant != "" {
		return Target{}, fmt.Errorf("platform family %s has no variants (got %s)", t.Family, t.Variant)
	}
	return t, nil
}

func (t Target) String() string {
	var b strings.Builder
	b.WriteString(string(t.Family))
	if t.Variant != "" {
		b.WriteString("/")
		b.WriteString(string(t.Variant))
	}
	if t.Framework != "" {
		b.WriteString(" (")
		b.WriteString(string(t.Framework))
		b.WriteString(")")
	}
	return b.String()
}

// Database answers capability questions about the active build target.
type Database interface {
	// Variant returns the variant selected for family. ok is false when the
	// family has no variants at all.
	Variant(family Family) (variant Variant, ok bool)
	// Supports reports whether variant provides capability.
	Supports(variant Variant, capability Capability) bool
}

// noWiFiVariants lists variants that lack a WiFi radio.
var noWiFiVariants = []Variant{VariantESP32H2}

// StaticDatabase is a Database backed by a fixed capability table.
type StaticDatabase struct {
	variants    map[Family]Variant
	unsupported map[Variant]map[Capability]struct{}
}

// NewStaticDatabase returns a database for target with the built-in
// capability table.
func NewStaticDatabase(target Target) *StaticDatabase {
	db := &StaticDatabase{
		variants:    make(map[Family]Variant),
		unsupported: make(map[Variant]map[Capability]struct{}),
	}
	if target.Family == FamilyESP32 {
		variant := target.Variant
		if variant == "" {
			variant = VariantESP32
		}
		db.variants[FamilyESP32] = variant
	}
	for _, v := range noWiFiVariants {
		db.Disable(v, CapabilityWiFi)
	}
	return db
}

// Disable marks capability as unavailable on variant.
func (d *StaticDatabase) Disable(variant Variant, capability Capability) {
	caps, ok := d.unsupported[variant]
	if !ok {
		caps = make(map[Capability]struct{})
		d.unsupported[variant] = caps
	}
	caps[capability] = struct{}{}
}

func (d *StaticDatabase) Variant(family Family) (Variant, bool) {
	v, ok := d.variants[family]
	return v, ok
}

func (d *StaticDatabase) Supports(variant Variant, capability Capability) bool {
	_, missing := d.unsupported[variant][capability]
	return !missing
}
