// Package network builds the intermediate representation of radio network
// entries from validated configuration.
package network

import (
	"net/netip"

	"github.com/timzifer/threadgen/schema"
)

// LocalType is the generated type holding an entry's TLVs.
const LocalType = "thread::TLVs"

// AddressMode is a resolved static IPv4 assignment. A nil *AddressMode on an
// entry means the runtime default (DHCP) applies.
type AddressMode struct {
	StaticIP netip.Addr
	Gateway  netip.Addr
	Subnet   netip.Addr
	DNS1     netip.Addr
	DNS2     netip.Addr
}

// Entry is one network profile registered with the radio component.
type Entry struct {
	ID        string
	LocalType string
	TLVs      *string
	Address   *AddressMode

	Primary bool
	Timeout schema.Milliseconds
}

// HasTLVs reports whether the entry carries a TLV blob. An empty string
// counts as no value.
func (e Entry) HasTLVs() bool {
	return e.TLVs != nil && *e.TLVs != ""
}

// BuildEntry converts a validated entry. The entry's own manual_ip wins over
// fallback; with neither the address mode stays unset.
func BuildEntry(cfg schema.NetworkConfig, fallback *schema.ManualIP) Entry {
	return Entry{
		ID:        cfg.ID,
		LocalType: LocalType,
		TLVs:      copyString(cfg.TLVs),
		Address:   resolveAddress(cfg.ManualIP, fallback),
	}
}

// BuildPrimary builds the primary entry the same way as BuildEntry and
// records its timeout.
func BuildPrimary(cfg schema.PrimaryConfig, fallback *schema.ManualIP) Entry {
	entry := BuildEntry(schema.NetworkConfig{ID: cfg.ID, TLVs: cfg.TLVs, ManualIP: cfg.ManualIP}, fallback)
	entry.Primary = true
	entry.Timeout = cfg.Timeout
	return entry
}

// BuildAll builds every entry of cfg in declaration order, followed by the
// optional primary entry.
func BuildAll(cfg *schema.RadioConfig) ([]Entry, *Entry) {
	if cfg == nil {
		return nil, nil
	}
	entries := make([]Entry, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		entries = append(entries, BuildEntry(n, cfg.ManualIP))
	}
	var primary *Entry
	if cfg.Thread != nil {
		p := BuildPrimary(*cfg.Thread, cfg.ManualIP)
		primary = &p
	}
	return entries, primary
}

func resolveAddress(local, fallback *schema.ManualIP) *AddressMode {
	src := local
	if src == nil {
		src = fallback
	}
	if src == nil {
		return nil
	}
	return &AddressMode{
		StaticIP: parseAddr(src.StaticIP),
		Gateway:  parseAddr(src.Gateway),
		Subnet:   parseAddr(src.Subnet),
		DNS1:     parseAddr(src.DNS1),
		DNS2:     parseAddr(src.DNS2),
	}
}

// parseAddr returns the zero Addr for empty or invalid input; the schema has
// already rejected invalid addresses.
func parseAddr(s string) netip.Addr {
	if s == "" {
		return netip.Addr{}
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
