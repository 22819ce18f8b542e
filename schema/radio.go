package schema

import (
	"fmt"
	"net/netip"
	"unicode/utf8"

	"github.com/timzifer/threadgen/config"
)

// MinTLVLength is the shortest non-empty TLV blob accepted.
const MinTLVLength = 8

const (
	// DefaultAPTimeout applies to a primary entry without ap_timeout.
	DefaultAPTimeout = "1min"

	// IdentifierKey is accepted as a long form of id.
	IdentifierKey = "identifier"

	rootIDBase  = "thread_threadcomponent_id"
	entryIDBase = "thread_tlvs_id"
)

const radioSource = `
#ID: =~"^[A-Za-z_][A-Za-z0-9_]*$"

#ManualIP: {
	static_ip: string
	gateway:   string
	subnet:    string
	dns1?:     string
	dns2?:     string
}

#Network: {
	id?:        #ID
	tlvs?:      string
	manual_ip?: #ManualIP
}

#Primary: {
	id?:        #ID
	tlvs?:      string
	manual_ip?: #ManualIP
	ap_timeout: *"1min" | string
}

#Radio: {
	id?:              #ID
	tlvs?:            string
	use_address?:     string
	manual_ip?:       #ManualIP
	networks?:        [...#Network]
	thread?:          #Primary
	reboot_timeout?:  string
	power_save_mode?: "none" | "light" | "high"
	fast_connect?:    bool
	passive_scan?:    bool
	enable_on_boot?:  bool
	enable_btm?:      bool
	enable_rrm?:      bool
	on_connect?:      _
	on_disconnect?:   _
}
`

// ManualIP configures static IPv4 addressing.
type ManualIP struct {
	StaticIP string `json:"static_ip"`
	Gateway  string `json:"gateway"`
	Subnet   string `json:"subnet"`
	DNS1     string `json:"dns1,omitempty"`
	DNS2     string `json:"dns2,omitempty"`
}

// NetworkConfig is one validated entry of the networks sequence.
type NetworkConfig struct {
	ID       string    `json:"id,omitempty"`
	TLVs     *string   `json:"tlvs,omitempty"`
	ManualIP *ManualIP `json:"manual_ip,omitempty"`
}

// PrimaryConfig is the validated thread block.
type PrimaryConfig struct {
	ID        string    `json:"id,omitempty"`
	TLVs      *string   `json:"tlvs,omitempty"`
	ManualIP  *ManualIP `json:"manual_ip,omitempty"`
	APTimeout string    `json:"ap_timeout"`

	Timeout Milliseconds `json:"-"`
}

// RadioConfig is the normalized radio component configuration.
type RadioConfig struct {
	ID            string          `json:"id,omitempty"`
	TLVs          *string         `json:"tlvs,omitempty"`
	UseAddress    string          `json:"use_address,omitempty"`
	ManualIP      *ManualIP       `json:"manual_ip,omitempty"`
	Networks      []NetworkConfig `json:"networks,omitempty"`
	Thread        *PrimaryConfig  `json:"thread,omitempty"`
	RebootTimeout *string         `json:"reboot_timeout,omitempty"`
	PowerSaveMode *string         `json:"power_save_mode,omitempty"`
	FastConnect   *bool           `json:"fast_connect,omitempty"`
	PassiveScan   *bool           `json:"passive_scan,omitempty"`
	EnableOnBoot  *bool           `json:"enable_on_boot,omitempty"`
	EnableBTM     *bool           `json:"enable_btm,omitempty"`
	EnableRRM     *bool           `json:"enable_rrm,omitempty"`

	RebootAfter  *Milliseconds `json:"-"`
	OnConnect    any           `json:"-"`
	OnDisconnect any           `json:"-"`
}

// RadioOptions carries document-level values that feed defaults.
type RadioOptions struct {
	// NodeName is used for the use_address default (<name>.local).
	NodeName string
}

var radioBase = MustCompile[RadioConfig]("radio", radioSource, "#Radio")

// Radio returns the schema of the radio component.
func Radio(opts RadioOptions) *Spec[RadioConfig] {
	return radioBase.
		WithPrepare(prepareRadio).
		WithRefiners(
			refineIdentifiers,
			refineTLVs,
			refineAddresses,
			refineTimePeriods,
			refineUseAddress(opts.NodeName),
			captureAutomations,
		)
}

// ValidateRadio validates a radio subtree with the default options.
func ValidateRadio(raw config.Node) (*RadioConfig, error) {
	return Validate(raw, Radio(RadioOptions{}))
}

// ValidateTLVs applies the TLV rule: empty means no value, anything else
// must be at least MinTLVLength characters long.
func ValidateTLVs(path Path, value string) (string, error) {
	if value == "" {
		return value, nil
	}
	if utf8.RuneCountInString(value) < MinTLVLength {
		return "", Invalid(path, "TLVs must be at least %d characters long", MinTLVLength)
	}
	return value, nil
}

// prepareRadio turns empty mappings written as `thread:` into {} so they
// unify with the entry definition, and folds identifier into id.
func prepareRadio(raw config.Node) error {
	if err := foldIdentifier(nil, raw); err != nil {
		return err
	}
	switch v := raw["thread"].(type) {
	case nil:
		if raw.Has("thread") {
			raw["thread"] = config.Node{}
		}
	case config.Node:
		if err := foldIdentifier(Path{"thread"}, v); err != nil {
			return err
		}
	}
	if seq, ok := raw["networks"].([]any); ok {
		for i := range seq {
			switch v := seq[i].(type) {
			case nil:
				seq[i] = config.Node{}
			case config.Node:
				if err := foldIdentifier(Path{"networks"}.Index(i), v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func foldIdentifier(path Path, node config.Node) error {
	v, ok := node[IdentifierKey]
	if !ok {
		return nil
	}
	if node.Has("id") {
		return Invalid(path.Child(IdentifierKey), "id and identifier are mutually exclusive")
	}
	delete(node, IdentifierKey)
	node["id"] = v
	return nil
}

func refineIdentifiers(cfg *RadioConfig, _ config.Node) error {
	seen := make(map[string]Path)
	claim := func(id string, path Path) error {
		if prev, dup := seen[id]; dup {
			return Invalid(path, "ID %s redefined (first declared at %s)", id, prev)
		}
		seen[id] = path
		return nil
	}

	if cfg.ID != "" {
		if err := claim(cfg.ID, Path{"id"}); err != nil {
			return err
		}
	}
	for i := range cfg.Networks {
		if id := cfg.Networks[i].ID; id != "" {
			if err := claim(id, Path{"networks"}.Index(i).Child("id")); err != nil {
				return err
			}
		}
	}
	if cfg.Thread != nil && cfg.Thread.ID != "" {
		if err := claim(cfg.Thread.ID, Path{"thread", "id"}); err != nil {
			return err
		}
	}

	gen := newIDGenerator(seen)
	if cfg.ID == "" {
		cfg.ID = gen.next(rootIDBase)
	}
	for i := range cfg.Networks {
		if cfg.Networks[i].ID == "" {
			cfg.Networks[i].ID = gen.next(entryIDBase)
		}
	}
	if cfg.Thread != nil && cfg.Thread.ID == "" {
		cfg.Thread.ID = gen.next(entryIDBase)
	}
	return nil
}

func refineTLVs(cfg *RadioConfig, _ config.Node) error {
	check := func(path Path, v *string) error {
		if v == nil {
			return nil
		}
		_, err := ValidateTLVs(path, *v)
		return err
	}
	if err := check(Path{"tlvs"}, cfg.TLVs); err != nil {
		return err
	}
	for i := range cfg.Networks {
		if err := check(Path{"networks"}.Index(i).Child("tlvs"), cfg.Networks[i].TLVs); err != nil {
			return err
		}
	}
	if cfg.Thread != nil {
		return check(Path{"thread", "tlvs"}, cfg.Thread.TLVs)
	}
	return nil
}

func refineAddresses(cfg *RadioConfig, _ config.Node) error {
	if err := checkManualIP(Path{"manual_ip"}, cfg.ManualIP); err != nil {
		return err
	}
	for i := range cfg.Networks {
		if err := checkManualIP(Path{"networks"}.Index(i).Child("manual_ip"), cfg.Networks[i].ManualIP); err != nil {
			return err
		}
	}
	if cfg.Thread != nil {
		return checkManualIP(Path{"thread", "manual_ip"}, cfg.Thread.ManualIP)
	}
	return nil
}

func checkManualIP(path Path, ip *ManualIP) error {
	if ip == nil {
		return nil
	}
	fields := []struct {
		name     string
		value    string
		optional bool
	}{
		{"static_ip", ip.StaticIP, false},
		{"gateway", ip.Gateway, false},
		{"subnet", ip.Subnet, false},
		{"dns1", ip.DNS1, true},
		{"dns2", ip.DNS2, true},
	}
	for _, f := range fields {
		if f.value == "" && f.optional {
			continue
		}
		addr, err := netip.ParseAddr(f.value)
		if err != nil || !addr.Is4() {
			return Invalid(path.Child(f.name), "%q is not a valid IPv4 address", f.value)
		}
	}
	return nil
}

func refineTimePeriods(cfg *RadioConfig, _ config.Node) error {
	if cfg.Thread != nil {
		ms, err := ParseTimePeriod(cfg.Thread.APTimeout)
		if err != nil {
			return Invalid(Path{"thread", "ap_timeout"}, "%v", err)
		}
		cfg.Thread.Timeout = ms
		cfg.Thread.APTimeout = FormatTimePeriod(ms)
	}
	if cfg.RebootTimeout != nil {
		ms, err := ParseTimePeriod(*cfg.RebootTimeout)
		if err != nil {
			return Invalid(Path{"reboot_timeout"}, "%v", err)
		}
		cfg.RebootAfter = &ms
		canonical := FormatTimePeriod(ms)
		cfg.RebootTimeout = &canonical
	}
	return nil
}

func refineUseAddress(nodeName string) Refiner[RadioConfig] {
	return func(cfg *RadioConfig, _ config.Node) error {
		if cfg.UseAddress != "" {
			return nil
		}
		host := nodeName
		if host == "" {
			host = cfg.ID
		}
		cfg.UseAddress = host + ".local"
		return nil
	}
}

// captureAutomations keeps automation configs verbatim; their structure is
// owned by the automation subsystem.
func captureAutomations(cfg *RadioConfig, raw config.Node) error {
	cfg.OnConnect = raw["on_connect"]
	cfg.OnDisconnect = raw["on_disconnect"]
	return nil
}

// Node renders the normalized configuration back into a raw tree. Validating
// the result again yields an equal RadioConfig.
func (c *RadioConfig) Node() config.Node {
	if c == nil {
		return nil
	}
	out := config.Node{"id": c.ID, "use_address": c.UseAddress}
	if c.TLVs != nil {
		out["tlvs"] = *c.TLVs
	}
	if c.ManualIP != nil {
		out["manual_ip"] = c.ManualIP.node()
	}
	if len(c.Networks) > 0 {
		seq := make([]any, 0, len(c.Networks))
		for _, n := range c.Networks {
			entry := config.Node{"id": n.ID}
			if n.TLVs != nil {
				entry["tlvs"] = *n.TLVs
			}
			if n.ManualIP != nil {
				entry["manual_ip"] = n.ManualIP.node()
			}
			seq = append(seq, entry)
		}
		out["networks"] = seq
	}
	if c.Thread != nil {
		entry := config.Node{"id": c.Thread.ID, "ap_timeout": c.Thread.APTimeout}
		if c.Thread.TLVs != nil {
			entry["tlvs"] = *c.Thread.TLVs
		}
		if c.Thread.ManualIP != nil {
			entry["manual_ip"] = c.Thread.ManualIP.node()
		}
		out["thread"] = entry
	}
	setString := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = *v
		}
	}
	setString("reboot_timeout", c.RebootTimeout)
	setString("power_save_mode", c.PowerSaveMode)
	setBool("fast_connect", c.FastConnect)
	setBool("passive_scan", c.PassiveScan)
	setBool("enable_on_boot", c.EnableOnBoot)
	setBool("enable_btm", c.EnableBTM)
	setBool("enable_rrm", c.EnableRRM)
	if c.OnConnect != nil {
		out["on_connect"] = c.OnConnect
	}
	if c.OnDisconnect != nil {
		out["on_disconnect"] = c.OnDisconnect
	}
	return out
}

func (m *ManualIP) node() config.Node {
	out := config.Node{"static_ip": m.StaticIP, "gateway": m.Gateway, "subnet": m.Subnet}
	if m.DNS1 != "" {
		out["dns1"] = m.DNS1
	}
	if m.DNS2 != "" {
		out["dns2"] = m.DNS2
	}
	return out
}

type idGenerator struct {
	taken map[string]struct{}
}

func newIDGenerator(declared map[string]Path) *idGenerator {
	taken := make(map[string]struct{}, len(declared))
	for id := range declared {
		taken[id] = struct{}{}
	}
	return &idGenerator{taken: taken}
}

// next returns base, or base_N with the smallest N >= 2 that is still free.
func (g *idGenerator) next(base string) string {
	candidate := base
	for n := 2; ; n++ {
		if _, used := g.taken[candidate]; !used {
			g.taken[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}
