// Package sequencer turns validated radio configuration into the ordered
// list of build actions consumed by a code-emission backend.
//
// The order is fixed: the root object is constructed first, entries follow
// in declaration order, defines come next with USE_WIFI last, then the
// component is registered and the safe mode checkpoint is marked. Setters
// that target an object always follow the action constructing it.
package sequencer

import (
	"errors"
	"fmt"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/network"
	"github.com/timzifer/threadgen/platform"
	"github.com/timzifer/threadgen/schema"
)

const (
	RootType = "thread::ThreadComponent"

	FlagWiFi          = "USE_WIFI"
	FlagWiFiAP        = "USE_WIFI_AP"
	FlagWiFi11KV      = "USE_WIFI_11KV_SUPPORT"
	SDKSoftAP         = "CONFIG_ESP_WIFI_SOFTAP_SUPPORT"
	SDKDHCPServer     = "CONFIG_LWIP_DHCPS"
	SDKWPA11KV        = "CONFIG_WPA_11KV_SUPPORT"
	ErrKindConfig     = "ConfigError"
	ConnectTrigger    = "connect_trigger"
	DisconnectTrigger = "disconnect_trigger"
)

// ConfigError reports an inconsistency between platform detection and
// framework selection, or a missing collaborator. It indicates a defect in
// the build setup rather than in user input.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// Input is everything a sequencing pass needs. It is assembled by the
// compiler after validation, platform checks and entry building.
type Input struct {
	Config  *schema.RadioConfig
	Entries []network.Entry
	Primary *network.Entry

	Target    platform.Target
	Framework platform.Decision

	// Extensions run after the primary entry, in order.
	Extensions []Extension
	// Automation builds on_connect/on_disconnect handlers. It may be nil when
	// no handlers are configured.
	Automation automation.Builder
}

// Sequence emits the action list for in. On error no actions are returned.
func Sequence(in Input) ([]action.Action, error) {
	cfg := in.Config
	if cfg == nil {
		return nil, errors.New("sequence: configuration must not be nil")
	}
	root := cfg.ID
	b := &action.Builder{}

	b.Construct(root, RootType)
	b.Set(root, "use_address", cfg.UseAddress)

	for _, entry := range in.Entries {
		addEntry(b, entry)
		b.Set(root, "add_sta", action.Ref(entry.ID))
	}

	if p := in.Primary; p != nil {
		addEntry(b, *p)
		b.Set(root, "tlvs", action.Ref(p.ID))
		b.Set(root, "ap_timeout", uint32(p.Timeout))
		b.Define(FlagWiFiAP)
	}

	for _, ext := range in.Extensions {
		if err := ext.Apply(b, in); err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.Name(), err)
		}
	}

	if in.Framework.Applicable {
		if in.Framework.Managed {
			b.SDKConfig(SDKSoftAP, false)
			b.SDKConfig(SDKDHCPServer, false)
			b.SDKConfig(SDKWPA11KV, true)
			b.Define(FlagWiFi11KV)
			if isSet(cfg.EnableBTM) {
				b.Set(root, "btm", true)
			}
			if isSet(cfg.EnableRRM) {
				b.Set(root, "rrm", true)
			}
		} else {
			b.Raise(ErrKindConfig, fmt.Sprintf("%s does not support WiFi", describeVariant(in.Target)))
		}
	}

	b.Define(FlagWiFi)
	b.Register(root, cfg)
	b.Checkpoint(action.SafeMode)

	if err := addAutomation(b, in, ConnectTrigger, cfg.OnConnect); err != nil {
		return nil, err
	}
	if err := addAutomation(b, in, DisconnectTrigger, cfg.OnDisconnect); err != nil {
		return nil, err
	}
	return b.Actions(), nil
}

func addEntry(b *action.Builder, entry network.Entry) {
	b.ConstructLocal(entry.ID, entry.LocalType)
	if entry.HasTLVs() {
		b.Set(entry.ID, "tlvs", *entry.TLVs)
	}
}

func addAutomation(b *action.Builder, in Input, trigger string, cfg any) error {
	if cfg == nil {
		return nil
	}
	if in.Automation == nil {
		return &ConfigError{Message: fmt.Sprintf("%s configured but no automation builder is installed", trigger)}
	}
	actions, err := in.Automation.Build(automation.Trigger{Parent: in.Config.ID, Name: trigger}, nil, cfg)
	if err != nil {
		return fmt.Errorf("build %s automation: %w", trigger, err)
	}
	b.Append(actions...)
	return nil
}

func describeVariant(t platform.Target) string {
	if t.Variant != "" {
		return string(t.Variant)
	}
	return string(t.Family)
}

func isSet(v *bool) bool {
	return v != nil && *v
}
