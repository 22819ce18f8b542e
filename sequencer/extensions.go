package sequencer

import (
	"strings"

	"github.com/timzifer/threadgen/action"
)

// Extension adds optional actions between the primary entry and the
// framework defines. Extensions must only emit setters on objects that
// already exist and must not register components.
type Extension interface {
	Name() string
	Apply(b *action.Builder, in Input) error
}

// ExtensionFunc adapts a function to Extension.
type ExtensionFunc struct {
	ID string
	Fn func(b *action.Builder, in Input) error
}

func (e ExtensionFunc) Name() string { return e.ID }

func (e ExtensionFunc) Apply(b *action.Builder, in Input) error {
	return e.Fn(b, in)
}

// DefaultExtensions returns the setters for optional radio tuning fields.
// Each emits nothing unless its field is configured.
func DefaultExtensions() []Extension {
	return []Extension{
		ExtensionFunc{ID: "reboot_timeout", Fn: rebootTimeout},
		ExtensionFunc{ID: "power_save_mode", Fn: powerSaveMode},
		boolSetter("fast_connect", func(in Input) *bool { return in.Config.FastConnect }),
		boolSetter("passive_scan", func(in Input) *bool { return in.Config.PassiveScan }),
		boolSetter("enable_on_boot", func(in Input) *bool { return in.Config.EnableOnBoot }),
	}
}

func rebootTimeout(b *action.Builder, in Input) error {
	if in.Config.RebootAfter == nil {
		return nil
	}
	b.Set(in.Config.ID, "reboot_timeout", uint32(*in.Config.RebootAfter))
	return nil
}

func powerSaveMode(b *action.Builder, in Input) error {
	if in.Config.PowerSaveMode == nil {
		return nil
	}
	mode := "thread::WIFI_POWER_SAVE_" + strings.ToUpper(*in.Config.PowerSaveMode)
	b.Set(in.Config.ID, "power_save_mode", action.Ref(mode))
	return nil
}

func boolSetter(field string, get func(Input) *bool) Extension {
	return ExtensionFunc{ID: field, Fn: func(b *action.Builder, in Input) error {
		v := get(in)
		if v == nil {
			return nil
		}
		b.Set(in.Config.ID, field, *v)
		return nil
	}}
}
