package compiler

import (
	"errors"
	"fmt"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/platform"
	"github.com/timzifer/threadgen/schema"
	"github.com/timzifer/threadgen/sequencer"
)

// Kind classifies compile failures.
type Kind int

const (
	KindValidation Kind = iota
	KindPlatform
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPlatform:
		return "platform"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error wraps a failure of one compile unit.
type Error struct {
	Unit string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Unit, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure aborts the whole build. Only
// configuration defects do; validation and platform errors are confined to
// their unit.
func (e *Error) Fatal() bool {
	return e.Kind == KindConfig
}

// IsFatal reports whether err contains a fatal compile error.
func IsFatal(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Fatal()
}

// Wrap wraps err for unit, deriving the kind from the underlying type.
func Wrap(unit string, err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	var (
		verr *schema.ValidationError
		perr *platform.PlatformError
	)
	switch {
	case errors.As(err, &verr):
		return &Error{Unit: unit, Kind: KindValidation, Err: err}
	case errors.As(err, &perr):
		return &Error{Unit: unit, Kind: KindPlatform, Err: err}
	default:
		return &Error{Unit: unit, Kind: KindConfig, Err: err}
	}
}

// raised converts the first Raise action of a sequence into an error.
func raised(unit string, actions []action.Action) error {
	for _, a := range actions {
		r, ok := a.(action.Raise)
		if !ok {
			continue
		}
		return &Error{Unit: unit, Kind: KindConfig, Err: &sequencer.ConfigError{Message: r.Message}}
	}
	return nil
}
