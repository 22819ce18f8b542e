package compiler

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/platform"
	"github.com/timzifer/threadgen/sequencer"
)

// Option configures a Compiler during construction.
type Option func(*settings) error

type settings struct {
	target     platform.Target
	db         platform.Database
	policy     *platform.FrameworkPolicy
	logger     zerolog.Logger
	extensions []sequencer.Extension
	customExt  bool
	automation automation.Builder
	nodeName   string
}

// WithTarget sets the hardware target the compile pass runs against.
func WithTarget(target platform.Target) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.target = target
		return nil
	}
}

// WithDatabase replaces the static capability database derived from the
// target.
func WithDatabase(db platform.Database) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if db == nil {
			return errors.New("capability database must not be nil")
		}
		cfg.db = db
		return nil
	}
}

// WithPolicy installs the framework policy.
func WithPolicy(policy *platform.FrameworkPolicy) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if policy == nil {
			return errors.New("framework policy must not be nil")
		}
		cfg.policy = policy
		return nil
	}
}

// WithLogger provides a custom logger instance for the compiler.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		return nil
	}
}

// WithExtensions replaces the default extension steps.
func WithExtensions(ext ...sequencer.Extension) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.extensions = append([]sequencer.Extension(nil), ext...)
		cfg.customExt = true
		return nil
	}
}

// WithAutomation installs the builder for on_connect/on_disconnect handlers.
func WithAutomation(builder automation.Builder) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.automation = builder
		return nil
	}
}

// WithNodeName sets the device name used for address defaults.
func WithNodeName(name string) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.nodeName = name
		return nil
	}
}
