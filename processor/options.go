package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/telemetry"
)

// WithLogger provides a custom logger instance for the processor.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		cfg.customLogger = true
		return nil
	}
}

// WithUnit registers a compile unit for a component key. It replaces a
// built-in unit of the same key.
func WithUnit(def UnitDefinition) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if def.Component == "" {
			return errors.New("unit component must not be empty")
		}
		if def.Factory == nil {
			return fmt.Errorf("unit %s factory must not be nil", def.Component)
		}
		for _, existing := range cfg.units {
			if existing.Component == def.Component {
				return fmt.Errorf("unit %s already registered", def.Component)
			}
		}
		cfg.units = append(cfg.units, def)
		return nil
	}
}

// WithAutomation installs the builder for component automations.
func WithAutomation(builder automation.Builder) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.automation = builder
		return nil
	}
}

// WithConfigPath configures the processor to load the device document from
// the provided path.
func WithConfigPath(path string) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.configPath = strings.TrimSpace(path)
		return nil
	}
}

// WithDocument supplies an already loaded device document.
func WithDocument(doc *config.Document) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.document = doc
		return nil
	}
}

// WithWatch recompiles whenever a source file of the document changes. It
// requires a configuration path.
func WithWatch(enabled bool) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.watch = enabled
		return nil
	}
}

// WithSink receives every plan produced by Run.
func WithSink(sink Sink) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.sink = sink
		return nil
	}
}

// WithTelemetry injects a collector instance overriding the default configuration-based behaviour.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
		cfg.telemetryProvided = true
		return nil
	}
}
