// Package compiler is the entry point of the radio component pass. It runs
// validation, the platform check, entry building and sequencing in that
// order and hands back the complete action list or an error.
package compiler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/network"
	"github.com/timzifer/threadgen/platform"
	"github.com/timzifer/threadgen/schema"
	"github.com/timzifer/threadgen/sequencer"
)

const (
	// Component is the document key the compiler consumes.
	Component = "radio"
	// Priority orders this pass relative to other compile units. Higher
	// values run earlier within a phase.
	Priority = 60.0
)

// Compiler compiles the radio component.
type Compiler struct {
	target     platform.Target
	checker    *platform.Checker
	policy     *platform.FrameworkPolicy
	spec       *schema.Spec[schema.RadioConfig]
	extensions []sequencer.Extension
	settings   settings
	logger     zerolog.Logger
}

// New constructs a compiler with the supplied options.
func New(opts ...Option) (*Compiler, error) {
	cfg := settings{
		target: platform.Target{Family: platform.FamilyHost},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.db == nil {
		cfg.db = platform.NewStaticDatabase(cfg.target)
	}
	if cfg.policy == nil {
		cfg.policy = platform.DefaultPolicy()
	}
	if !cfg.customExt {
		cfg.extensions = sequencer.DefaultExtensions()
	}
	return &Compiler{
		target:     cfg.target,
		checker:    platform.NewChecker(cfg.db, cfg.logger),
		policy:     cfg.policy,
		spec:       schema.Radio(schema.RadioOptions{NodeName: cfg.nodeName}),
		extensions: cfg.extensions,
		settings:   cfg,
		logger:     cfg.logger.With().Str("component", "compiler").Str("unit", Component).Logger(),
	}, nil
}

// Name returns the document key of the unit.
func (c *Compiler) Name() string { return Component }

// Priority returns the scheduling priority of the unit.
func (c *Compiler) Priority() float64 { return Priority }

// AutoLoad lists the units this one depends on.
func (c *Compiler) AutoLoad() []string { return []string{NetworkComponent} }

// Target returns the build target.
func (c *Compiler) Target() platform.Target { return c.target }

// Compile turns the raw radio subtree into actions. The first failing stage
// ends the pass and nothing is returned besides the error. A sequenced
// Raise is reported as a fatal configuration error.
func (c *Compiler) Compile(ctx context.Context, raw config.Node) ([]action.Action, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg, err := schema.Validate(raw, c.spec)
	if err != nil {
		return nil, Wrap(Component, err)
	}
	if err := c.checker.Check(cfg, c.target); err != nil {
		return nil, Wrap(Component, err)
	}

	entries, primary := network.BuildAll(cfg)

	decision, err := c.policy.Evaluate(c.target)
	if err != nil {
		return nil, Wrap(Component, fmt.Errorf("evaluate framework policy: %w", err))
	}

	actions, err := sequencer.Sequence(sequencer.Input{
		Config:     cfg,
		Entries:    entries,
		Primary:    primary,
		Target:     c.target,
		Framework:  decision,
		Extensions: c.extensions,
		Automation: c.settings.automation,
	})
	if err != nil {
		return nil, Wrap(Component, err)
	}
	if err := raised(Component, actions); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("id", cfg.ID).
		Int("entries", len(entries)).
		Bool("primary", primary != nil).
		Int("actions", len(actions)).
		Func(func(e *zerolog.Event) { e.Str("listing", action.Describe(actions)) }).
		Msg("radio component compiled")
	return actions, nil
}
