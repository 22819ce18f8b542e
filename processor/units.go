package processor

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/compiler"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/platform"
)

// Unit is one compile pass over a document component.
type Unit interface {
	Name() string
	Priority() float64
	Compile(ctx context.Context, raw config.Node) ([]action.Action, error)
}

// AutoLoader is implemented by units that pull in other units even when the
// document does not mention them.
type AutoLoader interface {
	AutoLoad() []string
}

// Dependencies are the shared collaborators handed to unit factories.
type Dependencies struct {
	Logger     zerolog.Logger
	Automation automation.Builder
}

// UnitFactory creates the unit compiling one component of doc.
type UnitFactory func(doc *config.Document, deps Dependencies) (Unit, error)

// UnitDefinition binds a factory to a component key.
type UnitDefinition struct {
	Component string
	Factory   UnitFactory
}

func builtinUnits() []UnitDefinition {
	return []UnitDefinition{
		{Component: compiler.NetworkComponent, Factory: newNetworkUnit},
		{Component: compiler.Component, Factory: newRadioUnit},
	}
}

func newNetworkUnit(_ *config.Document, deps Dependencies) (Unit, error) {
	return compiler.NewNetworkUnit(deps.Logger), nil
}

func newRadioUnit(doc *config.Document, deps Dependencies) (Unit, error) {
	target, err := Target(doc)
	if err != nil {
		return nil, err
	}
	policy, err := platform.NewPolicy(doc.Policy.Applicable, doc.Policy.Managed)
	if err != nil {
		return nil, err
	}
	c, err := compiler.New(
		compiler.WithTarget(target),
		compiler.WithPolicy(policy),
		compiler.WithLogger(deps.Logger),
		compiler.WithNodeName(doc.Name),
		compiler.WithAutomation(deps.Automation),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Target resolves the build target of doc. Documents without a platform
// section build for the host.
func Target(doc *config.Document) (platform.Target, error) {
	if doc == nil || doc.Platform.Family == "" {
		return platform.Target{Family: platform.FamilyHost}, nil
	}
	return platform.ParseTarget(doc.Platform.Family, doc.Platform.Variant, doc.Platform.Framework)
}

type scheduled struct {
	unit Unit
	raw  config.Node
}

// schedule instantiates a unit for every component of doc plus everything
// they auto-load, ordered by priority (descending, stable by discovery).
func schedule(doc *config.Document, factories map[string]UnitFactory, deps Dependencies) ([]scheduled, error) {
	var out []scheduled
	seen := make(map[string]struct{})

	add := func(name string, raw config.Node) error {
		if _, ok := seen[name]; ok {
			return nil
		}
		factory, ok := factories[name]
		if !ok {
			return &compiler.Error{Unit: name, Kind: compiler.KindConfig, Err: fmt.Errorf("no compile unit registered for component %q", name)}
		}
		unit, err := factory(doc, deps)
		if err != nil {
			return compiler.Wrap(name, fmt.Errorf("create unit: %w", err))
		}
		seen[name] = struct{}{}
		out = append(out, scheduled{unit: unit, raw: raw})
		return nil
	}

	for _, c := range doc.Components {
		if err := add(c.Name, c.Node); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(out); i++ {
		loader, ok := out[i].unit.(AutoLoader)
		if !ok {
			continue
		}
		for _, dep := range loader.AutoLoad() {
			if err := add(dep, config.Node{}); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].unit.Priority() > out[j].unit.Priority()
	})
	return out, nil
}
