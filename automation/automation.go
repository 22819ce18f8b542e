// Package automation defines the contract of the subsystem that attaches
// user-defined event handlers to generated objects.
package automation

import (
	"fmt"

	"github.com/timzifer/threadgen/action"
)

// Trigger identifies an event source on a generated object, e.g. the connect
// trigger of the radio component.
type Trigger struct {
	Parent string
	Name   string
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s->get_%s()", t.Parent, t.Name)
}

// Builder turns a user automation config bound to trigger into actions.
// args lists the argument types the trigger passes to its handlers.
type Builder interface {
	Build(trigger Trigger, args []string, cfg any) ([]action.Action, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(trigger Trigger, args []string, cfg any) ([]action.Action, error)

func (f BuilderFunc) Build(trigger Trigger, args []string, cfg any) ([]action.Action, error) {
	return f(trigger, args, cfg)
}

// AutomationType is the generated type wrapping a trigger's handlers.
const AutomationType = "Automation<>"

// Deferred is a Builder that only wires an automation object to the trigger
// and hands the handler config on untouched to a later automation pass.
type Deferred struct{}

func (Deferred) Build(trigger Trigger, args []string, cfg any) ([]action.Action, error) {
	if cfg == nil {
		return nil, nil
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("automation %s: trigger arguments are not supported", trigger)
	}
	id := fmt.Sprintf("%s_%s_automation", trigger.Parent, trigger.Name)
	b := &action.Builder{}
	b.Construct(id, AutomationType).
		Set(id, "trigger", action.Ref(trigger.String())).
		Set(id, "handlers", cfg)
	return b.Actions(), nil
}
