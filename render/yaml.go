package render

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/processor"
)

type planDocument struct {
	RunID    string      `yaml:"run_id"`
	Units    []unitEntry `yaml:"units"`
	Actions  []actionDoc `yaml:"actions"`
	Failures []string    `yaml:"failures,omitempty"`
}

type unitEntry struct {
	Name     string  `yaml:"name"`
	Priority float64 `yaml:"priority"`
	Actions  int     `yaml:"actions"`
}

type actionDoc struct {
	Kind    string `yaml:"kind"`
	ID      string `yaml:"id,omitempty"`
	Type    string `yaml:"type,omitempty"`
	Local   bool   `yaml:"local,omitempty"`
	Target  string `yaml:"target,omitempty"`
	Field   string `yaml:"field,omitempty"`
	Value   any    `yaml:"value,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Scope   string `yaml:"scope,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// YAML dumps a plan for inspection.
func YAML(w io.Writer, plan *processor.Plan) error {
	if plan == nil {
		return fmt.Errorf("plan must not be nil")
	}
	doc := planDocument{RunID: plan.RunID}
	for _, u := range plan.Units {
		doc.Units = append(doc.Units, unitEntry{Name: u.Name, Priority: u.Priority, Actions: u.Actions})
	}
	for _, a := range plan.Actions {
		doc.Actions = append(doc.Actions, describe(a))
	}
	for _, f := range plan.Failures {
		doc.Failures = append(doc.Failures, f.Error())
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

func describe(a action.Action) actionDoc {
	doc := actionDoc{Kind: a.Kind().String()}
	switch v := a.(type) {
	case action.Construct:
		doc.ID, doc.Type, doc.Local = v.ID, v.Type, v.Local
	case action.SetField:
		doc.Target, doc.Field = v.Target, v.Field
		if ref, ok := v.Value.(action.Ref); ok {
			doc.Ref = string(ref)
		} else {
			doc.Value = v.Value
		}
	case action.DefineFlag:
		doc.Name, doc.Value, doc.Scope = v.Name, v.Value, v.Scope.String()
	case action.RegisterComponent:
		doc.Target = v.Target
	case action.Raise:
		doc.Name, doc.Message = v.ErrorKind, v.Message
	case action.Checkpoint:
		doc.Name = v.Name
	}
	return doc
}
