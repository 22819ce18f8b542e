package platform

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	// DefaultApplicableRule selects targets whose radio stack can be tuned
	// through SDK options.
	DefaultApplicableRule = `family == "esp32"`
	// DefaultManagedRule selects the managed wireless framework.
	DefaultManagedRule = `framework == "esp-idf"`
)

// Decision is the outcome of evaluating a FrameworkPolicy for a target.
type Decision struct {
	// Applicable is true when the target family takes framework specific
	// radio options at all.
	Applicable bool
	// Managed is true when the build uses the managed wireless framework.
	Managed bool
}

// FrameworkPolicy decides which framework and target combinations use the
// managed wireless stack. Rules are expr-lang boolean expressions over
// family, variant and framework.
type FrameworkPolicy struct {
	applicable *vm.Program
	managed    *vm.Program
	sources    [2]string
}

// DefaultPolicy returns the policy built from the default rules.
func DefaultPolicy() *FrameworkPolicy {
	p, err := NewPolicy("", "")
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy compiles the two rules. Empty rules fall back to the defaults.
func NewPolicy(applicable, managed string) (*FrameworkPolicy, error) {
	if strings.TrimSpace(applicable) == "" {
		applicable = DefaultApplicableRule
	}
	if strings.TrimSpace(managed) == "" {
		managed = DefaultManagedRule
	}
	applicableProg, err := compileRule(applicable)
	if err != nil {
		return nil, fmt.Errorf("compile applicable rule: %w", err)
	}
	managedProg, err := compileRule(managed)
	if err != nil {
		return nil, fmt.Errorf("compile managed rule: %w", err)
	}
	return &FrameworkPolicy{
		applicable: applicableProg,
		managed:    managedProg,
		sources:    [2]string{applicable, managed},
	}, nil
}

func compileRule(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.Env(ruleEnv(Target{})), expr.AsBool())
}

func ruleEnv(t Target) map[string]interface{} {
	return map[string]interface{}{
		"family":    string(t.Family),
		"variant":   string(t.Variant),
		"framework": string(t.Framework),
	}
}

// Rules returns the applicable and managed rule sources.
func (p *FrameworkPolicy) Rules() (applicable, managed string) {
	return p.sources[0], p.sources[1]
}

// Evaluate runs both rules against target.
func (p *FrameworkPolicy) Evaluate(target Target) (Decision, error) {
	env := ruleEnv(target)
	applicable, err := runRule(p.applicable, env)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate applicable rule %q: %w", p.sources[0], err)
	}
	managed, err := runRule(p.managed, env)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate managed rule %q: %w", p.sources[1], err)
	}
	return Decision{Applicable: applicable, Managed: managed}, nil
}

func runRule(program *vm.Program, env map[string]interface{}) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, expected bool", out)
	}
	return result, nil
}
