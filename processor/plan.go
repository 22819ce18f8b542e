package processor

import (
	"errors"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/compiler"
)

// UnitResult summarizes one compiled unit of a plan.
type UnitResult struct {
	Name     string
	Priority float64
	Actions  int
	Phases   int
}

// Plan is the merged output of one build.
type Plan struct {
	RunID    string
	Units    []UnitResult
	Actions  []action.Action
	Failures []*compiler.Error
}

// Err joins the unit failures recorded on the plan.
func (p *Plan) Err() error {
	if p == nil || len(p.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(p.Failures))
	for i, f := range p.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// splitPhases cuts actions after every yield point. The trailing actions
// after the last yield point form the final phase.
func splitPhases(actions []action.Action) [][]action.Action {
	var (
		phases  [][]action.Action
		current []action.Action
	)
	for _, a := range actions {
		current = append(current, a)
		if action.YieldsAfter(a) {
			phases = append(phases, current)
			current = nil
		}
	}
	if len(current) > 0 {
		phases = append(phases, current)
	}
	return phases
}

// interleave emits phase k of every unit, in the given unit order, before
// any unit's phase k+1.
func interleave(units [][][]action.Action) []action.Action {
	var (
		out      []action.Action
		maxPhase int
	)
	for _, phases := range units {
		if len(phases) > maxPhase {
			maxPhase = len(phases)
		}
	}
	for k := 0; k < maxPhase; k++ {
		for _, phases := range units {
			if k < len(phases) {
				out = append(out, phases[k]...)
			}
		}
	}
	return out
}
