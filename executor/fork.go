package executor

import (
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/state"
)

// PushFork receives a forked sibling path and the extra constraint it
// carries, for the vm package's path store to hold until popped.
type PushFork func(sibling *state.State, extra smt.Expression)

// cursor captures where a forked sibling should resume the interrupted
// instruction's operation list — spec.md §4.5: "siblings inherit the same
// continue_in_instruction cursor so that the remainder of the instruction
// re-executes in each branch."
type cursor struct {
	instruction *ir.Instruction
	index       int
	locals      map[string]smt.Expression
}

func (c cursor) applyTo(s *state.State) {
	if c.instruction == nil {
		return
	}
	s.SetContinueInInstruction(&state.ContinueInInstruction{
		Instruction: c.instruction,
		Index:       c.index,
		Locals:      c.locals,
	})
}

// resolveGuard implements spec.md §4.5's fork discipline for a width-1
// guard expression: concrete guards need no solver query; a symbolic guard
// is checked against both polarities, and only forks when both are
// satisfiable. Returns whether the current path should take the branch
// (guard held), and non-nil terminal if neither polarity is satisfiable.
func resolveGuard(s *state.State, guard smt.Expression, c cursor, push PushFork) (taken bool, terminal *Result) {
	if v, ok := guard.GetConstant(); ok {
		return v != 0, nil
	}

	solver := s.Solver()
	notGuard := guard.Not()

	satTrue, err := solver.Sat(append(append([]smt.Expression(nil), s.Constraints()...), guard))
	if err != nil {
		return false, &Result{Outcome: EndFailure, Reason: err.Error()}
	}
	satFalse, err := solver.Sat(append(append([]smt.Expression(nil), s.Constraints()...), notGuard))
	if err != nil {
		return false, &Result{Outcome: EndFailure, Reason: err.Error()}
	}

	switch {
	case satTrue && satFalse:
		sibling := s.Clone()
		sibling.Assert(notGuard)
		c.applyTo(sibling)
		push(sibling, notGuard)
		s.Assert(guard)
		return true, nil
	case satTrue:
		s.Assert(guard)
		return true, nil
	case satFalse:
		s.Assert(notGuard)
		return false, nil
	default:
		return false, &Result{Outcome: AssumptionUnsat}
	}
}
