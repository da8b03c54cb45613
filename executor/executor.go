package executor

import (
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/state"
)

// DecodeFunc fetches and translates the instruction at pc. The vm package
// supplies one backed by project.Image.BytesAt and an arch.Arch's
// Translate method; tests supply canned instructions directly.
type DecodeFunc func(pc uint64) (ir.Instruction, error)

// Config holds the driver-level limits of spec.md §6 that the interpreter
// itself enforces.
type Config struct {
	MaxIterCount       uint64
	MaxSolverSolutions int
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterCount:       1000,
		MaxSolverSolutions: 500,
	}
}

// locals is the per-instruction SSA scratch map for ir.OperandLocal values;
// it does not survive past the instruction unless captured in a
// state.ContinueInInstruction cursor.
type locals map[string]smt.Expression

// Step advances s by one instruction (or resumes one interrupted
// mid-operation-list by a prior fork), per spec.md §4.5. push receives any
// sibling states forked along the way. It returns Running if the path is
// still alive.
func Step(s *state.State, hc *hooks.Container, decode DecodeFunc, push PushFork, cfg Config) (Result, error) {
	if hook, ok := hc.PCHookAt(s.PC()); ok {
		switch hook.Kind {
		case hooks.EndSuccess:
			return Result{Outcome: EndSuccess}, nil
		case hooks.EndFailure:
			return Result{Outcome: EndFailure, Reason: hook.Reason}, nil
		case hooks.Suppress:
			return Result{Outcome: Suppress}, nil
		case hooks.Intrinsic:
			if err := hook.Fn(s); err != nil {
				return Result{Outcome: EndFailure, Reason: err.Error()}, nil
			}
			return Result{Outcome: Running}, nil
		}
		// hooks.Continue falls through to normal decode-and-execute.
	}

	var (
		instr *ir.Instruction
		index int
		loc   locals
	)

	if cont := s.ContinueInInstruction(); cont != nil {
		instr = cont.Instruction
		index = cont.Index
		loc = locals(cont.Locals)
		s.SetContinueInInstruction(nil)
	} else {
		decoded, err := decode(s.PC())
		if err != nil {
			return Result{Outcome: EndFailure, Reason: err.Error()}, nil
		}
		instr = &decoded
		index = 0
		loc = make(locals)
		s.SetCurrentInstruction(instr)
		s.ResetHasJumped()
	}

	for i := index; i < len(instr.Operations); i++ {
		op := instr.Operations[i]
		resume := cursor{
			instruction: instr,
			index:       i + 1,
			locals:      map[string]smt.Expression(loc),
		}
		if terminal := execOperation(s, hc, op, loc, resume, push, cfg); terminal != nil {
			return *terminal, nil
		}
	}

	if !s.HasJumped() {
		s.SetPC(s.PC() + uint64(instr.SizeBits/8))
	}

	s.IncrementInstructionCounter()
	s.AddCycles(instr.Cycles.Resolve(s.HasJumped()))

	if s.InstructionCounter() > cfg.MaxIterCount {
		return Result{Outcome: EndFailure, Reason: "iteration budget exceeded"}, nil
	}

	return Result{Outcome: Running}, nil
}
