// Package state is the per-path execution state of spec.md §3 ("State"):
// registers, condition flags, the RAM overlay, path constraints, the
// cycle/instruction counters, and the IT-block condition queue, plus a
// resume cursor for an operation list interrupted mid-instruction by a
// fork.
//
// Grounded directly on
// original_source/symex_take_2/src/executor/state.rs (GAState2,
// ContinueInsideInstruction2, label_new_symbolic, reset_has_jumped), and on
// the teacher's ARMState struct in
// hardware/memory/cartridge/arm/arm.go for the concrete-register-
// array/status-flags shape (registers here are symbolic, so a map replaces
// the teacher's fixed [16]uint32 array, but the field grouping —
// registers, flags, PC shadow, cycle accounting — follows the same
// layout).
package state

import (
	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/memory"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/smt"
)

// EndPCSentinel is the odd, unaligned, non-existent Thumb address LR is
// preloaded with so that the first return from the entry function
// terminates the path as EndSuccess (spec.md §5 "End-PC sentinel").
const EndPCSentinel uint64 = 0xFFFF_FFFE

// ContinueInInstruction records where to resume an instruction's operation
// list after a fork occurred partway through it (spec.md's
// continue_in_instruction).
type ContinueInInstruction struct {
	Instruction *ir.Instruction
	Index       int
	Locals      map[string]smt.Expression
}

// State is one live path's full machine state. It is cloned on fork
// (spec.md's "Forks produce two states... clone"); the *project.Image it
// reads static memory from, and the smt.Solver it builds expressions
// through, are shared read-only across every path derived from the same
// VM.
type State struct {
	solver smt.Solver
	image  *project.Image

	registers map[string]smt.Expression
	flags     map[string]smt.Expression
	memory    *memory.ArrayMemory

	constraints []smt.Expression

	pc                    uint64
	hasJumped             bool
	instructionCounter    uint64
	cycleCount            uint64
	countCycles           bool
	itConditions          []ir.Condition
	lastInstruction       *ir.Instruction
	currentInstruction    *ir.Instruction
	continueInInstruction *ContinueInInstruction
}

// registerWidth is the pointer/general-purpose register width on every
// target this engine supports (spec.md §1's Cortex-M profiles are all
// 32-bit).
const registerWidth = 32

// flagNames are the four condition-flag register names (spec.md §3).
var flagNames = [...]string{"N", "Z", "C", "V"}

// New builds the initial state for entryPC within image, per spec.md's
// Lifecycle: PC ← entryPC, SP ← the image's _stack_start symbol, LR ←
// EndPCSentinel, flags unconstrained, registers otherwise empty.
func New(solver smt.Solver, array smt.Array, image *project.Image, entryPC uint64) (*State, error) {
	stackTop, ok := image.SymbolAddress("_stack_start")
	if !ok {
		return nil, errs.Errorf(errs.MissingStackSymbol, errs.MsgMissingStackSymbol, "_stack_start")
	}

	s := &State{
		solver:      solver,
		image:       image,
		registers:   make(map[string]smt.Expression),
		flags:       make(map[string]smt.Expression),
		memory:      memory.New(solver, array, image, image.PointerSize(), image.Endianness()),
		pc:          entryPC,
		countCycles: true,
	}

	s.registers["SP"] = solver.FromUint64(stackTop, registerWidth)
	s.registers["LR"] = solver.FromUint64(EndPCSentinel, registerWidth)
	for _, name := range flagNames {
		s.flags[name] = solver.Unconstrained("flag."+name, 1)
	}

	return s, nil
}

// Clone returns an independent copy of s for a forked sibling path. Maps
// and slices are copied so that mutation on one side is never observed by
// the other; the underlying ArrayMemory, solver, and program image follow
// their own sharing rules (see memory.ArrayMemory.Clone).
func (s *State) Clone() *State {
	clone := *s

	clone.registers = make(map[string]smt.Expression, len(s.registers))
	for k, v := range s.registers {
		clone.registers[k] = v
	}
	clone.flags = make(map[string]smt.Expression, len(s.flags))
	for k, v := range s.flags {
		clone.flags[k] = v
	}
	clone.memory = s.memory.Clone()

	clone.constraints = append([]smt.Expression(nil), s.constraints...)
	clone.itConditions = append([]ir.Condition(nil), s.itConditions...)

	return &clone
}

// PC returns the concrete program-counter shadow (spec.md: "PC is always
// concrete before a fetch").
func (s *State) PC() uint64 { return s.pc }

// SetPC overwrites the concrete program-counter shadow directly — used by
// the executor once a branch target has been resolved to a single
// concrete address (including via symbolic-PC enumeration), and by hook
// intrinsics that redirect control flow.
func (s *State) SetPC(pc uint64) { s.pc = pc }

// Solver returns the path's shared solver handle.
func (s *State) Solver() smt.Solver { return s.solver }

// Image returns the path's shared, read-only program image.
func (s *State) Image() *project.Image { return s.image }

// Memory returns the path's RAM overlay.
func (s *State) Memory() *memory.ArrayMemory { return s.memory }

// ReadRegister returns the current value of a named register. "PC" always
// reflects the concrete pc shadow. Any other name not yet present in the
// register map is lazily allocated as a fresh unconstrained symbol of
// register width and recorded — so that a second read of the same
// never-written register, on the same path, returns the identical
// expression object (spec.md's register-read memoization invariant).
func (s *State) ReadRegister(name string) smt.Expression {
	if name == "PC" {
		return s.solver.FromUint64(s.pc, registerWidth)
	}
	if v, ok := s.registers[name]; ok {
		return v
	}
	v := s.solver.Unconstrained("reg."+name, registerWidth)
	s.registers[name] = v
	return v
}

// WriteRegister sets a named register's value. Writing "PC" updates the pc
// shadow if value is concrete; a symbolic write to "PC" is the executor's
// responsibility to detect and resolve (spec.md §4.6), not this method's —
// by the time WriteRegister is called for "PC" the caller must already
// have resolved value to one concrete solution.
func (s *State) WriteRegister(name string, value smt.Expression) error {
	if name == "PC" {
		if c, ok := value.GetConstant(); ok {
			s.pc = c
			return nil
		}
		return errs.Errorf(errs.NonDeterministicPCAtFetch, errs.MsgNonDeterministicPCAtFetch, name)
	}
	s.registers[name] = value
	return nil
}

// ReadFlag returns the current value of a condition flag ("N", "Z", "C",
// "V"), lazily allocating it unconstrained if somehow absent (construction
// via New always pre-populates all four).
func (s *State) ReadFlag(name string) smt.Expression {
	if v, ok := s.flags[name]; ok {
		return v
	}
	v := s.solver.Unconstrained("flag."+name, 1)
	s.flags[name] = v
	return v
}

// WriteFlag sets a condition flag's value.
func (s *State) WriteFlag(name string, value smt.Expression) {
	s.flags[name] = value
}

// ReadMemory reads bits from addr through the RAM overlay / static-image
// redirection (spec.md §4.3).
func (s *State) ReadMemory(addr smt.Expression, bits uint32) smt.Expression {
	v, err := s.memory.Read(addr, bits)
	if err != nil {
		return s.solver.FromUint64(0, bits)
	}
	return v
}

// WriteMemory writes value to addr through the RAM overlay.
func (s *State) WriteMemory(addr smt.Expression, value smt.Expression) error {
	return s.memory.Write(addr, value)
}

// NewUnconstrained allocates a fresh, uniquely-named unconstrained symbol —
// the primitive behind the symbolic_size<T> intrinsic (spec.md §4.1).
func (s *State) NewUnconstrained(name string, width uint32) smt.Expression {
	return s.solver.Unconstrained(name, width)
}

// Assert appends a constraint to the path condition. The constraint set is
// monotone (spec.md's "Constraint monotonicity" law): this is the only way
// to add to it, and nothing ever removes from it.
func (s *State) Assert(constraint smt.Expression) {
	s.constraints = append(s.constraints, constraint)
}

// Constraints returns the path's accumulated constraint set.
func (s *State) Constraints() []smt.Expression {
	return s.constraints
}

// HasJumped reports whether the current instruction's execution already
// performed a control-flow transfer (used by the executor to decide
// whether to fall through to pc+size after running an instruction's
// operations).
func (s *State) HasJumped() bool { return s.hasJumped }

// SetHasJumped sets the has-jumped flag.
func (s *State) SetHasJumped(v bool) { s.hasJumped = v }

// ResetHasJumped clears the has-jumped flag, called by the executor at the
// start of each new instruction.
func (s *State) ResetHasJumped() { s.hasJumped = false }

// InstructionCounter returns how many instructions have completed on this
// path.
func (s *State) InstructionCounter() uint64 { return s.instructionCounter }

// IncrementInstructionCounter advances the instruction counter by one.
func (s *State) IncrementInstructionCounter() { s.instructionCounter++ }

// CycleCount returns the accumulated cycle count.
func (s *State) CycleCount() uint64 { return s.cycleCount }

// AddCycles adds n cycles to the accumulated count, if cycle counting is
// currently enabled (see CountCycles/SetCountCycles, toggled by the
// start_cyclecount/end_cyclecount intrinsics).
func (s *State) AddCycles(n uint64) {
	if s.countCycles {
		s.cycleCount += n
	}
}

// ResetCycleCount zeroes the accumulated cycle count (the
// start_cyclecount intrinsic).
func (s *State) ResetCycleCount() { s.cycleCount = 0 }

// CountCycles reports whether cycle accounting is currently active.
func (s *State) CountCycles() bool { return s.countCycles }

// SetCountCycles toggles cycle accounting (the end_cyclecount intrinsic
// disables it).
func (s *State) SetCountCycles(enabled bool) { s.countCycles = enabled }

// PushITConditions enqueues the conditions materialized by an IT
// instruction, one per conditionally-executed instruction that follows.
func (s *State) PushITConditions(conditions ...ir.Condition) {
	s.itConditions = append(s.itConditions, conditions...)
}

// PopITCondition dequeues and returns the next pending IT condition, if
// any.
func (s *State) PopITCondition() (ir.Condition, bool) {
	if len(s.itConditions) == 0 {
		return 0, false
	}
	c := s.itConditions[0]
	s.itConditions = s.itConditions[1:]
	return c, true
}

// LastInstruction returns the previously completed instruction, if any.
func (s *State) LastInstruction() *ir.Instruction { return s.lastInstruction }

// CurrentInstruction returns the instruction currently being executed, if
// any.
func (s *State) CurrentInstruction() *ir.Instruction { return s.currentInstruction }

// SetCurrentInstruction records the instruction the executor is about to
// run, moving the previous current instruction to last.
func (s *State) SetCurrentInstruction(instr *ir.Instruction) {
	s.lastInstruction = s.currentInstruction
	s.currentInstruction = instr
}

// ContinueInInstruction returns the pending mid-instruction resume cursor,
// if a fork interrupted the current instruction's operation list.
func (s *State) ContinueInInstruction() *ContinueInInstruction {
	return s.continueInInstruction
}

// SetContinueInInstruction installs or clears (pass nil) the
// mid-instruction resume cursor.
func (s *State) SetContinueInInstruction(c *ContinueInInstruction) {
	s.continueInInstruction = c
}
