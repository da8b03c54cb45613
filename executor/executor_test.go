package executor

import (
	"testing"

	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/smt/concretetest"
	"github.com/ivajon/symex/state"
)

func testSetup(t *testing.T) (*state.State, *hooks.Container) {
	t.Helper()
	img := project.NewForTest(map[string]uint64{"_stack_start": 0x2000_1000}, 32, smt.LittleEndian)
	solver := concretetest.New()
	s, err := state.New(solver, concretetest.NewArray(), img, 0x0000_0100)
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return s, hooks.New()
}

func noFork(t *testing.T) PushFork {
	t.Helper()
	return func(sibling *state.State, extra smt.Expression) {
		t.Fatalf("unexpected fork, extra=%v", extra)
	}
}

// oneShotDecode returns a DecodeFunc that hands back instr exactly once,
// then errors — Step should never decode twice within a single test.
func oneShotDecode(t *testing.T, instr ir.Instruction) DecodeFunc {
	t.Helper()
	used := false
	return func(pc uint64) (ir.Instruction, error) {
		if used {
			t.Fatalf("decode called more than once")
		}
		used = true
		return instr, nil
	}
}

// TestADCNoFlags exercises the ADC no-flags seed scenario (spec.md §8):
// R0 = R0 + R1 + C, no flag update.
func TestADCNoFlags(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R0", s.Solver().FromUint64(5, 32))
	s.WriteRegister("R1", s.Solver().FromUint64(7, 32))
	s.WriteFlag("C", s.Solver().FromUint64(1, 1))

	instr := ir.New(16, "adcs r0, r1",
		ir.Cycles(1),
		ir.Binary(ir.BinAdd, ir.Local("sum"), ir.Reg("R0"), ir.Reg("R1"), false),
		ir.Binary(ir.BinAdd, ir.Local("sum"), ir.Local("sum"), ir.Flag("C"), false),
		ir.Move(ir.Reg("R0"), ir.Local("sum")),
	)

	res, err := Step(s, hc, oneShotDecode(t, instr), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 13 {
		t.Fatalf("R0 = %d, want 13", got)
	}
	if s.PC() != 0x102 {
		t.Fatalf("PC = %#x, want %#x", s.PC(), 0x102)
	}
}

// TestADCWithFlagsOverflow exercises the ADC-with-flags seed scenario:
// adding two values that overflow a signed 32-bit range sets V.
func TestADCWithFlagsOverflow(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R0", s.Solver().FromUint64(0x7FFF_FFFF, 32))
	s.WriteRegister("R1", s.Solver().FromUint64(1, 32))
	s.WriteFlag("C", s.Solver().FromUint64(0, 1))

	instr := ir.New(16, "adds r0, r1",
		ir.Cycles(1),
		ir.Binary(ir.BinAdd, ir.Local("sum"), ir.Reg("R0"), ir.Reg("R1"), true),
		ir.SetFlagsArith(ir.Reg("R0"), ir.Reg("R1"), ir.Flag("C"), true),
		ir.Move(ir.Reg("R0"), ir.Local("sum")),
	)

	res, err := Step(s, hc, oneShotDecode(t, instr), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 0x8000_0000 {
		t.Fatalf("R0 = %#x, want %#x", got, 0x8000_0000)
	}
	v, _ := s.ReadFlag("V").GetConstant()
	if v != 1 {
		t.Fatalf("V flag = %d, want 1 (signed overflow)", v)
	}
	n, _ := s.ReadFlag("N").GetConstant()
	if n != 1 {
		t.Fatalf("N flag = %d, want 1 (result is negative)", n)
	}
}

// TestASRImmediate exercises an arithmetic shift right by an immediate.
func TestASRImmediate(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R0", s.Solver().FromUint64(0xFFFF_FFF0, 32)) // -16

	instr := ir.New(16, "asrs r0, r0, #2",
		ir.Cycles(1),
		ir.Binary(ir.BinAShr, ir.Local("result"), ir.Reg("R0"), ir.Imm(2, 32), false),
		ir.Move(ir.Reg("R0"), ir.Local("result")),
		ir.SetFlagsLogical(ir.Local("result")),
	)

	res, err := Step(s, hc, oneShotDecode(t, instr), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 0xFFFF_FFFC { // -4
		t.Fatalf("R0 = %#x, want %#x", got, 0xFFFF_FFFC)
	}
	n, _ := s.ReadFlag("N").GetConstant()
	if n != 1 {
		t.Fatalf("N flag = %d, want 1", n)
	}
}

// TestConditionalBranchNotTaken exercises a concrete-guard conditional
// branch whose condition does not hold: the branch body must not run, and
// no fork happens since a concrete guard never queries the solver.
func TestConditionalBranchNotTaken(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(0, 1)) // EQ does not hold

	instr := ir.New(16, "beq target",
		ir.Cycles(1),
		func() ir.Operation {
			op := ir.ConditionalExecute(ir.Jump(ir.Imm(0x200, 32)))
			op.Condition = ir.EQ
			return op
		}(),
	)

	res, err := Step(s, hc, oneShotDecode(t, instr), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x102 {
		t.Fatalf("PC = %#x, want fallthrough to %#x (branch not taken)", s.PC(), 0x102)
	}
}

// TestConditionalBranchTaken is the mirror case: condition holds, body
// runs, PC becomes the jump target and the fallthrough increment is
// suppressed by HasJumped.
func TestConditionalBranchTaken(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(1, 1)) // EQ holds

	instr := ir.New(16, "beq target",
		ir.Cycles(1),
		func() ir.Operation {
			op := ir.ConditionalExecute(ir.Jump(ir.Imm(0x200, 32)))
			op.Condition = ir.EQ
			return op
		}(),
	)

	res, err := Step(s, hc, oneShotDecode(t, instr), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x200 {
		t.Fatalf("PC = %#x, want jump target %#x", s.PC(), 0x200)
	}
}

// TestPushPopRoundTrip exercises a PUSH {R4} followed by a POP {R4} via
// explicit memory operations, as the decoder would lower them: SP
// decrements/store, then load/increments.
func TestPushPopRoundTrip(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R4", s.Solver().FromUint64(0x1234_5678, 32))
	spBefore, _ := s.ReadRegister("SP").GetConstant()

	push := ir.New(16, "push {r4}",
		ir.Cycles(1),
		ir.Binary(ir.BinSub, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(4, 32), false),
		ir.Store(ir.Mem(ir.Reg("SP"), 32), ir.Reg("R4")),
	)

	res, err := Step(s, hc, oneShotDecode(t, push), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("push Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("push outcome = %v, want Running", res.Outcome)
	}
	spAfterPush, _ := s.ReadRegister("SP").GetConstant()
	if spAfterPush != spBefore-4 {
		t.Fatalf("SP after push = %#x, want %#x", spAfterPush, spBefore-4)
	}

	s.WriteRegister("R4", s.Solver().FromUint64(0, 32))

	pop := ir.New(16, "pop {r4}",
		ir.Cycles(1),
		ir.Load(ir.Reg("R4"), ir.Mem(ir.Reg("SP"), 32)),
		ir.Binary(ir.BinAdd, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(4, 32), false),
	)

	res, err = Step(s, hc, oneShotDecode(t, pop), noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("pop Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("pop outcome = %v, want Running", res.Outcome)
	}
	spAfterPop, _ := s.ReadRegister("SP").GetConstant()
	if spAfterPop != spBefore {
		t.Fatalf("SP after pop = %#x, want %#x (round trip)", spAfterPop, spBefore)
	}
	got, _ := s.ReadRegister("R4").GetConstant()
	if got != 0x1234_5678 {
		t.Fatalf("R4 after pop = %#x, want %#x", got, 0x1234_5678)
	}
}

// TestSymbolicJumpForksOneSiblingPerExtraSolution exercises spec.md
// §4.6: a jump to a non-constant target enumerates up to
// MaxSolverSolutions concrete solutions, continues the primary path under
// the first, and pushes one sibling per additional solution.
func TestSymbolicJumpForksOneSiblingPerExtraSolution(t *testing.T) {
	s, hc := testSetup(t)
	target := s.NewUnconstrained("targetAddr", 32)
	s.WriteRegister("R0", target)

	instr := ir.New(16, "bx r0",
		ir.Cycles(1),
		ir.Jump(ir.Reg("R0")),
	)

	var forkedExtras []smt.Expression
	push := func(sibling *state.State, extra smt.Expression) {
		forkedExtras = append(forkedExtras, extra)
	}

	cfg := DefaultConfig()
	cfg.MaxSolverSolutions = 4
	res, err := Step(s, hc, oneShotDecode(t, instr), push, cfg)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if len(forkedExtras) != 3 {
		t.Fatalf("forked sibling count = %d, want 3 (4 solutions - 1 continuing)", len(forkedExtras))
	}
	if !s.HasJumped() {
		t.Fatalf("HasJumped = false after a resolved symbolic jump")
	}
}

// TestCycleAccumulatesAcrossSteps checks cycle-count monotonicity: each
// Step call must strictly increase the running total by the instruction's
// declared cost.
func TestCycleAccumulatesAcrossSteps(t *testing.T) {
	s, hc := testSetup(t)
	nop := ir.New(16, "nop", ir.Cycles(3), ir.Nop())

	before := s.CycleCount()
	if _, err := Step(s, hc, oneShotDecode(t, nop), noFork(t), DefaultConfig()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	afterFirst := s.CycleCount()
	if afterFirst != before+3 {
		t.Fatalf("cycle count after 1 step = %d, want %d", afterFirst, before+3)
	}

	if _, err := Step(s, hc, oneShotDecode(t, nop), noFork(t), DefaultConfig()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	afterSecond := s.CycleCount()
	if afterSecond != afterFirst+3 {
		t.Fatalf("cycle count after 2 steps = %d, want %d", afterSecond, afterFirst+3)
	}
	if afterSecond <= afterFirst {
		t.Fatalf("cycle count must be strictly monotone increasing")
	}
}

// TestEndPCSentinelTerminatesSuccessfully checks that reaching the
// preloaded LR sentinel address ends the path successfully, per spec.md's
// end-PC sentinel rule, once the sentinel is installed as a PC hook (the
// vm package's job; here we install it directly to isolate the executor's
// behaviour).
func TestEndPCSentinelTerminatesSuccessfully(t *testing.T) {
	s, hc := testSetup(t)
	hc.AddPCHook(state.EndPCSentinel, hooks.PCHook{Kind: hooks.EndSuccess})
	s.SetPC(state.EndPCSentinel)

	decode := func(pc uint64) (ir.Instruction, error) {
		t.Fatalf("decode should never be reached once the end-PC hook fires")
		return ir.Instruction{}, nil
	}

	res, err := Step(s, hc, decode, noFork(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Outcome != EndSuccess {
		t.Fatalf("outcome = %v, want EndSuccess", res.Outcome)
	}
}

// TestIterationBudgetExceededFailsPath checks that exceeding MaxIterCount
// fails the path rather than looping forever.
func TestIterationBudgetExceededFailsPath(t *testing.T) {
	s, hc := testSetup(t)
	cfg := DefaultConfig()
	cfg.MaxIterCount = 1

	nop := func(pc uint64) (ir.Instruction, error) {
		return ir.New(16, "nop", ir.Cycles(1), ir.Nop()), nil
	}

	if _, err := Step(s, hc, nop, noFork(t), cfg); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	res, err := Step(s, hc, nop, noFork(t), cfg)
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if res.Outcome != EndFailure {
		t.Fatalf("outcome = %v, want EndFailure once the iteration budget is exceeded", res.Outcome)
	}
}
