package armv6m

import (
	"testing"

	"github.com/ivajon/symex/executor"
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

func noFork(t *testing.T) executor.PushFork {
	t.Helper()
	return func(sibling *state.State, extra smt.Expression) {
		t.Fatalf("unexpected fork, extra=%v", extra)
	}
}

// step decodes the 16-bit opcode at s's current PC via Decode16 and runs it
// through executor.Step exactly once.
func step(t *testing.T, s *state.State, hc *hooks.Container, opcode uint16) executor.Result {
	t.Helper()
	var buf [2]byte
	buf[0] = byte(opcode)
	buf[1] = byte(opcode >> 8)
	res, err := executor.Step(s, hc, func(pc uint64) (ir.Instruction, error) {
		return Decode16(buf[:])
	}, noFork(t), executor.DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return res
}

// TestDecodeADCNoFlags exercises ADC's 3-input add: R0 = R0 + R1 + C.
func TestDecodeADCNoFlags(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R0", s.Solver().FromUint64(5, 32))
	s.WriteRegister("R1", s.Solver().FromUint64(7, 32))
	s.WriteFlag("C", s.Solver().FromUint64(1, 1))

	res := step(t, s, hc, 0x4148) // adcs r0, r1
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 13 {
		t.Fatalf("R0 = %d, want 13", got)
	}
}

// TestDecodeASRImmediateCarry exercises ASR #3 latching the correct carry
// bit (bit 2 of the source) and the correctly sign-extended result.
func TestDecodeASRImmediateCarry(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(0xFFFF_FFF4, 32)) // -12 = ...11110100
	res := step(t, s, hc, 0x10C8)                                 // asrs r0, r1, #3
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 0xFFFF_FFFE { // -12 >> 3 == -2
		t.Fatalf("R0 = %#x, want %#x", got, uint64(0xFFFF_FFFE))
	}
	// bit 2 of the source (the last bit shifted out) is 1.
	c, _ := s.ReadFlag("C").GetConstant()
	if c != 1 {
		t.Fatalf("C = %d, want 1", c)
	}
}

// TestDecodeConditionalBranchTaken exercises BEQ when Z is concretely set.
func TestDecodeConditionalBranchTaken(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(1, 1))
	res := step(t, s, hc, 0xD002) // beq #4
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0100+4+4 {
		t.Fatalf("PC = %#x, want %#x", s.PC(), uint64(0x0000_0100+4+4))
	}
}

// TestDecodeConditionalBranchNotTaken exercises BEQ when Z is concretely
// clear: the instruction falls through to the next 16-bit address.
func TestDecodeConditionalBranchNotTaken(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(0, 1))
	res := step(t, s, hc, 0xD002) // beq #4
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0100+2 {
		t.Fatalf("PC = %#x, want %#x", s.PC(), uint64(0x0000_0100+2))
	}
}

// TestDecodePushPopRoundTrip exercises PUSH {R4,LR} followed by POP
// {R4,PC}: the value written to R4 and the return address both survive.
func TestDecodePushPopRoundTrip(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R4", s.Solver().FromUint64(0x1234_5678, 32))
	s.WriteRegister("LR", s.Solver().FromUint64(0x0000_0200, 32))

	if res := step(t, s, hc, 0xB510); res.Outcome != executor.Running { // push {r4, lr}
		t.Fatalf("push outcome = %v, want Running", res.Outcome)
	}
	sp, _ := s.ReadRegister("SP").GetConstant()
	if sp != 0x2000_1000-8 {
		t.Fatalf("SP after push = %#x, want %#x", sp, uint64(0x2000_1000-8))
	}

	s.WriteRegister("R4", s.Solver().FromUint64(0, 32))
	if res := step(t, s, hc, 0xBD10); res.Outcome != executor.Running { // pop {r4, pc}
		t.Fatalf("pop outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R4").GetConstant()
	if got != 0x1234_5678 {
		t.Fatalf("R4 after pop = %#x, want %#x", got, uint64(0x1234_5678))
	}
	if s.PC() != 0x0000_0200 {
		t.Fatalf("PC after pop = %#x, want %#x", s.PC(), uint64(0x0000_0200))
	}
}

// TestDecodeBxMasksThumbBit exercises BX clearing the spurious Thumb-state
// bit 0 before jumping.
func TestDecodeBxMasksThumbBit(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(0x0000_0201, 32))
	res := step(t, s, hc, 0x4708) // bx r1
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0200 {
		t.Fatalf("PC = %#x, want %#x", s.PC(), uint64(0x0000_0200))
	}
}

// TestDecodeASRSameSourceAndDestCarry exercises ASRS R1, R1, #1 (a legal
// encoding with Rd==Rm): the carry extraction must read the pre-shift value
// of R1, not the value shiftRightImm's own mutating op just wrote to it.
func TestDecodeASRSameSourceAndDestCarry(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(0x8000_0001, 32))
	res := step(t, s, hc, 0x1049) // asrs r1, r1, #1
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R1").GetConstant()
	if got != 0xC000_0000 {
		t.Fatalf("R1 = %#x, want %#x", got, uint64(0xC000_0000))
	}
	c, _ := s.ReadFlag("C").GetConstant()
	if c != 1 {
		t.Fatalf("C = %d, want 1 (bit 0 of the pre-shift value)", c)
	}
}

// TestDecodeCBZSkipsAndPreservesFlags exercises CBZ R0, #0 with R0 nonzero:
// the branch is not taken, and N/Z must be left exactly as they were before
// the instruction (CBZ must never read or write the condition flags).
func TestDecodeCBZSkipsAndPreservesFlags(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("N", s.Solver().FromUint64(1, 1))
	s.WriteFlag("Z", s.Solver().FromUint64(1, 1))
	s.WriteRegister("R0", s.Solver().FromUint64(5, 32))

	res := step(t, s, hc, 0xB100) // cbz r0, #0
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0100+2 {
		t.Fatalf("PC = %#x, want %#x (not taken)", s.PC(), uint64(0x0000_0100+2))
	}
	n, _ := s.ReadFlag("N").GetConstant()
	z, _ := s.ReadFlag("Z").GetConstant()
	if n != 1 || z != 1 {
		t.Fatalf("N=%d Z=%d, want both unchanged at 1 (R0=5 would clear both if CBZ touched flags)", n, z)
	}
}

// TestDecodeCBZTakenPreservesFlags is the taken-branch counterpart: R0 == 0
// so the branch fires, and flags must still be untouched.
func TestDecodeCBZTakenPreservesFlags(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("N", s.Solver().FromUint64(1, 1))
	s.WriteFlag("Z", s.Solver().FromUint64(0, 1))
	s.WriteRegister("R0", s.Solver().FromUint64(0, 32))

	res := step(t, s, hc, 0xB100) // cbz r0, #0
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0100+4 {
		t.Fatalf("PC = %#x, want %#x (taken)", s.PC(), uint64(0x0000_0100+4))
	}
	n, _ := s.ReadFlag("N").GetConstant()
	z, _ := s.ReadFlag("Z").GetConstant()
	if n != 1 || z != 0 {
		t.Fatalf("N=%d Z=%d, want unchanged at N=1 Z=0", n, z)
	}
}
