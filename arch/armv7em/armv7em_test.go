package armv7em

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

// step decodes the opcode bytes at s's current PC via Translate and runs it
// through executor.Step exactly once.
func step(t *testing.T, s *state.State, hc *hooks.Container, bytes []byte) executor.Result {
	t.Helper()
	res, err := executor.Step(s, hc, func(pc uint64) (ir.Instruction, error) {
		return Translate(bytes, s)
	}, noFork(t), executor.DefaultConfig())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return res
}

func halfwords(a, b uint16) []byte {
	return []byte{byte(a), byte(a >> 8), byte(b), byte(b >> 8)}
}

// TestDecodeITSkipsFalseCondition exercises a one-instruction IT block
// (plain IT, mask=1000) whose guarded MOV is skipped when its
// condition is false.
func TestDecodeITSkipsFalseCondition(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(0, 1)) // EQ is false
	s.WriteRegister("R0", s.Solver().FromUint64(0, 32))

	// it eq  (firstcond=EQ=0, mask=1000 -> one instruction, no toggle)
	if res := step(t, s, hc, []byte{0x08, 0xBF}); res.Outcome != executor.Running {
		t.Fatalf("it outcome = %v, want Running", res.Outcome)
	}

	// movs r0, #7 (format 3) -- guarded by the pending EQ condition.
	if res := step(t, s, hc, []byte{0x07, 0x20}); res.Outcome != executor.Running {
		t.Fatalf("movs outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 0 {
		t.Fatalf("R0 = %d, want 0 (guarded instruction should not execute)", got)
	}
}

// TestDecodeITRunsTrueCondition is the same block with Z set, so the guard
// passes and the move executes.
func TestDecodeITRunsTrueCondition(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteFlag("Z", s.Solver().FromUint64(1, 1)) // EQ is true
	s.WriteRegister("R0", s.Solver().FromUint64(0, 32))

	if res := step(t, s, hc, []byte{0x08, 0xBF}); res.Outcome != executor.Running {
		t.Fatalf("it outcome = %v, want Running", res.Outcome)
	}
	if res := step(t, s, hc, []byte{0x07, 0x20}); res.Outcome != executor.Running {
		t.Fatalf("movs outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 7 {
		t.Fatalf("R0 = %d, want 7", got)
	}
}

// TestDecodeMovwMovt builds R0 = 0x00990042 from a MOVW/MOVT pair, each
// with only the imm8 field (bits 7:0 of the immediate) nonzero so the
// scattered-field arithmetic stays easy to hand-check.
func TestDecodeMovwMovt(t *testing.T) {
	s, hc := testSetup(t)

	// movw r0, #0x42 : imm4=0 i=0 imm3=0 rd=0 imm8=0x42 -> opcode=0xF240 low=0x0042
	if res := step(t, s, hc, halfwords(0xF240, 0x0042)); res.Outcome != executor.Running {
		t.Fatalf("movw outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 0x42 {
		t.Fatalf("R0 after movw = %#x, want %#x", got, uint64(0x42))
	}

	// movt r0, #0x99 : imm4=0 i=0 imm3=0 rd=0 imm8=0x99 -> opcode=0xF340 low=0x0099
	if res := step(t, s, hc, halfwords(0xF340, 0x0099)); res.Outcome != executor.Running {
		t.Fatalf("movt outcome = %v, want Running", res.Outcome)
	}
	got, _ = s.ReadRegister("R0").GetConstant()
	if got != 0x0099_0042 {
		t.Fatalf("R0 after movt = %#x, want %#x", got, uint64(0x0099_0042))
	}
}

// TestDecodeMulW exercises the 32-bit MUL: Rd = Rn * Rm.
func TestDecodeMulW(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(6, 32))
	s.WriteRegister("R2", s.Solver().FromUint64(7, 32))

	// mul.w r0, r1, r2 : opcode=0xFB01 (Rn=1), low: Rd=0 1111 Rm=2 0000 -> 0x0F20
	res := step(t, s, hc, halfwords(0xFB01, 0x0F20))
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 42 {
		t.Fatalf("R0 = %d, want 42", got)
	}
}

// TestDecodeUdiv exercises unsigned division.
func TestDecodeUdiv(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(100, 32))
	s.WriteRegister("R2", s.Solver().FromUint64(9, 32))

	// udiv r0, r1, r2 : opcode=0xFBB1 (Rn=1), low: Rd=0 1111 Rm=2 1111 -> 0x0F2F
	res := step(t, s, hc, halfwords(0xFBB1, 0x0F2F))
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R0").GetConstant()
	if got != 11 {
		t.Fatalf("R0 = %d, want 11", got)
	}
}

// TestDecodeLdrStrImm12RoundTrip exercises STR.W followed by LDR.W at the
// same 12-bit-immediate address.
func TestDecodeLdrStrImm12RoundTrip(t *testing.T) {
	s, hc := testSetup(t)
	s.WriteRegister("R1", s.Solver().FromUint64(0x2000_0000, 32)) // base
	s.WriteRegister("R0", s.Solver().FromUint64(0xDEAD_BEEF, 32)) // value to store

	// str.w r0, [r1, #0x10] : opcode=0xF8C1 (Rn=1), low: Rt=0 imm12=0x010 -> 0x0010
	if res := step(t, s, hc, halfwords(0xF8C1, 0x0010)); res.Outcome != executor.Running {
		t.Fatalf("str.w outcome = %v, want Running", res.Outcome)
	}

	s.WriteRegister("R2", s.Solver().FromUint64(0, 32))
	// ldr.w r2, [r1, #0x10] : opcode=0xF8D1 (Rn=1), low: Rt=2 imm12=0x010 -> 0x2010
	if res := step(t, s, hc, halfwords(0xF8D1, 0x2010)); res.Outcome != executor.Running {
		t.Fatalf("ldr.w outcome = %v, want Running", res.Outcome)
	}
	got, _ := s.ReadRegister("R2").GetConstant()
	if got != 0xDEAD_BEEF {
		t.Fatalf("R2 = %#x, want %#x", got, uint64(0xDEAD_BEEF))
	}
}

// TestDecodeBranchWideForward exercises the unconditional 32-bit branch
// (B.W, T4 encoding) with a small positive forward offset.
func TestDecodeBranchWideForward(t *testing.T) {
	s, hc := testSetup(t)

	// S=0, imm10=0, J1=0, J2=0, imm11=8: with S=0 and J1=J2=0, decodeBW's
	// I1/I2 exchange bits both come out 0, so offset = imm11<<1 = 16.
	// opcode = 0xF000 (S=0, imm10=0); low = 0x8008 (bit15=1,bit14=0,bit12=0
	// -- the B.W fixed pattern -- J1=0,J2=0,imm11=8).
	res := step(t, s, hc, halfwords(0xF000, 0x8008))
	if res.Outcome != executor.Running {
		t.Fatalf("outcome = %v, want Running", res.Outcome)
	}
	if s.PC() != 0x0000_0100+4+16 {
		t.Fatalf("PC = %#x, want %#x", s.PC(), uint64(0x0000_0100+4+16))
	}
}
