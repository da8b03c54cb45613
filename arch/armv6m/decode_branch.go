package armv6m

import (
	"encoding/binary"

	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/ir"
)

// pcRelativeTarget builds the Local that holds PC + 4 + offset — the
// architectural "PC reads 4 ahead of the executing instruction" rule Thumb
// branch displacements are defined against. PC() as read through the state
// always holds the address of the instruction currently being translated
// (spec.md §4.1), so the decoder supplies the +4 itself.
func pcRelativeTarget(offset int32) (ir.Operand, ir.Operation) {
	target := ir.Local("branchTarget")
	amount := uint64(uint32(4 + offset))
	return target, ir.Binary(ir.BinAdd, target, ir.Reg("PC"), ir.Imm(amount, 32), false)
}

func signExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}

// --- format 16: conditional branch ---

func decodeConditionalBranch(opcode uint16) ir.Instruction {
	cond := ir.Condition((opcode >> 8) & 0xf)
	offset := signExtend(uint32(opcode&0xff), 8) * 2
	target, compute := pcRelativeTarget(offset)

	body := ir.Jump(target)
	guarded := ir.ConditionalExecute(compute, body)
	guarded.Condition = cond
	return ir.New(16, "bcond", ir.CyclesFunc(branchPenalty(3)), guarded)
}

// --- format 18: unconditional branch ---

func decodeUnconditionalBranch(opcode uint16) ir.Instruction {
	offset := signExtend(uint32(opcode&0x7ff), 11) * 2
	target, compute := pcRelativeTarget(offset)
	return ir.New(16, "b", ir.CyclesFunc(branchPenalty(3)), compute, ir.Jump(target))
}

// --- format 19: branch with link (two 16-bit halfwords) ---

func decodeBL(opcode uint16, bytes []byte) (ir.Instruction, error) {
	if len(bytes) < 4 {
		return ir.Instruction{}, errs.Errorf(errs.InsufficientInput, errs.MsgInsufficientInput, 0)
	}
	low := binary.LittleEndian.Uint16(bytes[2:4])
	if low&0xf800 != 0xf800 {
		return ir.Instruction{}, errs.Errorf(errs.InvalidInstruction, errs.MsgInvalidInstruction, low, 0)
	}

	high11 := uint32(opcode & 0x7ff)
	low11 := uint32(low & 0x7ff)
	raw := (high11 << 12) | (low11 << 1)
	offset := signExtend(raw, 23)

	target := ir.Local("blTarget")
	compute := ir.Binary(ir.BinAdd, target, ir.Reg("PC"), ir.Imm(uint64(uint32(4+offset)), 32), false)
	return ir.New(32, "bl", ir.Cycles(4), compute, ir.BranchLink(target)), nil
}

// --- format 17: SVC (supervisor call) ---

func decodeSVC(opcode uint16) ir.Instruction {
	// SVC traps to the SVCall exception handler on real hardware; this
	// engine has no vector-table/exception model, so it is translated as a
	// no-op.
	return ir.New(16, "svc", ir.Cycles(1), ir.Nop())
}

// --- CBZ/CBNZ (ARMv6T2 addition to the 16-bit Thumb set) ---

// decodeCompareBranchZero builds CBZ/CBNZ. Both test Rn against zero
// without reading or writing any of N/Z/C/V, per the ARM architecture
// reference — unlike every other conditional branch in this package, whose
// guard is one of the real condition flags.
func decodeCompareBranchZero(opcode uint16) ir.Instruction {
	nonZero := opcode&0x0800 != 0
	i := uint32((opcode >> 9) & 1)
	imm5 := uint32((opcode >> 3) & 0x1f)
	rn := ir.Reg(regName(uint32(opcode) & 0x7))
	offset := int32((i << 6) | (imm5 << 1))

	target, compute := pcRelativeTarget(offset)

	mnemonic := "cbz"
	guarded := ir.ConditionalExecuteIfZero(rn, compute, ir.Jump(target))
	if nonZero {
		mnemonic = "cbnz"
		guarded = ir.ConditionalExecuteIfNonZero(rn, compute, ir.Jump(target))
	}
	return ir.New(16, mnemonic, ir.CyclesFunc(branchPenalty(2)), guarded)
}
