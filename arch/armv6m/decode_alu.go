package armv6m

import (
	"github.com/ivajon/symex/ir"
)

// arithCarryIn returns the CarryIn operand for an OpSetFlagsArith that
// reproduces plain ADD/SUB semantics (no incoming carry from a flag).
func arithCarryIn(isAdd bool) ir.Operand {
	if isAdd {
		return ir.Imm(0, 1)
	}
	return ir.Imm(1, 1)
}

// --- format 2: add/subtract (register or 3-bit immediate) ---

func decodeAddSubtract(opcode uint16) ir.Instruction {
	isImm := opcode&0x0400 != 0
	isSub := opcode&0x0200 != 0
	field := uint32((opcode & 0x01c0) >> 6)
	rs := reg3(opcode, 3)
	rd := reg3(opcode, 0)

	var src2 ir.Operand
	if isImm {
		src2 = ir.Imm(uint64(field), 32)
	} else {
		src2 = ir.Reg(regName(field))
	}

	binOp, mnemonic := ir.BinAdd, "adds"
	if isSub {
		binOp, mnemonic = ir.BinSub, "subs"
	}

	return ir.New(16, mnemonic, ir.Cycles(1),
		ir.Binary(binOp, rd, rs, src2, true),
		ir.SetFlagsArith(rs, src2, arithCarryIn(!isSub), !isSub),
	)
}

// --- format 3: move/compare/add/subtract immediate ---

func decodeMovCmpAddSubImm(opcode uint16) ir.Instruction {
	op := (opcode & 0x1800) >> 11
	rd := reg3(opcode, 8)
	imm := ir.Imm(uint64(opcode&0x00ff), 32)

	switch op {
	case 0b00:
		return ir.New(16, "movs", ir.Cycles(1), ir.Move(rd, imm), ir.SetFlagsLogical(rd))
	case 0b01:
		return ir.New(16, "cmp", ir.Cycles(1), ir.Compare(rd, imm, false))
	case 0b10:
		return ir.New(16, "adds", ir.Cycles(1),
			ir.Binary(ir.BinAdd, rd, rd, imm, true),
			ir.SetFlagsArith(rd, imm, arithCarryIn(true), true),
		)
	default: // 0b11
		return ir.New(16, "subs", ir.Cycles(1),
			ir.Binary(ir.BinSub, rd, rd, imm, true),
			ir.SetFlagsArith(rd, imm, arithCarryIn(false), false),
		)
	}
}

// --- format 4: ALU operations ---

func decodeALU(opcode uint16) ir.Instruction {
	op := (opcode & 0x03c0) >> 6
	rs := reg3(opcode, 3)
	rd := reg3(opcode, 0)

	switch op {
	case 0b0000: // AND
		return ir.New(16, "ands", ir.Cycles(1), ir.Binary(ir.BinAnd, rd, rd, rs, true))
	case 0b0001: // EOR
		return ir.New(16, "eors", ir.Cycles(1), ir.Binary(ir.BinXor, rd, rd, rs, true))
	case 0b0010: // LSL (register)
		return ir.New(16, "lsls", ir.Cycles(1), ir.Binary(ir.BinShl, rd, rd, rs, true))
	case 0b0011: // LSR (register)
		return ir.New(16, "lsrs", ir.Cycles(1), ir.Binary(ir.BinLShr, rd, rd, rs, true))
	case 0b0100: // ASR (register)
		return ir.New(16, "asrs", ir.Cycles(1), ir.Binary(ir.BinAShr, rd, rd, rs, true))
	case 0b0101: // ADC
		return adcInstruction(rd, rs)
	case 0b0110: // SBC
		return sbcInstruction(rd, rs)
	case 0b0111: // ROR (register)
		return ir.New(16, "rors", ir.Cycles(1), ir.Binary(ir.BinRor, rd, rd, rs, true))
	case 0b1000: // TST
		return ir.New(16, "tst", ir.Cycles(1),
			ir.Binary(ir.BinAnd, ir.Local("tstResult"), rd, rs, false),
			ir.SetFlagsLogical(ir.Local("tstResult")),
		)
	case 0b1001: // NEG
		return ir.New(16, "negs", ir.Cycles(1),
			ir.Unary(ir.UnaryNeg, rd, rs, 32, true),
			ir.SetFlagsArith(ir.Imm(0, 32), rs, ir.Imm(1, 1), false),
		)
	case 0b1010: // CMP
		return ir.New(16, "cmp", ir.Cycles(1), ir.Compare(rd, rs, false))
	case 0b1011: // CMN
		return ir.New(16, "cmn", ir.Cycles(1), ir.Compare(rd, rs, true))
	case 0b1100: // ORR
		return ir.New(16, "orrs", ir.Cycles(1), ir.Binary(ir.BinOr, rd, rd, rs, true))
	case 0b1101: // MUL
		return ir.New(16, "muls", ir.Cycles(1), ir.Binary(ir.BinMul, rd, rd, rs, true))
	case 0b1110: // BIC
		return ir.New(16, "bics", ir.Cycles(1), ir.Binary(ir.BinBitClear, rd, rd, rs, true))
	default: // 0b1111: MVN
		return ir.New(16, "mvns", ir.Cycles(1), ir.Unary(ir.UnaryNot, rd, rs, 32, true))
	}
}

// adcInstruction builds Rd = Rd + Rs + C, sourcing the carry/overflow
// flags from a 3-input addWithCarry over the pre-update value of Rd
// (spec.md's executor already implements that 3-input form for
// OpSetFlagsArith; the decoder only needs to snapshot Rd first).
func adcInstruction(rd, rs ir.Operand) ir.Instruction {
	rdOld := ir.Local("rdOld")
	carryExt := ir.Local("carryExt")
	partial := ir.Local("adcPartial")
	return ir.New(16, "adcs", ir.Cycles(1),
		ir.Move(rdOld, rd),
		ir.Unary(ir.UnaryZeroExtend, carryExt, ir.Flag("C"), 32, false),
		ir.Binary(ir.BinAdd, partial, rd, carryExt, false),
		ir.Binary(ir.BinAdd, rd, partial, rs, true),
		ir.SetFlagsArith(rdOld, rs, ir.Flag("C"), true),
	)
}

// sbcInstruction builds Rd = Rd + ~Rs + C (ARM's SBC: Rd - Rs - NOT(C)),
// again snapshotting Rd for the flag computation.
func sbcInstruction(rd, rs ir.Operand) ir.Instruction {
	rdOld := ir.Local("rdOld")
	notRs := ir.Local("notRs")
	carryExt := ir.Local("carryExt")
	partial := ir.Local("sbcPartial")
	return ir.New(16, "sbcs", ir.Cycles(1),
		ir.Move(rdOld, rd),
		ir.Unary(ir.UnaryNot, notRs, rs, 32, false),
		ir.Unary(ir.UnaryZeroExtend, carryExt, ir.Flag("C"), 32, false),
		ir.Binary(ir.BinAdd, partial, rd, notRs, false),
		ir.Binary(ir.BinAdd, rd, partial, carryExt, true),
		ir.SetFlagsArith(rdOld, rs, ir.Flag("C"), false),
	)
}

// --- format 5: Hi register operations / branch exchange ---

func decodeHiRegisterOps(opcode uint16) (ir.Instruction, error) {
	op := (opcode & 0x0300) >> 8
	h1 := (opcode & 0x0080) >> 7
	h2 := (opcode & 0x0040) >> 6
	rdNum := uint32(h1)<<3 | uint32(opcode&0x7)
	rmNum := uint32(h2)<<3 | uint32((opcode>>3)&0x7)
	rd := ir.Reg(regName(rdNum))
	rm := ir.Reg(regName(rmNum))

	switch op {
	case 0b00:
		return ir.New(16, "add", ir.Cycles(1), ir.Binary(ir.BinAdd, rd, rd, rm, false)), nil
	case 0b01:
		return ir.New(16, "cmp", ir.Cycles(1), ir.Compare(rd, rm, false)), nil
	case 0b10:
		return ir.New(16, "mov", ir.Cycles(1), ir.Move(rd, rm)), nil
	default: // 0b11: BX/BLX
		target := ir.Local("bxTarget")
		mask := ir.Binary(ir.BinAnd, target, rm, ir.Imm(0xffff_fffe, 32), false)
		if h1 == 0 {
			return ir.New(16, "bx", ir.CyclesFunc(branchPenalty(3)), mask, ir.Jump(target)), nil
		}
		return ir.New(16, "blx", ir.CyclesFunc(branchPenalty(3)), mask, ir.BranchLink(target)), nil
	}
}

func branchPenalty(taken uint64) func(bool) uint64 {
	return func(branchTaken bool) uint64 {
		if branchTaken {
			return taken
		}
		return 1
	}
}
