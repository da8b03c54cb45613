package armv6m

import (
	"encoding/binary"

	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/state"
)

func regName(n uint32) string {
	switch n {
	case 13:
		return "SP"
	case 14:
		return "LR"
	case 15:
		return "PC"
	default:
		return "R" + itoa(n)
	}
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var digits [3]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

func reg3(opcode uint16, shift uint) ir.Operand {
	return ir.Reg(regName(uint32(opcode>>shift) & 0x7))
}

// Translate decodes the Thumb instruction at the front of bytes. It wraps
// the result in an OpConditionalExecute if s has a pending IT-block
// condition (spec.md §4.2) — on plain ARMv6-M this queue is always empty,
// since only arch/armv7em's IT instruction ever populates it. armv7em
// itself calls Decode16 rather than this function and does its own IT
// wrapping.
func Translate(bytes []byte, s *state.State) (ir.Instruction, error) {
	instr, err := Decode16(bytes)
	if err != nil {
		return ir.Instruction{}, err
	}

	if cond, ok := s.PopITCondition(); ok {
		wrapped := ir.ConditionalExecute(instr.Operations...)
		wrapped.Condition = cond
		instr.Operations = []ir.Operation{wrapped}
	}
	return instr, nil
}

// Decode16 decodes the 16-bit-Thumb-and-BL subset of the instruction set
// that ARMv6-M and ARMv7E-M share; arch/armv7em calls this directly for
// every opcode that isn't one of its own 32-bit Thumb-2 extensions.
func Decode16(bytes []byte) (ir.Instruction, error) {
	if len(bytes) < 2 {
		return ir.Instruction{}, errs.Errorf(errs.InsufficientInput, errs.MsgInsufficientInput, 0)
	}
	opcode := binary.LittleEndian.Uint16(bytes)

	switch {
	case opcode&0xf800 == 0xf000:
		return decodeBL(opcode, bytes)
	case opcode&0xff00 == 0xdf00:
		return decodeSVC(opcode), nil
	case opcode&0xf000 == 0xd000:
		return decodeConditionalBranch(opcode), nil
	case opcode&0xf800 == 0xe000:
		return decodeUnconditionalBranch(opcode), nil
	case opcode&0xf000 == 0xc000:
		return decodeLoadStoreMultiple(opcode), nil
	case opcode&0xff00 == 0xb000:
		return decodeAddOffsetToSP(opcode), nil
	case opcode&0xf600 == 0xb400:
		return decodePushPop(opcode), nil
	case opcode&0xf500 == 0xb100:
		return decodeCompareBranchZero(opcode), nil
	case opcode&0xff00 == 0xbf00 && opcode&0x000f == 0:
		return ir.New(16, "nop", ir.Cycles(1), ir.Nop()), nil
	case opcode&0xf000 == 0xa000:
		return decodeLoadAddress(opcode), nil
	case opcode&0xf000 == 0x9000:
		return decodeSPRelativeLoadStore(opcode), nil
	case opcode&0xf000 == 0x8000:
		return decodeLoadStoreHalfword(opcode), nil
	case opcode&0xe000 == 0x6000:
		return decodeLoadStoreImmOffset(opcode), nil
	case opcode&0xf200 == 0x5200:
		return decodeLoadStoreSignExtended(opcode), nil
	case opcode&0xf200 == 0x5000:
		return decodeLoadStoreRegOffset(opcode), nil
	case opcode&0xf800 == 0x4800:
		return decodePCRelativeLoad(opcode), nil
	case opcode&0xfc00 == 0x4400:
		return decodeHiRegisterOps(opcode)
	case opcode&0xfc00 == 0x4000:
		return decodeALU(opcode), nil
	case opcode&0xe000 == 0x2000:
		return decodeMovCmpAddSubImm(opcode), nil
	case opcode&0xf800 == 0x1800:
		return decodeAddSubtract(opcode), nil
	case opcode&0xe000 == 0x0000:
		return decodeMoveShiftedRegister(opcode), nil
	default:
		return ir.Instruction{}, errs.Errorf(errs.InvalidInstruction, errs.MsgInvalidInstruction, opcode, 0)
	}
}

// --- format 1: move shifted register (LSL/LSR/ASR immediate) ---

func decodeMoveShiftedRegister(opcode uint16) ir.Instruction {
	op := (opcode & 0x1800) >> 11
	shift := uint32((opcode & 0x07c0) >> 6)
	src := reg3(opcode, 3)
	dst := reg3(opcode, 0)

	var ops []ir.Operation
	var mnemonic string
	switch op {
	case 0b00:
		mnemonic = "lsls"
		ops = shiftLeftImm(dst, src, shift)
	case 0b01:
		mnemonic = "lsrs"
		ops = shiftRightImm(dst, src, shift, ir.BinLShr)
	default: // 0b10: ASR
		mnemonic = "asrs"
		ops = shiftRightImm(dst, src, shift, ir.BinAShr)
	}
	ops = append(ops, ir.SetFlagsLogical(dst))
	return ir.New(16, mnemonic, ir.Cycles(1), ops...)
}

// shiftLeftImm builds LSL #shift, latching the bit shifted out into C
// (unaffected when shift == 0, per the ARM architecture reference). src is
// snapshotted before the mutating op so that extractBitToFlag still reads
// the pre-shift value even when dst and src name the same register (a
// legal encoding, e.g. "LSLS R1, R1, #imm").
func shiftLeftImm(dst, src ir.Operand, shift uint32) []ir.Operation {
	if shift == 0 {
		return []ir.Operation{ir.Move(dst, src)}
	}
	srcOld := ir.Local("shiftSrcOld")
	ops := []ir.Operation{
		ir.Move(srcOld, src),
		ir.Binary(ir.BinShl, dst, src, ir.Imm(uint64(shift), 32), false),
	}
	return append(ops, extractBitToFlag(srcOld, 32-shift, "C")...)
}

// shiftRightImm builds LSR/ASR #shift; an encoded shift of 0 means an
// actual shift of 32, per the ARM architecture reference (LSR #32 zeroes
// the register; ASR #32 sign-extends it fully). src is snapshotted before
// the mutating op for the same Rd==Rm reason as shiftLeftImm.
func shiftRightImm(dst, src ir.Operand, shift uint32, binOp ir.BinOp) []ir.Operation {
	actual := shift
	if actual == 0 {
		actual = 32
	}
	srcOld := ir.Local("shiftSrcOld")
	ops := []ir.Operation{
		ir.Move(srcOld, src),
		ir.Binary(binOp, dst, src, ir.Imm(uint64(actual), 32), false),
	}
	return append(ops, extractBitToFlag(srcOld, actual-1, "C")...)
}

// extractBitToFlag builds the two-operation chain (shift the source right
// by bitPos into a scratch local, then mask to one bit and write the
// named flag) that latches bit index bitPos of src into the flag — how a
// generic, control-flow-free operation list expresses "set C from a
// specific source bit" without a dedicated carry-extraction primitive in
// the ir package.
func extractBitToFlag(src ir.Operand, bitPos uint32, flag string) []ir.Operation {
	scratch := ir.Local("carrybit")
	return []ir.Operation{
		ir.Binary(ir.BinLShr, scratch, src, ir.Imm(uint64(bitPos), 32), false),
		ir.Binary(ir.BinAnd, ir.Flag(flag), scratch, ir.Imm(1, 32), false),
	}
}
