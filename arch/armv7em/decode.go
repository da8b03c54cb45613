package armv7em

import (
	"encoding/binary"

	"github.com/ivajon/symex/arch/armv6m"
	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/state"
)

// Translate decodes one instruction at the front of bytes: IT instructions
// and the Thumb-2 32-bit subset are handled here; everything else is
// delegated to armv6m.Decode16, the 16-bit subset the two profiles share.
func Translate(bytes []byte, s *state.State) (ir.Instruction, error) {
	if len(bytes) < 2 {
		return ir.Instruction{}, errs.Errorf(errs.InsufficientInput, errs.MsgInsufficientInput, 0)
	}
	opcode := binary.LittleEndian.Uint16(bytes)

	if isITInstruction(opcode) {
		return decodeIT(opcode), nil
	}

	if is32BitThumb2(opcode) {
		instr, err := decode32(opcode, bytes)
		if err != nil {
			return ir.Instruction{}, err
		}
		return instr, nil
	}

	instr, err := armv6m.Decode16(bytes)
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

// isITInstruction recognises 1011 1111 cccc mmmm with mmmm != 0 (mmmm == 0
// is the plain NOP/hint space armv6m.Decode16 already handles).
func isITInstruction(opcode uint16) bool {
	return opcode&0xff00 == 0xbf00 && opcode&0x000f != 0
}

// is32BitThumb2 recognises the three 5-bit leading patterns the Thumb-2
// Supplement reserves for 32-bit instructions: 0b11101, 0b11110, 0b11111.
func is32BitThumb2(opcode uint16) bool {
	switch opcode & 0xf800 {
	case 0xe800, 0xf000, 0xf800:
		return true
	}
	return false
}

// decodeIT builds the OpITSetup operation carrying the IT block's
// Conditions, derived from the firstcond/mask nibbles per the "IT" entry of
// the Thumb-2 Supplement's instruction table: the lowest set bit of mask is
// the block terminator (its position gives the instruction count), and
// each mask bit above it gives one subsequent instruction's condition —
// firstcond unchanged if the bit is 1, with its least-significant bit
// flipped if the bit is 0.
func decodeIT(opcode uint16) ir.Instruction {
	firstCond := uint16((opcode >> 4) & 0xf)
	mask := uint16(opcode & 0xf)

	pos := 0
	for ; pos < 4; pos++ {
		if mask&(1<<uint(pos)) != 0 {
			break
		}
	}

	conds := []ir.Condition{ir.Condition(firstCond)}
	for k := 3; k > pos; k-- {
		toggle := firstCond
		if (mask>>uint(k))&1 == 0 {
			toggle ^= 1
		}
		conds = append(conds, ir.Condition(toggle))
	}

	return ir.New(16, "it", ir.Cycles(1), ir.ITSetup(conds...))
}

// decode32 covers a grounded subset of the Thumb-2 32-bit encoding space:
// MOVW/MOVT, unconditional B.W, BL.W (reusing armv6m's two-halfword BL
// decode, which already implements this family's simpler addressing
// arithmetic), MUL, UDIV/SDIV, and LDR/STR(.W) with a 12-bit immediate
// offset. Every other 32-bit encoding (Thumb-2 data-processing shifted
// register, LDM.W/STM.W, table branches, coprocessor/FPU instructions) is
// out of scope — see DESIGN.md's armv7em entry.
func decode32(opcode uint16, bytes []byte) (ir.Instruction, error) {
	if len(bytes) < 4 {
		return ir.Instruction{}, errs.Errorf(errs.InsufficientInput, errs.MsgInsufficientInput, 0)
	}
	low := binary.LittleEndian.Uint16(bytes[2:4])

	switch {
	case opcode&0xfbf0 == 0xf240 && low&0x8000 == 0: // MOVW
		return decodeMovWT(opcode, low, false), nil
	case opcode&0xfbf0 == 0xf340 && low&0x8000 == 0: // MOVT
		return decodeMovWT(opcode, low, true), nil
	case opcode&0xf800 == 0xf000 && low&0xd000 == 0xd000: // BL
		return armv6m.Decode16(bytes)
	case opcode&0xf800 == 0xf000 && low&0xd000 == 0x8000: // B.W (unconditional)
		return decodeBW(opcode, low), nil
	case opcode&0xffe0 == 0xfb00 && low&0x0f0f == 0x0f00: // MUL
		return decodeMUL(opcode, low), nil
	case opcode&0xfff0 == 0xfbb0 && low&0x0f0f == 0x0f0f: // UDIV
		return decodeDIV(opcode, low, false), nil
	case opcode&0xfff0 == 0xfb90 && low&0x0f0f == 0x0f0f: // SDIV
		return decodeDIV(opcode, low, true), nil
	case opcode&0xfff0 == 0xf8d0: // LDR.W (immediate, 12-bit positive offset)
		return decodeLdrStrImm12(opcode, low, true), nil
	case opcode&0xfff0 == 0xf8c0: // STR.W (immediate, 12-bit positive offset)
		return decodeLdrStrImm12(opcode, low, false), nil
	default:
		return ir.Instruction{}, errs.Errorf(errs.InvalidInstruction, errs.MsgInvalidInstruction, opcode, 0)
	}
}

func regName4(n uint16) string {
	switch n {
	case 13:
		return "SP"
	case 14:
		return "LR"
	case 15:
		return "PC"
	default:
		return "R" + itoa4(n)
	}
}

func itoa4(n uint16) string {
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

// decodeMovWT builds MOVW/MOVT Rd, #imm16 from the two-halfword T3
// encoding's scattered immediate field (i:imm4:imm3:imm8).
func decodeMovWT(opcode, low uint16, isTop bool) ir.Instruction {
	rd := ir.Reg(regName4((low >> 8) & 0xf))
	i := uint32((opcode >> 10) & 1)
	imm4 := uint32(opcode & 0xf)
	imm3 := uint32((low >> 12) & 0x7)
	imm8 := uint32(low & 0xff)
	imm16 := (i << 11) | (imm4 << 12) | (imm3 << 8) | imm8

	if !isTop {
		return ir.New(32, "movw", ir.Cycles(1), ir.Move(rd, ir.Imm(uint64(imm16), 32)))
	}
	// MOVT loads into the top halfword, preserving the bottom.
	shifted := ir.Local("movtShifted")
	merged := ir.Local("movtMerged")
	return ir.New(32, "movt", ir.Cycles(1),
		ir.Binary(ir.BinShl, shifted, ir.Imm(uint64(imm16), 32), ir.Imm(16, 32), false),
		ir.Binary(ir.BinAnd, merged, rd, ir.Imm(0x0000_ffff, 32), false),
		ir.Binary(ir.BinOr, rd, merged, shifted, false),
	)
}

// decodeBW builds the unconditional 32-bit branch (T4 encoding), folding
// the J1/J2 exchange bits into the sign-extended 25-bit offset exactly as
// the Thumb-2 Supplement's pseudocode does.
func decodeBW(opcode, low uint16) ir.Instruction {
	s := uint32((opcode >> 10) & 1)
	imm10 := uint32(opcode & 0x3ff)
	j1 := uint32((low >> 13) & 1)
	j2 := uint32((low >> 11) & 1)
	imm11 := uint32(low & 0x7ff)

	i1 := uint32(1)
	if (j1 ^ s) == 0 {
		i1 = 0
	}
	i2 := uint32(1)
	if (j2 ^ s) == 0 {
		i2 = 0
	}

	raw := (s << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)
	offset := int32(raw)
	if s != 0 {
		offset |= ^int32(0x01ff_ffff) // sign-extend from bit 24
	}

	target := ir.Local("bwTarget")
	compute := ir.Binary(ir.BinAdd, target, ir.Reg("PC"), ir.Imm(uint64(uint32(4+offset)), 32), false)
	return ir.New(32, "b.w", ir.Cycles(4), compute, ir.Jump(target))
}

func decodeMUL(opcode, low uint16) ir.Instruction {
	rn := ir.Reg(regName4(opcode & 0xf))
	rd := ir.Reg(regName4((low >> 12) & 0xf))
	rm := ir.Reg(regName4((low >> 4) & 0xf))
	return ir.New(32, "mul.w", ir.Cycles(1), ir.Binary(ir.BinMul, rd, rn, rm, false))
}

func decodeDIV(opcode, low uint16, signed bool) ir.Instruction {
	rn := ir.Reg(regName4(opcode & 0xf))
	rd := ir.Reg(regName4((low >> 12) & 0xf))
	rm := ir.Reg(regName4((low >> 4) & 0xf))
	op := ir.BinUDiv
	mnemonic := "udiv"
	if signed {
		op = ir.BinSDiv
		mnemonic = "sdiv"
	}
	return ir.New(32, mnemonic, ir.Cycles(4), ir.Binary(op, rd, rn, rm, false))
}

func decodeLdrStrImm12(opcode, low uint16, load bool) ir.Instruction {
	rn := ir.Reg(regName4(opcode & 0xf))
	rt := ir.Reg(regName4((low >> 12) & 0xf))
	imm12 := uint64(low & 0x0fff)

	addr := ir.Local("memAddrW")
	compute := ir.Binary(ir.BinAdd, addr, rn, ir.Imm(imm12, 32), false)

	if load {
		loaded := ir.Local("memLoadedW")
		return ir.New(32, "ldr.w", ir.Cycles(2), compute, ir.Load(loaded, ir.Mem(addr, 32)), ir.Move(rt, loaded))
	}
	return ir.New(32, "str.w", ir.Cycles(2), compute, ir.Store(ir.Mem(addr, 32), rt))
}
