package armv6m

import "github.com/ivajon/symex/ir"

// --- format 6: PC-relative load ---

func decodePCRelativeLoad(opcode uint16) ir.Instruction {
	rd := ir.Reg(regName(uint32(opcode>>8) & 0x7))
	word8 := uint64(opcode&0xff) * 4

	// LDR Rd, [PC, #imm] reads relative to the word-aligned address four
	// bytes past the instruction (ARM architecture reference, "PC-relative
	// load"): (PC + 4) & ~3, then + imm.
	aligned := ir.Local("ldrPcAligned")
	addr := ir.Local("ldrPcAddr")
	return ir.New(16, "ldr", ir.Cycles(2),
		ir.Binary(ir.BinAdd, aligned, ir.Reg("PC"), ir.Imm(4, 32), false),
		ir.Binary(ir.BinAnd, aligned, aligned, ir.Imm(0xffff_fffc, 32), false),
		ir.Binary(ir.BinAdd, addr, aligned, ir.Imm(word8, 32), false),
		ir.Load(rd, ir.Mem(addr, 32)),
	)
}

// --- format 7: load/store with register offset ---

func decodeLoadStoreRegOffset(opcode uint16) ir.Instruction {
	load := opcode&0x0800 != 0
	byteAccess := opcode&0x0400 != 0
	ro := ir.Reg(regName(uint32(opcode>>6) & 0x7))
	rb := ir.Reg(regName(uint32(opcode>>3) & 0x7))
	rd := ir.Reg(regName(uint32(opcode) & 0x7))

	addr := ir.Local("memAddr")
	computeAddr := ir.Binary(ir.BinAdd, addr, rb, ro, false)

	width := uint32(32)
	if byteAccess {
		width = 8
	}

	if load {
		mnemonic := "ldr"
		if byteAccess {
			mnemonic = "ldrb"
		}
		loaded := ir.Local("memLoaded")
		ops := []ir.Operation{computeAddr, ir.Load(loaded, ir.Mem(addr, width))}
		if byteAccess {
			ops = append(ops, ir.Unary(ir.UnaryZeroExtend, rd, loaded, 32, false))
		} else {
			ops = append(ops, ir.Move(rd, loaded))
		}
		return ir.New(16, mnemonic, ir.Cycles(2), ops...)
	}

	mnemonic := "str"
	narrowed := rd
	ops := []ir.Operation{computeAddr}
	if byteAccess {
		mnemonic = "strb"
		narrowed = ir.Local("memNarrowed")
		ops = append(ops, ir.Unary(ir.UnaryTruncate, narrowed, rd, 8, false))
	}
	ops = append(ops, ir.Store(ir.Mem(addr, width), narrowed))
	return ir.New(16, mnemonic, ir.Cycles(2), ops...)
}

// --- format 8: load/store sign-extended byte/halfword ---

func decodeLoadStoreSignExtended(opcode uint16) ir.Instruction {
	h := opcode&0x0800 != 0
	s := opcode&0x0400 != 0
	ro := ir.Reg(regName(uint32(opcode>>6) & 0x7))
	rb := ir.Reg(regName(uint32(opcode>>3) & 0x7))
	rd := ir.Reg(regName(uint32(opcode) & 0x7))

	addr := ir.Local("memAddr")
	computeAddr := ir.Binary(ir.BinAdd, addr, rb, ro, false)

	switch {
	case !s && !h: // STRH
		narrowed := ir.Local("memNarrowed")
		return ir.New(16, "strh", ir.Cycles(2),
			computeAddr,
			ir.Unary(ir.UnaryTruncate, narrowed, rd, 16, false),
			ir.Store(ir.Mem(addr, 16), narrowed),
		)
	case !s && h: // LDRH
		loaded := ir.Local("memLoaded")
		return ir.New(16, "ldrh", ir.Cycles(2),
			computeAddr,
			ir.Load(loaded, ir.Mem(addr, 16)),
			ir.Unary(ir.UnaryZeroExtend, rd, loaded, 32, false),
		)
	case s && !h: // LDSB
		loaded := ir.Local("memLoaded")
		return ir.New(16, "ldrsb", ir.Cycles(2),
			computeAddr,
			ir.Load(loaded, ir.Mem(addr, 8)),
			ir.Unary(ir.UnarySignExtend, rd, loaded, 32, false),
		)
	default: // LDSH
		loaded := ir.Local("memLoaded")
		return ir.New(16, "ldrsh", ir.Cycles(2),
			computeAddr,
			ir.Load(loaded, ir.Mem(addr, 16)),
			ir.Unary(ir.UnarySignExtend, rd, loaded, 32, false),
		)
	}
}

// --- format 9: load/store with immediate offset ---

func decodeLoadStoreImmOffset(opcode uint16) ir.Instruction {
	byteAccess := opcode&0x1000 != 0
	load := opcode&0x0800 != 0
	offset5 := uint32((opcode >> 6) & 0x1f)
	rb := ir.Reg(regName(uint32(opcode>>3) & 0x7))
	rd := ir.Reg(regName(uint32(opcode) & 0x7))

	width := uint32(32)
	shift := uint32(2)
	if byteAccess {
		width = 8
		shift = 0
	}
	imm := uint64(offset5 << shift)

	addr := ir.Local("memAddr")
	computeAddr := ir.Binary(ir.BinAdd, addr, rb, ir.Imm(imm, 32), false)

	if load {
		mnemonic := "ldr"
		loaded := ir.Local("memLoaded")
		ops := []ir.Operation{computeAddr, ir.Load(loaded, ir.Mem(addr, width))}
		if byteAccess {
			mnemonic = "ldrb"
			ops = append(ops, ir.Unary(ir.UnaryZeroExtend, rd, loaded, 32, false))
		} else {
			ops = append(ops, ir.Move(rd, loaded))
		}
		return ir.New(16, mnemonic, ir.Cycles(2), ops...)
	}

	mnemonic := "str"
	narrowed := rd
	ops := []ir.Operation{computeAddr}
	if byteAccess {
		mnemonic = "strb"
		narrowed = ir.Local("memNarrowed")
		ops = append(ops, ir.Unary(ir.UnaryTruncate, narrowed, rd, 8, false))
	}
	ops = append(ops, ir.Store(ir.Mem(addr, width), narrowed))
	return ir.New(16, mnemonic, ir.Cycles(2), ops...)
}

// --- format 10: load/store halfword (immediate offset) ---

func decodeLoadStoreHalfword(opcode uint16) ir.Instruction {
	load := opcode&0x0800 != 0
	offset5 := uint32((opcode >> 6) & 0x1f)
	rb := ir.Reg(regName(uint32(opcode>>3) & 0x7))
	rd := ir.Reg(regName(uint32(opcode) & 0x7))
	imm := uint64(offset5 * 2)

	addr := ir.Local("memAddr")
	computeAddr := ir.Binary(ir.BinAdd, addr, rb, ir.Imm(imm, 32), false)

	if load {
		loaded := ir.Local("memLoaded")
		return ir.New(16, "ldrh", ir.Cycles(2),
			computeAddr,
			ir.Load(loaded, ir.Mem(addr, 16)),
			ir.Unary(ir.UnaryZeroExtend, rd, loaded, 32, false),
		)
	}
	narrowed := ir.Local("memNarrowed")
	return ir.New(16, "strh", ir.Cycles(2),
		computeAddr,
		ir.Unary(ir.UnaryTruncate, narrowed, rd, 16, false),
		ir.Store(ir.Mem(addr, 16), narrowed),
	)
}

// --- format 11: SP-relative load/store ---

func decodeSPRelativeLoadStore(opcode uint16) ir.Instruction {
	load := opcode&0x0800 != 0
	rd := ir.Reg(regName(uint32(opcode>>8) & 0x7))
	word8 := uint64(opcode&0xff) * 4

	addr := ir.Local("memAddr")
	computeAddr := ir.Binary(ir.BinAdd, addr, ir.Reg("SP"), ir.Imm(word8, 32), false)

	if load {
		loaded := ir.Local("memLoaded")
		return ir.New(16, "ldr", ir.Cycles(2),
			computeAddr,
			ir.Load(loaded, ir.Mem(addr, 32)),
			ir.Move(rd, loaded),
		)
	}
	return ir.New(16, "str", ir.Cycles(2), computeAddr, ir.Store(ir.Mem(addr, 32), rd))
}

// --- format 12: load address ---

func decodeLoadAddress(opcode uint16) ir.Instruction {
	fromSP := opcode&0x0800 != 0
	rd := ir.Reg(regName(uint32(opcode>>8) & 0x7))
	word8 := uint64(opcode&0xff) * 4

	if fromSP {
		return ir.New(16, "add", ir.Cycles(1), ir.Binary(ir.BinAdd, rd, ir.Reg("SP"), ir.Imm(word8, 32), false))
	}

	aligned := ir.Local("adrAligned")
	return ir.New(16, "adr", ir.Cycles(1),
		ir.Binary(ir.BinAdd, aligned, ir.Reg("PC"), ir.Imm(4, 32), false),
		ir.Binary(ir.BinAnd, aligned, aligned, ir.Imm(0xffff_fffc, 32), false),
		ir.Binary(ir.BinAdd, rd, aligned, ir.Imm(word8, 32), false),
	)
}

// --- format 13: add offset to stack pointer ---

func decodeAddOffsetToSP(opcode uint16) ir.Instruction {
	negative := opcode&0x0080 != 0
	sword7 := uint64(opcode&0x7f) * 4

	op := ir.BinAdd
	mnemonic := "add"
	if negative {
		op = ir.BinSub
		mnemonic = "sub"
	}
	return ir.New(16, mnemonic, ir.Cycles(1), ir.Binary(op, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(sword7, 32), false))
}

// --- format 14: push/pop register list ---

func decodePushPop(opcode uint16) ir.Instruction {
	isPop := opcode&0x0800 != 0
	storeLoadExtra := opcode&0x0100 != 0
	rlist := opcode & 0xff

	var regs []string
	for i := 0; i < 8; i++ {
		if rlist&(1<<uint(i)) != 0 {
			regs = append(regs, regName(uint32(i)))
		}
	}

	if isPop {
		var ops []ir.Operation
		for _, r := range regs {
			loaded := ir.Local("pop_" + r)
			ops = append(ops,
				ir.Load(loaded, ir.Mem(ir.Reg("SP"), 32)),
				ir.Move(ir.Reg(r), loaded),
				ir.Binary(ir.BinAdd, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(4, 32), false),
			)
		}
		if storeLoadExtra {
			loaded := ir.Local("pop_PC")
			ops = append(ops,
				ir.Load(loaded, ir.Mem(ir.Reg("SP"), 32)),
				ir.Binary(ir.BinAdd, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(4, 32), false),
				ir.Jump(loaded),
			)
		}
		return ir.New(16, "pop", ir.Cycles(uint64(len(regs)+2)), ops...)
	}

	if storeLoadExtra {
		regs = append(regs, "LR")
	}
	var ops []ir.Operation
	// PUSH stores the lowest-numbered register at the lowest address, so
	// decrement SP by the full list size up front, then store forward.
	ops = append(ops, ir.Binary(ir.BinSub, ir.Reg("SP"), ir.Reg("SP"), ir.Imm(uint64(len(regs)*4), 32), false))
	for i, r := range regs {
		addr := ir.Local("push_addr")
		ops = append(ops,
			ir.Binary(ir.BinAdd, addr, ir.Reg("SP"), ir.Imm(uint64(i*4), 32), false),
			ir.Store(ir.Mem(addr, 32), ir.Reg(r)),
		)
	}
	return ir.New(16, "push", ir.Cycles(uint64(len(regs)+2)), ops...)
}

// --- format 15: load/store multiple ---

func decodeLoadStoreMultiple(opcode uint16) ir.Instruction {
	load := opcode&0x0800 != 0
	rb := ir.Reg(regName(uint32(opcode>>8) & 0x7))
	rlist := opcode & 0xff

	var regs []string
	for i := 0; i < 8; i++ {
		if rlist&(1<<uint(i)) != 0 {
			regs = append(regs, regName(uint32(i)))
		}
	}

	var ops []ir.Operation
	if load {
		for i, r := range regs {
			addr := ir.Local("ldm_addr")
			loaded := ir.Local("ldm_" + r)
			ops = append(ops,
				ir.Binary(ir.BinAdd, addr, rb, ir.Imm(uint64(i*4), 32), false),
				ir.Load(loaded, ir.Mem(addr, 32)),
				ir.Move(ir.Reg(r), loaded),
			)
		}
	} else {
		for i, r := range regs {
			addr := ir.Local("stm_addr")
			ops = append(ops,
				ir.Binary(ir.BinAdd, addr, rb, ir.Imm(uint64(i*4), 32), false),
				ir.Store(ir.Mem(addr, 32), ir.Reg(r)),
			)
		}
	}
	ops = append(ops, ir.Binary(ir.BinAdd, rb, rb, ir.Imm(uint64(len(regs)*4), 32), false))

	mnemonic := "stmia"
	if load {
		mnemonic = "ldmia"
	}
	return ir.New(16, mnemonic, ir.Cycles(uint64(len(regs)+1)), ops...)
}
