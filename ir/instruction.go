package ir

// CycleCount describes how many cycles an Instruction costs. Most
// instructions cost a fixed value (Fn is nil); branches, whose cost
// depends on whether they are taken, supply Fn instead. Grounded on CycleCount2's Value/Function variants in
// original_source/symex_take_2/src/executor/instruction.rs; Go has no sum
// type, so this is the usual "optional function overrides a default value"
// shape the teacher uses for decodeFunction-adjacent tables in arm.go.
type CycleCount struct {
	Value uint64
	Fn    func(branchTaken bool) uint64
}

// Resolve returns the instruction's actual cost given whether a branch
// carried by it was taken.
func (c CycleCount) Resolve(branchTaken bool) uint64 {
	if c.Fn != nil {
		return c.Fn(branchTaken)
	}
	return c.Value
}

// Cycles builds a fixed CycleCount.
func Cycles(value uint64) CycleCount { return CycleCount{Value: value} }

// CyclesFunc builds a branch-dependent CycleCount.
func CyclesFunc(fn func(branchTaken bool) uint64) CycleCount { return CycleCount{Fn: fn} }

// Instruction is one decoded machine instruction: its encoded size, the
// sequence of Operations it lowers to, its cycle cost, and whether it ever
// touches memory (recorded by New; the executor does not read it). Grounded on Instruction2 in
// original_source/symex_take_2/src/executor/instruction.rs, and on the
// teacher's decodeFunction/disassembly pairing in
// hardware/memory/cartridge/arm/arm.go for the "decode produces a value
// describing effects plus metadata" shape.
type Instruction struct {
	SizeBits      uint32 // 16 or 32
	Operations    []Operation
	Cycles        CycleCount
	TouchesMemory bool

	// Mnemonic is a human-readable disassembly string for diagnostics;
	// neither the executor nor the vm driver reads it.
	Mnemonic string
}

// New builds an Instruction, deriving TouchesMemory by scanning ops for any
// OpLoad/OpStore (including inside OpConditionalExecute bodies) so decoders
// do not need to track it by hand.
func New(sizeBits uint32, mnemonic string, cycles CycleCount, ops ...Operation) Instruction {
	return Instruction{
		SizeBits:      sizeBits,
		Operations:    ops,
		Cycles:        cycles,
		TouchesMemory: touchesMemory(ops),
		Mnemonic:      mnemonic,
	}
}

func touchesMemory(ops []Operation) bool {
	for _, op := range ops {
		switch op.Kind {
		case OpLoad, OpStore:
			return true
		case OpConditionalExecute:
			if touchesMemory(op.Body) {
				return true
			}
		}
	}
	return false
}
