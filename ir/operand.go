// Package ir is the generic, architecture-independent instruction model of
// spec.md §3 ("Operation", "Instruction"): a closed sum of side-effect
// operations over operands, annotated with a cycle-count descriptor. Every
// decoder (arch/armv6m, arch/armv7em) translates machine bytes into values
// of these types; the executor package is the only thing that interprets
// them.
//
// Grounded directly on
// original_source/symex_take_2/src/executor/instruction.rs
// (Instruction2/CycleCount2) for the Instruction/CycleCount shape, and on
// general_assembly/operation.rs's operand kinds (register name, flag name,
// immediate data-word, memory reference, local SSA name) referenced by
// spec.md §3 ("Operation").
package ir

// OperandKind discriminates the operand variants named in spec.md §3:
// register name, flag name, immediate data-word, memory reference, local
// SSA name.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandFlag
	OperandImmediate
	OperandMemory
	OperandLocal
)

// Operand is one operation's operand. Exactly one of the Kind-dependent
// fields is meaningful for a given Kind:
//
//   - OperandRegister/OperandFlag/OperandLocal: Name
//   - OperandImmediate: Value, Width
//   - OperandMemory: Addr (the sub-operand holding the address), Width (the
//     access width in bits)
type Operand struct {
	Kind  OperandKind
	Name  string
	Value uint64
	Width uint32
	Addr  *Operand
}

// Reg builds a register operand. Canonical names are "R0".."R12", "SP",
// "LR", "PC", plus the hook-visible aliases "PC+" and "SP&" (spec.md §4.1).
func Reg(name string) Operand { return Operand{Kind: OperandRegister, Name: name} }

// Flag builds a condition-flag operand ("N", "Z", "C", or "V").
func Flag(name string) Operand { return Operand{Kind: OperandFlag, Name: name} }

// Imm builds a constant data-word operand of the given width.
func Imm(value uint64, width uint32) Operand {
	return Operand{Kind: OperandImmediate, Value: value, Width: width}
}

// Local builds a local SSA-name operand, used to carry an intermediate
// value between operations within the same instruction (e.g. the result of
// a shift-by-register feeding both the destination write and the flag
// update).
func Local(name string) Operand { return Operand{Kind: OperandLocal, Name: name} }

// Mem builds a memory-reference operand: read/write `width` bits at the
// address described by addr.
func Mem(addr Operand, width uint32) Operand {
	return Operand{Kind: OperandMemory, Addr: &addr, Width: width}
}
