package hooks

import "github.com/ivajon/symex/smt"

// Reader is the narrow, read-only view of a path's state that hook bodies
// receive, instead of a full mutable state reference — this is the split
// that avoids the cyclic "&mut State whose hooks field holds a callback
// that itself wants &mut State" shape of the source, per spec.md §9's
// REDESIGN FLAGS note on cyclic hook callbacks.
type Reader interface {
	ReadRegister(name string) smt.Expression
	ReadFlag(name string) smt.Expression
	ReadMemory(addr smt.Expression, bits uint32) smt.Expression
	PC() uint64
	Solver() smt.Solver
}

// Writer extends Reader with the mutations a hook body is allowed to make:
// register/flag/memory writes and redirecting the PC (used by intrinsics
// that emulate a call-and-return, e.g. symbolic_size<T>).
type Writer interface {
	Reader
	WriteRegister(name string, value smt.Expression) error
	WriteFlag(name string, value smt.Expression)
	WriteMemory(addr smt.Expression, value smt.Expression) error
	SetPC(pc uint64)
	NewUnconstrained(name string, width uint32) smt.Expression
	ResetCycleCount()
	SetCountCycles(enabled bool)
}
