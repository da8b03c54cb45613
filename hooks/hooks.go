// Package hooks is the interception layer of spec.md §4.4: regex- or
// address-indexed tables of PC hooks, register read/write hooks, and
// single-address/range memory hooks, plus the Reader/Writer split views
// that let a hook body touch state without the executor handing it a
// cyclic *state.State reference.
//
// Grounded directly on original_source/symex_take_2/src/executor/hooks.rs
// (HookContainer, PCHook2, Reader/Writer, ResultOrHook,
// add_pc_hook_regex, and the default hook table), and on the teacher's
// split CartridgeHook/SharedMemory interfaces in
// hardware/memory/cartridge/arm/interface.go for the "hand the callback two
// narrow interfaces instead of the whole mutable state" idiom.
package hooks

import (
	"regexp"

	"github.com/ivajon/symex/smt"
)

// PCHookKind discriminates the PC-hook variants of spec.md §4.4.
type PCHookKind int

const (
	// Continue means normal decode-and-execute proceeds; installing a
	// Continue hook is only useful to observe a PC without altering flow.
	Continue PCHookKind = iota
	// EndSuccess terminates the path as a successful completion.
	EndSuccess
	// EndFailure terminates the path as a failure, carrying Reason.
	EndFailure
	// Suppress silently drops the path (spec.md §5, "suppress-is-silently-
	// dropped default policy").
	Suppress
	// Intrinsic runs Fn instead of decoding the instruction at this PC.
	Intrinsic
)

// PCHook is one entry of the pc_hook table.
type PCHook struct {
	Kind   PCHookKind
	Reason string             // meaningful only for EndFailure
	Fn     func(Writer) error // meaningful only for Intrinsic
}

// RegisterReadFn computes the symbolic value observed when a named register
// is read through the hook layer (e.g. the "PC+" alias).
type RegisterReadFn func(Reader) smt.Expression

// RegisterWriteFn intercepts a write to a named register; it returns an
// error only if the write must be rejected outright.
type RegisterWriteFn func(w Writer, value smt.Expression) error

// MemoryReadFn intercepts a memory read at an address (single-address
// hooks) or within a range (range hooks).
type MemoryReadFn func(r Reader, addr smt.Expression, bits uint32) (smt.Expression, bool)

// MemoryWriteFn intercepts a memory write; returning false lets the normal
// write still proceed (used by range hooks that only want to observe).
type MemoryWriteFn func(w Writer, addr smt.Expression, value smt.Expression) bool

type rangeReadHook struct {
	low, high uint64
	fn        MemoryReadFn
}

type rangeWriteHook struct {
	low, high uint64
	fn        MemoryWriteFn
}

// Container holds every hook table for one architecture instance. It is
// built once by Arch.AddHooks and then shared, read-only after
// construction, by every path (paths differ in State, not in Container).
type Container struct {
	pc             map[uint64]PCHook
	registerRead   map[string]RegisterReadFn
	registerWrite  map[string]RegisterWriteFn
	memReadSingle  map[uint64]MemoryReadFn
	memWriteSingle map[uint64]MemoryWriteFn
	memReadRange   []rangeReadHook
	memWriteRange  []rangeWriteHook
}

// New returns an empty Container.
func New() *Container {
	return &Container{
		pc:             make(map[uint64]PCHook),
		registerRead:   make(map[string]RegisterReadFn),
		registerWrite:  make(map[string]RegisterWriteFn),
		memReadSingle:  make(map[uint64]MemoryReadFn),
		memWriteSingle: make(map[uint64]MemoryWriteFn),
	}
}

// AddPCHook installs a PC hook at a concrete address.
func (c *Container) AddPCHook(addr uint64, hook PCHook) {
	c.pc[addr] = hook
}

// PCHookAt returns the hook installed at addr, if any.
func (c *Container) PCHookAt(addr uint64) (PCHook, bool) {
	h, ok := c.pc[addr]
	return h, ok
}

// Subprogram is the minimal view of a named PC range that
// AddPCHookRegex needs; project.Subprogram satisfies it.
type Subprogram interface {
	SubprogramName() string
	SubprogramLow() uint64
}

// AddPCHookRegex resolves pattern against every subprogram's name and
// installs hook at each match's start address (spec.md §4.4
// "add_pc_hook_regex").
func AddPCHookRegex(c *Container, subprograms []Subprogram, pattern string, hook PCHook) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	for _, s := range subprograms {
		if re.MatchString(s.SubprogramName()) {
			c.AddPCHook(s.SubprogramLow(), hook)
		}
	}
	return nil
}

// AddRegisterReadHook installs a read interceptor for a named register.
func (c *Container) AddRegisterReadHook(name string, fn RegisterReadFn) {
	c.registerRead[name] = fn
}

// AddRegisterWriteHook installs a write interceptor for a named register.
func (c *Container) AddRegisterWriteHook(name string, fn RegisterWriteFn) {
	c.registerWrite[name] = fn
}

// RegisterReadHook returns the read interceptor for name, if any.
func (c *Container) RegisterReadHook(name string) (RegisterReadFn, bool) {
	fn, ok := c.registerRead[name]
	return fn, ok
}

// RegisterWriteHook returns the write interceptor for name, if any.
func (c *Container) RegisterWriteHook(name string) (RegisterWriteFn, bool) {
	fn, ok := c.registerWrite[name]
	return fn, ok
}

// AddMemoryReadHook installs a single-address memory read interceptor.
func (c *Container) AddMemoryReadHook(addr uint64, fn MemoryReadFn) {
	c.memReadSingle[addr] = fn
}

// AddMemoryWriteHook installs a single-address memory write interceptor.
func (c *Container) AddMemoryWriteHook(addr uint64, fn MemoryWriteFn) {
	c.memWriteSingle[addr] = fn
}

// AddRangeMemoryReadHook installs a memory read interceptor over [low, high).
func (c *Container) AddRangeMemoryReadHook(low, high uint64, fn MemoryReadFn) {
	c.memReadRange = append(c.memReadRange, rangeReadHook{low: low, high: high, fn: fn})
}

// AddRangeMemoryWriteHook installs a memory write interceptor over [low, high).
func (c *Container) AddRangeMemoryWriteHook(low, high uint64, fn MemoryWriteFn) {
	c.memWriteRange = append(c.memWriteRange, rangeWriteHook{low: low, high: high, fn: fn})
}

// DispatchMemoryRead runs range hooks (in registration order) then the
// single-address hook for addr, per spec.md §4.4's stacking rule ("range
// hooks run first, then the single-address hook"). fallback is invoked, and
// its result returned, if no hook claims the read.
func (c *Container) DispatchMemoryRead(r Reader, addr uint64, addrExpr smt.Expression, bits uint32, fallback func() smt.Expression) smt.Expression {
	var result smt.Expression
	claimed := false
	for _, rh := range c.memReadRange {
		if addr >= rh.low && addr < rh.high {
			if v, ok := rh.fn(r, addrExpr, bits); ok {
				result = v
				claimed = true
			}
		}
	}
	if fn, ok := c.memReadSingle[addr]; ok {
		if v, ok := fn(r, addrExpr, bits); ok {
			result = v
			claimed = true
		}
	}
	if claimed {
		return result
	}
	return fallback()
}

// DispatchMemoryWrite runs range hooks then the single-address hook for
// addr; if none claims the write, fallback performs the normal write.
func (c *Container) DispatchMemoryWrite(w Writer, addr uint64, addrExpr, value smt.Expression, fallback func()) {
	claimed := false
	for _, rh := range c.memWriteRange {
		if addr >= rh.low && addr < rh.high {
			if rh.fn(w, addrExpr, value) {
				claimed = true
			}
		}
	}
	if fn, ok := c.memWriteSingle[addr]; ok {
		if fn(w, addrExpr, value) {
			claimed = true
		}
	}
	if !claimed {
		fallback()
	}
}
