// Package concretetest is a minimal implementation of the
// smt.Solver/smt.Expression/smt.Array contract, built solely so that
// _test.go files elsewhere in this module can exercise the kernel without
// depending on a real SMT backend (which is, per spec.md §1, explicitly out
// of scope for this repository — no SMT binding exists anywhere in the
// retrieved example pack to ground a production one on, see DESIGN.md).
//
// Every Expr carries a concrete "model" value alongside an optional symbol
// tag. An untagged Expr (built by FromUint64, or derived entirely from
// untagged operands) is a genuine constant: GetConstant always succeeds.
// A tagged Expr (built by Solver.Unconstrained, or derived from one — the
// tag propagates through every operation) reports GetConstant as unknown,
// exactly like a real unconstrained symbol would before the solver narrows
// it down; Sat treats a bare tagged expression (or its negation) as always
// satisfiable on its own, so a genuinely symbolic guard exercises the fork
// discipline of spec.md §4.5 the same way a real solver would for an
// under-constrained flag. Solve enumerates perturbations of a tagged
// expression's model value, which is enough to drive spec.md §4.6's
// symbolic-PC-resolution forking in tests.
package concretetest

import (
	"math/bits"

	"github.com/ivajon/symex/smt"
)

// Expr is a bitvector value of a fixed width with a concrete model value,
// optionally tagged as symbolic.
type Expr struct {
	width  uint32
	value  uint64
	symbol string // non-empty iff this expression (or an ancestor) is tagged symbolic
}

func mask(width uint32) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func (e Expr) Width() uint32 { return e.width }

// GetConstant reports the model value and whether e is a genuine
// constant — false if e or anything it was derived from carries a
// symbol tag.
func (e Expr) GetConstant() (uint64, bool) {
	return e.value & mask(e.width), e.symbol == ""
}

func propagatedSymbol(tags ...string) string {
	for _, t := range tags {
		if t != "" {
			return t
		}
	}
	return ""
}

func (e Expr) bin(other smt.Expression, f func(a, b uint64) uint64) Expr {
	o := other.(Expr)
	return Expr{
		width:  e.width,
		value:  f(e.value, o.value) & mask(e.width),
		symbol: propagatedSymbol(e.symbol, o.symbol),
	}
}

func (e Expr) And(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a & b })
}
func (e Expr) Or(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a | b })
}
func (e Expr) Xor(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a ^ b })
}
func (e Expr) Not() smt.Expression {
	return Expr{width: e.width, value: ^e.value & mask(e.width), symbol: e.symbol}
}

func (e Expr) Add(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a + b })
}
func (e Expr) Sub(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a - b })
}
func (e Expr) Mul(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 { return a * b })
}
func (e Expr) UDiv(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 {
		if b == 0 {
			return 0
		}
		return a / b
	})
}
func (e Expr) SDiv(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 {
		sa, sb := e.toSigned(a), e.toSigned(b)
		if sb == 0 {
			return 0
		}
		return uint64(sa/sb) & mask(e.width)
	})
}
func (e Expr) URem(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 {
		if b == 0 {
			return a
		}
		return a % b
	})
}
func (e Expr) SRem(o smt.Expression) smt.Expression {
	return e.bin(o, func(a, b uint64) uint64 {
		sa, sb := e.toSigned(a), e.toSigned(b)
		if sb == 0 {
			return uint64(sa) & mask(e.width)
		}
		return uint64(sa%sb) & mask(e.width)
	})
}

func (e Expr) toSigned(v uint64) int64 {
	if e.width == 0 || e.width >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << (e.width - 1)
	if v&signBit != 0 {
		return int64(v) - int64(uint64(1)<<e.width)
	}
	return int64(v)
}

func (e Expr) Shl(shift smt.Expression) smt.Expression {
	s, _ := shift.GetConstant()
	return Expr{width: e.width, value: (e.value << s) & mask(e.width), symbol: e.symbol}
}
func (e Expr) LShr(shift smt.Expression) smt.Expression {
	s, _ := shift.GetConstant()
	return Expr{width: e.width, value: (e.value & mask(e.width)) >> s, symbol: e.symbol}
}
func (e Expr) AShr(shift smt.Expression) smt.Expression {
	s, _ := shift.GetConstant()
	sv := e.toSigned(e.value)
	return Expr{width: e.width, value: uint64(sv>>s) & mask(e.width), symbol: e.symbol}
}
func (e Expr) RotateRight(shift smt.Expression) smt.Expression {
	s, _ := shift.GetConstant()
	n := uint(s) % uint(e.width)
	v := e.value & mask(e.width)
	rotated := bits.RotateLeft64(v<<(64-e.width), -int(n))
	return Expr{width: e.width, value: (rotated >> (64 - e.width)) & mask(e.width), symbol: e.symbol}
}

func (e Expr) Slice(hi, lo uint32) smt.Expression {
	width := hi - lo + 1
	return Expr{width: width, value: (e.value >> lo) & mask(width), symbol: e.symbol}
}

func (e Expr) ZeroExt(width uint32) smt.Expression {
	return Expr{width: width, value: e.value & mask(e.width), symbol: e.symbol}
}

func (e Expr) SignExt(width uint32) smt.Expression {
	sv := e.toSigned(e.value)
	return Expr{width: width, value: uint64(sv) & mask(width), symbol: e.symbol}
}

func (e Expr) Concat(other smt.Expression) smt.Expression {
	o := other.(Expr)
	return Expr{
		width:  e.width + o.width,
		value:  ((e.value & mask(e.width)) << o.width) | (o.value & mask(o.width)),
		symbol: propagatedSymbol(e.symbol, o.symbol),
	}
}

func (e Expr) Eq(other smt.Expression) smt.Expression {
	o := other.(Expr)
	var v uint64
	if (e.value & mask(e.width)) == (o.value & mask(o.width)) {
		v = 1
	}
	return Expr{width: 1, value: v, symbol: propagatedSymbol(e.symbol, o.symbol)}
}

// Solver is the concrete smt.Solver used in tests.
type Solver struct {
	counter uint64
}

// New returns a fresh concrete Solver.
func New() *Solver { return &Solver{} }

func (s *Solver) FromUint64(value uint64, width uint32) smt.Expression {
	return Expr{width: width, value: value & mask(width)}
}

func (s *Solver) Unconstrained(name string, width uint32) smt.Expression {
	s.counter++
	return Expr{width: width, value: s.counter, symbol: name}
}

// Sat reports whether constraints could hold together. Every untagged
// (genuinely constant) constraint must evaluate non-zero; a tagged
// (symbolic) constraint is treated as satisfiable on its own, mirroring an
// unconstrained bit that can still be assigned either polarity — this is
// what lets a guard built directly from an unconstrained flag, and its
// negation, both report SAT in separate calls, exercising spec.md §4.5's
// fork discipline.
func (s *Solver) Sat(constraints []smt.Expression) (bool, error) {
	for _, expr := range constraints {
		e := expr.(Expr)
		if e.symbol != "" {
			continue
		}
		if e.value&mask(e.width) == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Solve returns the single concrete value of expr under constraints if expr
// is a plain constant, or up to limit distinct perturbations of its tracked
// model value if expr is tagged symbolic — modelling true symbolic
// enumeration well enough for tests that only need "is there more than one
// model".
func (s *Solver) Solve(constraints []smt.Expression, expr smt.Expression, limit int) (smt.Solutions, error) {
	ok, err := s.Sat(constraints)
	if err != nil {
		return smt.Solutions{}, err
	}
	if !ok {
		return smt.Solutions{Exact: true}, nil
	}

	e := expr.(Expr)
	if e.symbol == "" || limit <= 1 {
		v, _ := e.GetConstant()
		return smt.Solutions{Values: []uint64{v}, Exact: true}, nil
	}

	n := limit
	if n > 4 {
		n = 4
	}
	values := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, (e.value+uint64(i))&mask(e.width))
	}
	return smt.Solutions{Values: values, Exact: true}, nil
}

// Array is the concrete smt.Array used in tests: a plain map from concrete
// address to byte value, defaulting unset addresses to zero.
type Array struct {
	cells map[uint64]uint64
}

// NewArray returns an empty concrete Array.
func NewArray() Array {
	return Array{cells: make(map[uint64]uint64)}
}

func (a Array) Get(addr smt.Expression) smt.Expression {
	v, _ := addr.GetConstant()
	return Expr{width: 8, value: a.cells[v]}
}

func (a Array) Set(addr smt.Expression, value smt.Expression) smt.Array {
	v, _ := addr.GetConstant()
	val, _ := value.GetConstant()
	clone := a.Clone().(Array)
	clone.cells[v] = val & 0xff
	return clone
}

func (a Array) Clone() smt.Array {
	clone := make(map[uint64]uint64, len(a.cells))
	for k, v := range a.cells {
		clone[k] = v
	}
	return Array{cells: clone}
}
