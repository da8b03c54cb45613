package executor

import "github.com/ivajon/symex/smt"

// addWithCarry computes a + b + carryIn at width+1 precision and extracts
// the width-bit sum, the carry-out bit, and the signed-overflow bit — the
// same formula the ARM architecture itself defines addition in terms of
// (ADD/ADC, and SUB/SBC/CMP by complementing the second operand first).
// Grounded on the flag-update logic the teacher's thumb.go inlines per
// opcode (e.g. ADDS's explicit carry/overflow computation), generalised
// here into one routine shared by every add/sub-family Operation.
func addWithCarry(a, b, carryIn smt.Expression) (sum, carryOut, overflow smt.Expression) {
	width := a.Width()

	aExt := a.ZeroExt(width + 1)
	bExt := b.ZeroExt(width + 1)
	cExt := carryIn.ZeroExt(width + 1)
	sumExt := aExt.Add(bExt).Add(cExt)

	sum = sumExt.Slice(width-1, 0)
	carryOut = sumExt.Slice(width, width)

	aSign := a.Slice(width-1, width-1)
	bSign := b.Slice(width-1, width-1)
	rSign := sum.Slice(width-1, width-1)

	sameOperandSigns := aSign.Eq(bSign)
	differentResultSign := rSign.Eq(aSign).Not()
	overflow = sameOperandSigns.And(differentResultSign)

	return sum, carryOut, overflow
}

// isZero returns a width-1 expression that is 1 iff v is all zero bits.
func isZero(solver smt.Solver, v smt.Expression) smt.Expression {
	return v.Eq(solver.FromUint64(0, v.Width()))
}

// signBit returns v's top bit as a width-1 expression.
func signBit(v smt.Expression) smt.Expression {
	return v.Slice(v.Width()-1, v.Width()-1)
}
