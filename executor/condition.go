package executor

import (
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/smt"
)

// evalCondition builds the width-1 expression testing cond against r's
// current flags, per the ARM condition-code table referenced in
// ir.Condition's doc comments.
func evalCondition(r hooks.Reader, cond ir.Condition) smt.Expression {
	n := r.ReadFlag("N")
	z := r.ReadFlag("Z")
	c := r.ReadFlag("C")
	v := r.ReadFlag("V")

	switch cond {
	case ir.EQ:
		return z
	case ir.NE:
		return z.Not()
	case ir.CS:
		return c
	case ir.CC:
		return c.Not()
	case ir.MI:
		return n
	case ir.PL:
		return n.Not()
	case ir.VS:
		return v
	case ir.VC:
		return v.Not()
	case ir.HI:
		return c.And(z.Not())
	case ir.LS:
		return c.Not().Or(z)
	case ir.GE:
		return n.Eq(v)
	case ir.LT:
		return n.Eq(v).Not()
	case ir.GT:
		return z.Not().And(n.Eq(v))
	case ir.LE:
		return z.Or(n.Eq(v).Not())
	default: // ir.AL
		return r.Solver().FromUint64(1, 1)
	}
}
