package executor

import (
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/state"
)

// evalOperand resolves an ir.Operand to a value, routing register and
// memory reads through the hook layer first (spec.md §4.4's "read/write
// register through the hook layer").
func evalOperand(s *state.State, hc *hooks.Container, op ir.Operand, loc locals) smt.Expression {
	switch op.Kind {
	case ir.OperandRegister:
		if fn, ok := hc.RegisterReadHook(op.Name); ok {
			return fn(s)
		}
		return s.ReadRegister(op.Name)
	case ir.OperandFlag:
		return s.ReadFlag(op.Name)
	case ir.OperandImmediate:
		return s.Solver().FromUint64(op.Value, op.Width)
	case ir.OperandLocal:
		if v, ok := loc[op.Name]; ok {
			return v
		}
		return s.Solver().FromUint64(0, 32)
	case ir.OperandMemory:
		addr := evalOperand(s, hc, *op.Addr, loc)
		fallback := func() smt.Expression { return s.ReadMemory(addr, op.Width) }
		if c, ok := addr.GetConstant(); ok {
			return hc.DispatchMemoryRead(s, c, addr, op.Width, fallback)
		}
		return fallback()
	}
	return s.Solver().FromUint64(0, 32)
}

// writeOperand writes value to op, routing register and memory writes
// through the hook layer first.
func writeOperand(s *state.State, hc *hooks.Container, op ir.Operand, value smt.Expression, loc locals) {
	switch op.Kind {
	case ir.OperandRegister:
		if fn, ok := hc.RegisterWriteHook(op.Name); ok {
			_ = fn(s, value)
			return
		}
		_ = s.WriteRegister(op.Name, value)
	case ir.OperandFlag:
		s.WriteFlag(op.Name, value)
	case ir.OperandLocal:
		loc[op.Name] = value
	case ir.OperandMemory:
		addr := evalOperand(s, hc, *op.Addr, loc)
		fallback := func() { _ = s.WriteMemory(addr, value) }
		if c, ok := addr.GetConstant(); ok {
			hc.DispatchMemoryWrite(s, c, addr, value, fallback)
		} else {
			fallback()
		}
	}
}

func applyBinOp(op ir.BinOp, a, b smt.Expression) smt.Expression {
	switch op {
	case ir.BinAdd:
		return a.Add(b)
	case ir.BinSub:
		return a.Sub(b)
	case ir.BinRSub:
		return b.Sub(a)
	case ir.BinAnd:
		return a.And(b)
	case ir.BinOr:
		return a.Or(b)
	case ir.BinXor:
		return a.Xor(b)
	case ir.BinBitClear:
		return a.And(b.Not())
	case ir.BinMul:
		return a.Mul(b)
	case ir.BinUDiv:
		return a.UDiv(b)
	case ir.BinSDiv:
		return a.SDiv(b)
	case ir.BinURem:
		return a.URem(b)
	case ir.BinSRem:
		return a.SRem(b)
	case ir.BinShl:
		return a.Shl(b)
	case ir.BinLShr:
		return a.LShr(b)
	case ir.BinAShr:
		return a.AShr(b)
	case ir.BinRor:
		return a.RotateRight(b)
	default:
		return a
	}
}

func applyUnaryOp(op ir.UnaryOp, a smt.Expression, width uint32) smt.Expression {
	switch op {
	case ir.UnaryNot:
		return a.Not()
	case ir.UnaryNeg:
		return a.Xor(a).Sub(a)
	case ir.UnaryZeroExtend:
		return a.ZeroExt(width)
	case ir.UnarySignExtend:
		return a.SignExt(width)
	case ir.UnaryTruncate:
		return a.Slice(width-1, 0)
	default:
		return a
	}
}

// execOperation runs one Operation. resume describes where a forked
// sibling should pick up this instruction's operation list — the
// continuing state never needs it, since it simply keeps executing
// subsequent operations in this same call (spec.md §4.5: "continue current
// state under g" / "continue with the first [solution]"). Only the other
// clone(s) pushed to the path store need a cursor, since they were never
// given the chance to run what comes after the fork point.
func execOperation(s *state.State, hc *hooks.Container, op ir.Operation, loc locals, resume cursor, push PushFork, cfg Config) *Result {
	switch op.Kind {
	case ir.OpNop:
		return nil

	case ir.OpMove:
		writeOperand(s, hc, op.Dst, evalOperand(s, hc, op.Src1, loc), loc)
		return nil

	case ir.OpBinary:
		a := evalOperand(s, hc, op.Src1, loc)
		b := evalOperand(s, hc, op.Src2, loc)
		result := applyBinOp(op.BinOp, a, b)
		writeOperand(s, hc, op.Dst, result, loc)
		if op.SetFlags {
			s.WriteFlag("Z", isZero(s.Solver(), result))
			s.WriteFlag("N", signBit(result))
		}
		return nil

	case ir.OpUnary:
		a := evalOperand(s, hc, op.Src1, loc)
		width := op.Width
		if width == 0 {
			width = a.Width()
		}
		result := applyUnaryOp(op.Unary, a, width)
		writeOperand(s, hc, op.Dst, result, loc)
		if op.SetFlags {
			s.WriteFlag("Z", isZero(s.Solver(), result))
			s.WriteFlag("N", signBit(result))
		}
		return nil

	case ir.OpCompare:
		a := evalOperand(s, hc, op.Src1, loc)
		b := evalOperand(s, hc, op.Src2, loc)
		var sum, carry, overflow smt.Expression
		if op.IsAdd {
			sum, carry, overflow = addWithCarry(a, b, s.Solver().FromUint64(0, 1))
		} else {
			sum, carry, overflow = addWithCarry(a, b.Not(), s.Solver().FromUint64(1, 1))
		}
		s.WriteFlag("Z", isZero(s.Solver(), sum))
		s.WriteFlag("N", signBit(sum))
		s.WriteFlag("C", carry)
		s.WriteFlag("V", overflow)
		return nil

	case ir.OpLoad:
		writeOperand(s, hc, op.Dst, evalOperand(s, hc, op.Src1, loc), loc)
		return nil

	case ir.OpStore:
		writeOperand(s, hc, op.Dst, evalOperand(s, hc, op.Src1, loc), loc)
		return nil

	case ir.OpSetFlagsLogical:
		result := evalOperand(s, hc, op.Src1, loc)
		s.WriteFlag("Z", isZero(s.Solver(), result))
		s.WriteFlag("N", signBit(result))
		return nil

	case ir.OpSetFlagsArith:
		a := evalOperand(s, hc, op.Src1, loc)
		b := evalOperand(s, hc, op.Src2, loc)
		carryIn := evalOperand(s, hc, op.CarryIn, loc)
		var carry, overflow smt.Expression
		if op.IsAdd {
			_, carry, overflow = addWithCarry(a, b, carryIn)
		} else {
			_, carry, overflow = addWithCarry(a, b.Not(), carryIn)
		}
		s.WriteFlag("C", carry)
		s.WriteFlag("V", overflow)
		return nil

	case ir.OpITSetup:
		s.PushITConditions(op.Conditions...)
		return nil

	case ir.OpConditionalExecute:
		var guard smt.Expression
		if op.HasGuard {
			// CBZ/CBNZ: the guard is "src == 0" / "src != 0", tested
			// directly against op.Guard rather than the real N/Z/C/V
			// flags, since the ARM architecture reference requires both
			// to leave every condition flag unmodified.
			guard = isZero(s.Solver(), evalOperand(s, hc, op.Guard, loc))
			if op.GuardNonZero {
				guard = guard.Not()
			}
		} else {
			// op.Condition is already resolved: for an IT-block member,
			// the decoder popped it from the state's IT-condition queue
			// at translate time (spec.md §4.2); for a plain conditional
			// branch it is the instruction's own encoded condition.
			guard = evalCondition(s, op.Condition)
		}
		taken, term := resolveGuard(s, guard, resume, push)
		if term != nil {
			return term
		}
		if !taken {
			return nil
		}
		for _, inner := range op.Body {
			if term := execOperation(s, hc, inner, loc, resume, push, cfg); term != nil {
				return term
			}
		}
		return nil

	case ir.OpJump:
		return jumpTo(s, hc, op.Src1, loc, resume, push, cfg)

	case ir.OpBranchLink:
		instr := s.CurrentInstruction()
		var retAddr uint64
		if instr != nil {
			retAddr = s.PC() + uint64(instr.SizeBits/8)
		}
		s.WriteRegister("LR", s.Solver().FromUint64(retAddr, 32))
		return jumpTo(s, hc, op.Src1, loc, resume, push, cfg)
	}

	return nil
}

// jumpTo resolves target (symbolic PC resolution, spec.md §4.6, if it is
// not already concrete) and writes the resulting concrete value(s) to PC,
// forking one sibling per extra solution.
func jumpTo(s *state.State, hc *hooks.Container, target ir.Operand, loc locals, resume cursor, push PushFork, cfg Config) *Result {
	t := evalOperand(s, hc, target, loc)
	if c, ok := t.GetConstant(); ok {
		s.SetPC(c)
		s.SetHasJumped(true)
		return nil
	}

	solutions, err := s.Solver().Solve(s.Constraints(), t, cfg.MaxSolverSolutions)
	if err != nil {
		return &Result{Outcome: EndFailure, Reason: err.Error()}
	}
	if !solutions.Exact || len(solutions.Values) == 0 || len(solutions.Values) > cfg.MaxSolverSolutions {
		return &Result{Outcome: EndFailure, Reason: "symbolic branch unresolved"}
	}

	for _, v := range solutions.Values[1:] {
		sibling := s.Clone()
		eq := t.Eq(s.Solver().FromUint64(v, t.Width()))
		sibling.Assert(eq)
		sibling.SetPC(v)
		sibling.SetHasJumped(true)
		resume.applyTo(sibling)
		push(sibling, eq)
	}

	first := solutions.Values[0]
	s.Assert(t.Eq(s.Solver().FromUint64(first, t.Width())))
	s.SetPC(first)
	s.SetHasJumped(true)
	return nil
}
