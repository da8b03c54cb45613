package errs

// Message format strings, grouped by category, mirroring the teacher's
// errors/messages.go table of printf-style constants. These are paired with
// their Errno by convention at each call site (see Errorf), not enforced by
// the type system — the same discipline the teacher uses.
const (
	// project
	MsgElfMalformed             = "elf error: %v"
	MsgElfMissingSection        = "elf error: missing section %q"
	MsgMissingStackSymbol       = "elf error: required symbol not found: %v"
	MsgMissingAttributesSection = "elf error: missing .ARM.attributes section"
	MsgSubprogramNotFound       = "subprogram map error: no subprogram matching %q"

	// architecture
	MsgUnsupportedISA       = "architecture error: unsupported ISA: %v"
	MsgInsufficientInput    = "decode error: insufficient input at %#08x"
	MsgMalformedInstruction = "decode error: malformed instruction at %#08x"
	MsgInvalidInstruction   = "decode error: invalid instruction (%#04x) at %#08x"
	MsgUnpredictable        = "decode error: unpredictable encoding at %#08x"
	MsgInvalidRegister      = "decode error: invalid register %v"
	MsgInvalidCondition     = "decode error: invalid condition %v"

	// memory
	MsgWritingToStaticMemoryProhibited = "memory error: write to static memory at %#08x prohibited"
	MsgOutOfRangeAccess                = "memory error: out-of-range access at %#08x (width %d)"
	MsgInconsistentWidth               = "memory error: inconsistent access width %d"

	// solver
	MsgSolverBackendFailure   = "solver error: backend failure: %v"
	MsgUnsatCoreOnSatFormula  = "solver error: unsat core requested on satisfiable formula"
	MsgSolverTranslationError = "solver error: translation error: %v"

	// engine
	MsgEntryFunctionNotFound              = "engine error: entry function not found: %v"
	MsgNonDeterministicPCAtFetch          = "engine error: non-deterministic pc at instruction fetch (%v)"
	MsgIterationBudgetExceeded            = "engine error: instruction iteration budget exceeded (%d)"
	MsgCallDepthExceeded                  = "engine error: call depth budget exceeded (%d)"
	MsgFunctionPointerResolutionsExceeded = "engine error: function pointer resolution budget exceeded (%d)"
	MsgAssumptionUnsatisfiable            = "engine error: path assumption is unsatisfiable"
	MsgSymbolicBranchUnresolved           = "engine error: symbolic branch target has more than %d solutions"
)
