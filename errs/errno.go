package errs

// Errno enumerates the specific error conditions the engine can report.
// Errno values are partitioned by numeric range into the five categories
// of spec.md §7: project, architecture, memory, solver, engine. The
// partitioning is what Category() inspects, so new constants must be
// inserted in the correct block, not appended after engineBase.
type Errno int

const (
	// Project errors: ELF parse, missing required symbol, malformed
	// section, missing .ARM.attributes.
	ElfMalformed Errno = iota
	ElfMissingSection
	MissingStackSymbol
	MissingAttributesSection
	SubprogramNotFound

	architectureBase
)

const (
	// Architecture errors: unsupported ISA, and the parsing-error
	// sub-classification of spec.md §4.1.
	UnsupportedISA Errno = iota + architectureBase
	InsufficientInput
	MalformedInstruction
	InvalidInstruction
	Unpredictable
	InvalidRegister
	InvalidCondition

	memoryBase
)

const (
	// Memory errors: writing to static memory, out-of-range access with a
	// constant address, inconsistent width.
	WritingToStaticMemoryProhibited Errno = iota + memoryBase
	OutOfRangeAccess
	InconsistentWidth

	solverBase
)

const (
	// Solver errors: backend failure, unsat-core-on-sat-formula, translation
	// error. The solver itself is an external collaborator (spec.md §1); these
	// Errno values classify failures the core observes when talking to it.
	SolverBackendFailure Errno = iota + solverBase
	UnsatCoreOnSatFormula
	SolverTranslationError

	engineBase
)

const (
	// Engine errors: entry function not found, non-deterministic PC at
	// fetch with no satisfiable solution, iteration budget exceeded.
	EntryFunctionNotFound Errno = iota + engineBase
	NonDeterministicPCAtFetch
	IterationBudgetExceeded
	CallDepthExceeded
	FunctionPointerResolutionsExceeded
	AssumptionUnsatisfiable
	SymbolicBranchUnresolved
)
