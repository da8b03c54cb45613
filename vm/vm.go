// Package vm is the driver of spec.md §4.7: it pops a path from the path
// store, resumes it to a terminal event via the executor, and yields
// (PathResult, final state, accumulated path condition) — repeating until
// every fork has been explored.
//
// Grounded on original_source/symex_take_2/src/executor/vm.rs's VM::new /
// VM::run pop-resume loop (the constraint a forked sibling carries is
// asserted once, by the fork site, before it ever reaches the store), and on
// original_source/symex_take_2/src/manager/mod.rs's policy of silently
// dropping Suppress outcomes from the caller-visible result stream — the
// default manager this package's Run method plays the role of.
package vm

import (
	"github.com/ivajon/symex/arch"
	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/executor"
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/logger"
	"github.com/ivajon/symex/pathstore"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/state"
)

// Config holds the six driver-level limits of spec.md §6. MaxSolverSolutions
// (spec.md §4.6's general symbolic-PC-resolution cap, default 500) and
// MaxFnPtrResolutions (spec.md §6's narrower "indirect-call concretizations"
// cap, default 1) are two distinct knobs: every jumpTo call enforces the
// former; the latter is reserved for whatever indirect-call-specific
// concretization path an Arch's hooks implement on top of it.
type Config struct {
	MaxCallDepth                int
	MaxIterCount                uint64
	MaxSolverSolutions          int
	MaxFnPtrResolutions         int
	MaxMemoryAccessResolutions  int
	MaxIntrinsicConcretizations int
}

// DefaultConfig returns spec.md §6's documented defaults, mirroring the
// teacher's value-struct-with-constructor idiom (e.g.
// preferences.ARMPreferences).
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:                1000,
		MaxIterCount:                1000,
		MaxSolverSolutions:          500,
		MaxFnPtrResolutions:         1,
		MaxMemoryAccessResolutions:  100,
		MaxIntrinsicConcretizations: 100,
	}
}

// executorConfig narrows vm.Config to the subset executor.Step enforces
// directly. MaxCallDepth, MaxFnPtrResolutions, MaxMemoryAccessResolutions,
// and MaxIntrinsicConcretizations are carried in Config but are not read by
// the generic operation interpreter, by hooks.InstallDefaults, or by the
// hooks of the bundled armv6m/armv7em architectures.
func (c Config) executorConfig() executor.Config {
	return executor.Config{
		MaxIterCount:       c.MaxIterCount,
		MaxSolverSolutions: c.MaxSolverSolutions,
	}
}

// PathResult is the terminal status of one fully-explored path, per
// spec.md §4.7's PathResult variants (Success/Failure/Suppress/
// AssumptionUnsat collapse onto executor.Outcome, which already names
// exactly these four plus Running).
type PathResult struct {
	Outcome executor.Outcome
	Reason  string
}

// VM drives one program image through one architecture's decoder, one
// path at a time, per spec.md §5 ("single-threaded and non-reentrant...
// drives one path at a time to a terminal event before returning
// control").
type VM struct {
	image *project.Image
	arch  arch.Arch
	hooks *hooks.Container
	cfg   Config
	store *pathstore.Store
}

// New builds a VM ready to explore every path rooted at the named entry
// function, per spec.md's Lifecycle: the initial state's PC is the entry
// function's address, SP is preloaded from `_stack_start`, LR is the
// end-PC sentinel, and the end-PC sentinel is installed as an EndSuccess
// PC hook so that the entry function's first return terminates the path
// successfully.
func New(image *project.Image, a arch.Arch, solver smt.Solver, array smt.Array, entryFn string, cfg Config) (*VM, error) {
	entryPC, ok := image.SymbolAddress(entryFn)
	if !ok {
		return nil, errs.Errorf(errs.EntryFunctionNotFound, errs.MsgEntryFunctionNotFound, entryFn)
	}

	hc := hooks.New()
	if err := hooks.InstallDefaults(hc, subprogramSlice(image.Subprograms())); err != nil {
		return nil, err
	}
	if err := a.AddHooks(hc, image.Subprograms()); err != nil {
		return nil, err
	}
	hc.AddPCHook(state.EndPCSentinel, hooks.PCHook{Kind: hooks.EndSuccess})

	initial, err := state.New(solver, array, image, entryPC)
	if err != nil {
		return nil, err
	}

	vm := &VM{
		image: image,
		arch:  a,
		hooks: hc,
		cfg:   cfg,
		store: pathstore.New(),
	}
	vm.store.Push(initial, nil)
	return vm, nil
}

func subprogramSlice(m *project.SubprogramMap) []hooks.Subprogram {
	all := m.All()
	out := make([]hooks.Subprogram, len(all))
	for i, s := range all {
		out[i] = subprogramAdapter{s}
	}
	return out
}

// subprogramAdapter satisfies hooks.Subprogram over a project.Subprogram
// value, so the hooks package does not need to import project.
type subprogramAdapter struct {
	s project.Subprogram
}

func (a subprogramAdapter) SubprogramName() string { return a.s.Name }
func (a subprogramAdapter) SubprogramLow() uint64  { return a.s.Low }

// Run explores every path to termination, invoking yield once per
// terminal path with its PathResult, final State, and accumulated path
// condition (spec.md §4.7). Run stops early if yield returns false.
// Suppress outcomes are never passed to yield, per the default manager
// policy of original_source/symex_take_2/src/manager/mod.rs — they are
// silently dropped, since they represent a path the user explicitly
// marked as uninteresting (a `suppress_path` hook), not an outcome a
// caller needs to see.
func (vm *VM) Run(yield func(PathResult, *state.State, []smt.Expression) bool) {
	for {
		// constraint was already asserted into s's own Constraints() by the
		// fork site (resolveGuard/jumpTo) before it was pushed, per
		// pathstore.Store.Push's contract; Pop hands it back only so Run can
		// report it, not to re-assert it.
		s, _, ok := vm.store.Pop()
		if !ok {
			return
		}

		result := vm.resume(s)

		if result.Outcome == executor.Suppress {
			logger.Log("vm", "path at pc=%#x suppressed", s.PC())
			continue
		}

		if !yield(PathResult{Outcome: result.Outcome, Reason: result.Reason}, s, s.Constraints()) {
			return
		}
	}
}

// resume drives s to its next terminal event, pushing any forked siblings
// onto vm.store along the way.
func (vm *VM) resume(s *state.State) executor.Result {
	push := func(sibling *state.State, extra smt.Expression) {
		logger.Log("vm", "fork at pc=%#x", sibling.PC())
		vm.store.Push(sibling, extra)
	}

	// decode closes over s so that Translate can pop IT-block conditions
	// from this specific path's queue at decode time (spec.md §4.2); 4
	// bytes covers both 16-bit and 32-bit Thumb encodings, and a decoder
	// only ever consumes the prefix it needs.
	decode := func(pc uint64) (ir.Instruction, error) {
		return vm.arch.Translate(vm.image.BytesAt(pc, 4), s)
	}

	for {
		res, err := executor.Step(s, vm.hooks, decode, push, vm.cfg.executorConfig())
		if err != nil {
			return executor.Result{Outcome: executor.EndFailure, Reason: err.Error()}
		}
		if res.Outcome != executor.Running {
			return res
		}
	}
}
