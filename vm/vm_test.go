package vm

import (
	"testing"

	"github.com/ivajon/symex/arch"
	"github.com/ivajon/symex/executor"
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/smt/concretetest"
	"github.com/ivajon/symex/state"
)

// fakeArch is a minimal arch.Arch whose Translate is scripted per test:
// every PC not explicitly listed decodes to a single bx lr (jump to LR),
// which reaches the end-PC sentinel and terminates the path successfully.
type fakeArch struct {
	at map[uint64]ir.Instruction
}

func (f fakeArch) Name() string { return "fake" }

func (f fakeArch) Translate(bytes []byte, s *state.State) (ir.Instruction, error) {
	if instr, ok := f.at[s.PC()]; ok {
		return instr, nil
	}
	return ir.New(16, "bx lr", ir.Cycles(1), ir.Jump(ir.Reg("LR"))), nil
}

func (f fakeArch) AddHooks(hc *hooks.Container, subprograms *project.SubprogramMap) error {
	return nil
}

func (f fakeArch) RegisterToNumber(name string) (int, bool) { return 0, false }
func (f fakeArch) NumberToRegister(n int) (string, bool)    { return "", false }

var _ arch.Arch = fakeArch{}

func testImage(t *testing.T) *project.Image {
	t.Helper()
	return project.NewForTest(map[string]uint64{
		"_stack_start": 0x2000_1000,
		"main":         0x0000_0100,
	}, 32, smt.LittleEndian)
}

// TestRunSingleStraightLinePathSucceeds exercises the trivial case: entry
// immediately returns (bx lr to the preloaded end-PC sentinel), and Run
// yields exactly one EndSuccess result.
func TestRunSingleStraightLinePathSucceeds(t *testing.T) {
	img := testImage(t)
	a := fakeArch{at: map[uint64]ir.Instruction{}}
	vm, err := New(img, a, concretetest.New(), concretetest.NewArray(), "main", DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var results []PathResult
	vm.Run(func(r PathResult, s *state.State, constraints []smt.Expression) bool {
		results = append(results, r)
		return true
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Outcome != executor.EndSuccess {
		t.Fatalf("outcome = %v, want EndSuccess", results[0].Outcome)
	}
}

// TestRunExploresBothForkedBranches exercises fork discipline end to end:
// a conditional branch on a genuinely symbolic flag forks one sibling, and
// Run must eventually yield a terminal result for both the continuing and
// the forked path.
func TestRunExploresBothForkedBranches(t *testing.T) {
	img := testImage(t)

	takeBranch := ir.New(16, "it/branch", ir.Cycles(1), func() ir.Operation {
		op := ir.ConditionalExecute(ir.Jump(ir.Imm(0x104, 32)))
		op.Condition = ir.EQ
		return op
	}())

	a := fakeArch{at: map[uint64]ir.Instruction{
		0x100: takeBranch,
	}}

	vm, err := New(img, a, concretetest.New(), concretetest.NewArray(), "main", DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Force the guard to be genuinely symbolic (not concrete) so the fork
	// path in resolveGuard actually triggers: overwrite Z with an
	// unconstrained symbol before Run starts exploring.
	s, constraint, ok := vm.store.Pop()
	if !ok {
		t.Fatalf("expected the initial path to be present")
	}
	s.WriteFlag("Z", s.NewUnconstrained("Z", 1))
	vm.store.Push(s, constraint)

	var terminalPCs []uint64
	var constraintCounts []int
	vm.Run(func(r PathResult, fs *state.State, constraints []smt.Expression) bool {
		terminalPCs = append(terminalPCs, fs.PC())
		constraintCounts = append(constraintCounts, len(constraints))
		return true
	})

	if len(terminalPCs) != 2 {
		t.Fatalf("got %d terminal paths, want 2 (taken + not-taken)", len(terminalPCs))
	}
	// Each path's fork-time guard was asserted exactly once, by the fork
	// site itself (resolveGuard), before the sibling was pushed. Run must
	// not assert it a second time on Pop: both the continuing and the
	// forked path carry exactly one constraint, not two.
	for i, n := range constraintCounts {
		if n != 1 {
			t.Fatalf("path %d (pc=%#x): got %d constraints, want 1 (guard must be asserted exactly once)", i, terminalPCs[i], n)
		}
	}
}

// TestRunDropsSuppressedPaths checks that a path ending in Suppress never
// reaches the caller's yield callback.
func TestRunDropsSuppressedPaths(t *testing.T) {
	img := testImage(t)
	a := fakeArch{at: map[uint64]ir.Instruction{}}
	vm, err := New(img, a, concretetest.New(), concretetest.NewArray(), "main", DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vm.hooks.AddPCHook(0x100, hooks.PCHook{Kind: hooks.Suppress})

	called := false
	vm.Run(func(r PathResult, s *state.State, constraints []smt.Expression) bool {
		called = true
		return true
	})

	if called {
		t.Fatalf("yield was called for a suppressed path")
	}
}

// TestNewRejectsUnknownEntryFunction checks spec.md §7's "Entry function
// not found" initialisation error.
func TestNewRejectsUnknownEntryFunction(t *testing.T) {
	img := testImage(t)
	a := fakeArch{at: map[uint64]ir.Instruction{}}
	_, err := New(img, a, concretetest.New(), concretetest.NewArray(), "nonexistent", DefaultConfig())
	if err == nil {
		t.Fatalf("expected an error for an unknown entry function")
	}
}

// TestDefaultConfigKeepsSolverAndFnPtrCapsDistinct guards against
// MaxSolverSolutions (spec.md §4.6's general symbolic-PC-resolution cap,
// default 500) collapsing onto MaxFnPtrResolutions (spec.md §6's narrower
// indirect-call-specific cap, default 1) — they are two different knobs.
func TestDefaultConfigKeepsSolverAndFnPtrCapsDistinct(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxSolverSolutions != 500 {
		t.Fatalf("MaxSolverSolutions = %d, want 500", cfg.MaxSolverSolutions)
	}
	if cfg.MaxFnPtrResolutions != 1 {
		t.Fatalf("MaxFnPtrResolutions = %d, want 1", cfg.MaxFnPtrResolutions)
	}
	if cfg.executorConfig().MaxSolverSolutions != 500 {
		t.Fatalf("executorConfig().MaxSolverSolutions = %d, want 500 (must come from MaxSolverSolutions, not MaxFnPtrResolutions)", cfg.executorConfig().MaxSolverSolutions)
	}
}
