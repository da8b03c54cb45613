package errs_test

import (
	"testing"

	"github.com/ivajon/symex/errs"
)

func TestErrorfDeduplicatesAdjacentParts(t *testing.T) {
	inner := errs.Errorf(errs.EntryFunctionNotFound, errs.MsgEntryFunctionNotFound, "main")
	outer := errs.Errorf(errs.EntryFunctionNotFound, "engine error: %v", inner)

	got := outer.Error()
	want := "engine error: entry function not found: main"
	if got != want {
		t.Errorf("unexpected normalised message\ngot:  %s\nwant: %s", got, want)
	}
}

func TestIsAndHas(t *testing.T) {
	err := errs.Errorf(errs.WritingToStaticMemoryProhibited, errs.MsgWritingToStaticMemoryProhibited, 0x1000)

	if !errs.IsAny(err) {
		t.Fatal("expected IsAny to report true for a curated error")
	}
	if !errs.Is(err, errs.WritingToStaticMemoryProhibited) {
		t.Fatal("expected Is to match the original Errno")
	}
	if errs.Is(err, errs.OutOfRangeAccess) {
		t.Fatal("Is should not match an unrelated Errno")
	}
	if !errs.Has(err, errs.WritingToStaticMemoryProhibited) {
		t.Fatal("expected Has to find the Errno in the chain")
	}
	if errs.IsAny(nil) {
		t.Fatal("IsAny(nil) should be false")
	}
}

func TestCategory(t *testing.T) {
	cases := []struct {
		errno errs.Errno
		want  errs.Category
	}{
		{errs.ElfMalformed, errs.Project},
		{errs.UnsupportedISA, errs.Architecture},
		{errs.WritingToStaticMemoryProhibited, errs.Memory},
		{errs.SolverBackendFailure, errs.Solver},
		{errs.EntryFunctionNotFound, errs.Engine},
	}
	for _, c := range cases {
		if got := c.errno.Category(); got != c.want {
			t.Errorf("Category(%d) = %v, want %v", c.errno, got, c.want)
		}
	}
}

func TestAsErrno(t *testing.T) {
	err := errs.Errorf(errs.IterationBudgetExceeded, errs.MsgIterationBudgetExceeded, 1000)
	errno, ok := errs.AsErrno(err)
	if !ok || errno != errs.IterationBudgetExceeded {
		t.Fatalf("AsErrno returned (%v, %v)", errno, ok)
	}
	if _, ok := errs.AsErrno(nil); ok {
		t.Fatal("AsErrno(nil) should report false")
	}
}
