// Command symex drives the symbolic execution kernel over one ELF image
// from the command line: load, discover the architecture, explore every
// path rooted at an entry function, and print one line per terminal path.
//
// Grounded on the teacher's gopher2600.go flag-handling idiom
// (flag.NewFlagSet(name, flag.ContinueOnError), explicit
// errors.Is(err, flag.ErrHelp) handling) and on disassembly/entry_string.go
// for one-line-per-entry report formatting.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ivajon/symex/arch"
	_ "github.com/ivajon/symex/arch/armv6m"
	_ "github.com/ivajon/symex/arch/armv7em"
	"github.com/ivajon/symex/logger"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/smt/concretetest"
	"github.com/ivajon/symex/state"
	"github.com/ivajon/symex/vm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "symex: %s\n", err)
		os.Exit(1)
	}
}

type options struct {
	elfPath   string
	entry     string
	maxIter   uint64
	maxFnPtr  int
	solutions int
	verbose   bool
}

func parseArgs(args []string) (options, error) {
	var opts options
	flgs := flag.NewFlagSet("symex", flag.ContinueOnError)
	flgs.StringVar(&opts.elfPath, "elf", "", "path to the ELF image to explore (required)")
	flgs.StringVar(&opts.entry, "entry", "main", "entry function symbol to start exploration from")
	flgs.Uint64Var(&opts.maxIter, "max-iter", 1000, "maximum instructions executed per path")
	flgs.IntVar(&opts.maxFnPtr, "max-fn-ptr", 1, "value stored in vm.Config.MaxFnPtrResolutions (not enforced: symbolic jump targets are capped by MaxSolverSolutions)")
	flgs.IntVar(&opts.solutions, "solutions", 0, "enumerate up to this many concrete R0 solutions per terminal path (0 disables)")
	flgs.BoolVar(&opts.verbose, "v", false, "echo the trace logger's backlog after exploration")

	if err := flgs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, err
	}
	if opts.elfPath == "" {
		return opts, errors.New("-elf is required")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	image, err := project.Load(opts.elfPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.elfPath, err)
	}

	a, ok, err := arch.Discover(opts.elfPath)
	if err != nil {
		return fmt.Errorf("discovering architecture: %w", err)
	}
	if !ok {
		return fmt.Errorf("no registered architecture recognises %s", opts.elfPath)
	}

	cfg := vm.DefaultConfig()
	cfg.MaxIterCount = opts.maxIter
	cfg.MaxFnPtrResolutions = opts.maxFnPtr

	// concretetest is the only concrete smt.Solver in this repository; the
	// real SMT backend is an external collaborator (spec.md §1, "OUT OF
	// SCOPE... the SMT solver backend"). Wiring a production backend here
	// means swapping this one construction site.
	solver := concretetest.New()
	array := concretetest.NewArray()

	machine, err := vm.New(image, a, solver, array, opts.entry, cfg)
	if err != nil {
		return fmt.Errorf("building VM: %w", err)
	}

	pathN := 0
	machine.Run(func(result vm.PathResult, final *state.State, path []smt.Expression) bool {
		pathN++
		fmt.Printf("path %d: %s", pathN, result.Outcome)
		if result.Reason != "" {
			fmt.Printf(" (%s)", result.Reason)
		}
		fmt.Printf(" cycles=%d constraints=%d", final.CycleCount(), len(path))

		if opts.solutions > 0 {
			r0 := final.ReadRegister("R0")
			solutions, err := solver.Solve(path, r0, opts.solutions)
			if err != nil {
				fmt.Printf(" r0=<solve error: %s>", err)
			} else {
				fmt.Printf(" r0=%v", solutions.Values)
				if !solutions.Exact {
					fmt.Printf("(+more)")
				}
			}
		}
		fmt.Println()
		return true
	})

	fmt.Printf("%d path(s) explored\n", pathN)

	if opts.verbose {
		logger.Write(os.Stdout)
	}
	return nil
}
