// Package arch declares the instruction-set-architecture contract of
// spec.md §4.1: a decoder/hook-installer pair that the vm package drives
// without ever knowing which concrete ISA it is running. arch/armv6m and
// arch/armv7em each register a concrete implementation.
//
// Grounded on the teacher's own Architecture abstraction in
// hardware/memory/cartridge/arm/arm.go (an ARM7TDMI struct wrapped behind
// the cartridgebus.CartCoProc interface, discovered from ELF headers by
// readELF/newARM) and on
// original_source/symex_take_2/src/arch/arm/v6.rs /
// original_source/symex_take_2/src/smt/mod.rs's Architecture trait (whose
// methods this interface mirrors one-for-one).
package arch

import (
	"github.com/ivajon/symex/hooks"
	"github.com/ivajon/symex/ir"
	"github.com/ivajon/symex/project"
	"github.com/ivajon/symex/state"
)

// Arch is one instruction-set architecture: a decoder from raw bytes to
// the generic ir.Instruction model, plus the architecture-specific hooks
// and register-numbering scheme spec.md §4.1 requires of it.
type Arch interface {
	// Name identifies the architecture for diagnostics and CLI output
	// (e.g. "armv6m", "armv7em").
	Name() string

	// Translate decodes the instruction at the front of bytes, consulting
	// s only to pop IT-block conditions at decode time (spec.md §4.2) —
	// it must not mutate any other part of s. It never advances PC; the
	// executor does that after execution.
	Translate(bytes []byte, s *state.State) (ir.Instruction, error)

	// AddHooks installs every architecture-specific hook spec.md §4.1
	// describes (symbolic_size intrinsic, PC+/SP& aliasing, fixed-address
	// peripheral reads) into hc, resolving subprogram names via
	// subprograms.
	AddHooks(hc *hooks.Container, subprograms *project.SubprogramMap) error

	// RegisterToNumber maps a canonical register name ("R0".."R12", "SP",
	// "LR", "PC", and the hook-visible aliases "PC+"/"SP&") to its
	// architectural number.
	RegisterToNumber(name string) (int, bool)

	// NumberToRegister is RegisterToNumber's inverse for the 16
	// architectural register numbers (0-15); it never produces an alias.
	NumberToRegister(n int) (string, bool)
}

// DiscoverFunc recognises whether the ELF file at path is this package's
// architecture, per spec.md §4.1's `discover(elf) -> Option<Self>`.
// Implementations read project.ARMAttributes/project.Machine rather than
// re-parsing the ELF file themselves.
type DiscoverFunc func(path string) (Arch, bool, error)

var registry []DiscoverFunc

// Register adds fn to the set of architectures Discover tries, in
// registration order. Concrete packages (arch/armv6m, arch/armv7em) call
// this from an init function so that importing them for side effect is
// enough to make them discoverable.
func Register(fn DiscoverFunc) {
	registry = append(registry, fn)
}

// Discover tries every registered architecture against the ELF file at
// path, in registration order, and returns the first match.
func Discover(path string) (Arch, bool, error) {
	for _, fn := range registry {
		a, ok, err := fn(path)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return a, true, nil
		}
	}
	return nil, false, nil
}
