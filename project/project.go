// Package project adapts a real ELF file (with optional DWARF debug info)
// into the immutable program image the symbolic execution kernel consumes
// (spec.md §3 "Program image", §6 "Program image (inbound)"). It is
// grounded directly on the teacher's
// coprocessor/developer/dwarf/elf_shim.go, which performs the same
// adaptation (debug/elf + debug/dwarf, no third-party ELF/DWARF library) for
// its own source-level debugger.
package project

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"

	"github.com/ivajon/symex/errs"
	"github.com/ivajon/symex/smt"
)

// Subprogram describes one DWARF subprogram entry: its PC range [Low, High)
// and its declaration site, used to resolve hook regexes (spec.md §4.4) and
// to report human-readable failure locations.
type Subprogram struct {
	Name string
	Low  uint64
	High uint64
	File string
	Line int
}

// Contains reports whether pc falls within [Low, High).
func (s Subprogram) Contains(pc uint64) bool {
	return pc >= s.Low && pc < s.High
}

// SubprogramMap is name → Subprogram, built from DWARF (or, if no DWARF
// data is present, from the ELF symbol table's function symbols only — name
// and range, no file:line).
type SubprogramMap struct {
	byName []Subprogram
}

// Lookup returns the subprogram with the given name, if any.
func (m *SubprogramMap) Lookup(name string) (Subprogram, bool) {
	for _, s := range m.byName {
		if s.Name == name {
			return s, true
		}
	}
	return Subprogram{}, false
}

// At returns the subprogram containing pc, if any.
func (m *SubprogramMap) At(pc uint64) (Subprogram, bool) {
	for _, s := range m.byName {
		if s.Contains(pc) {
			return s, true
		}
	}
	return Subprogram{}, false
}

// All returns every subprogram, for regex matching by hooks.Container.
func (m *SubprogramMap) All() []Subprogram {
	return m.byName
}

// segment is one loaded ELF segment's backing bytes, addressed by its
// virtual address.
type segment struct {
	addr  uint64
	data  []byte
	write bool // true for segments that are writable at load time (e.g. .data)
}

func (s segment) contains(addr uint64) bool {
	return addr >= s.addr && addr < s.addr+uint64(len(s.data))
}

// Image is the immutable program image: ELF segments, a symbol table, and a
// subprogram map, plus the metadata memory.ArrayMemory and the kernel's
// State need (pointer size, endianness, the address of _stack_start).
//
// An Image is created once by Load and then shared, read-only, by every
// path's state — never mutated after construction (spec.md §5).
type Image struct {
	segments   []segment
	symbols    map[string]uint64
	subprogram SubprogramMap
	ptrSize    uint32
	endianness smt.Endianness
	entryLow   uint64
	entryHigh  uint64
}

// InStaticRange reports whether addr lies in a segment that is read-only at
// load time (.text, .rodata, and any non-writable initialized data) — the
// "static range" of spec.md whose writes are rejected and whose reads
// bypass the RAM overlay.
func (img *Image) InStaticRange(addr uint64) bool {
	for _, s := range img.segments {
		if !s.write && s.contains(addr) {
			return true
		}
	}
	return false
}

// ReadStatic reads bits from a constant address known to be inside the
// program image (static or otherwise loaded) segments. ok is false if addr
// is not covered by any loaded segment (e.g. it is genuinely unmapped RAM,
// which the caller should instead resolve via the array memory overlay).
func (img *Image) ReadStatic(addr uint64, bits uint32) (value uint64, ok bool) {
	if bits == 0 || bits%8 != 0 {
		return 0, false
	}
	numBytes := int(bits / 8)
	bs := make([]byte, numBytes)
	for i := 0; i < numBytes; i++ {
		b, found := img.byteAt(addr + uint64(i))
		if !found {
			return 0, false
		}
		bs[i] = b
	}

	var v uint64
	if img.endianness == smt.LittleEndian {
		for i := numBytes - 1; i >= 0; i-- {
			v = (v << 8) | uint64(bs[i])
		}
	} else {
		for i := 0; i < numBytes; i++ {
			v = (v << 8) | uint64(bs[i])
		}
	}
	return v, true
}

func (img *Image) byteAt(addr uint64) (byte, bool) {
	for _, s := range img.segments {
		if s.contains(addr) {
			return s.data[addr-s.addr], true
		}
	}
	return 0, false
}

// BytesAt returns up to n raw instruction bytes starting at addr, for a
// decoder to classify and translate. Fewer than n bytes are returned if
// addr is near the end of its segment; the decoder's own length check
// (size_bits) surfaces any genuine truncation as InsufficientInput.
func (img *Image) BytesAt(addr uint64, n int) []byte {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, ok := img.byteAt(addr + uint64(i))
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

// PointerSize returns the width, in bits, of a pointer/address on this
// target (32 for the Cortex-M profiles this engine targets).
func (img *Image) PointerSize() uint32 { return img.ptrSize }

// Endianness returns the target's byte order.
func (img *Image) Endianness() smt.Endianness { return img.endianness }

// SymbolAddress returns the address bound to a named symbol (function or
// object), such as "_stack_start" or an entry function name.
func (img *Image) SymbolAddress(name string) (uint64, bool) {
	addr, ok := img.symbols[name]
	return addr, ok
}

// Subprograms returns the image's subprogram map.
func (img *Image) Subprograms() *SubprogramMap {
	return &img.subprogram
}

// TextRange returns the [low, high) address range of the .text section, per
// spec.md §6 ("`.text` range(s)").
func (img *Image) TextRange() (uint64, uint64) {
	return img.entryLow, img.entryHigh
}

// Load opens path as an ELF file and adapts it into an Image. It requires a
// _stack_start symbol (spec.md's State lifecycle preloads SP from it); its
// absence aborts the whole run, per spec.md §7 ("Initialisation errors...
// abort the whole run").
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errs.Errorf(errs.ElfMalformed, errs.MsgElfMalformed, err)
	}
	defer f.Close()

	img := &Image{
		symbols: make(map[string]uint64),
		ptrSize: 32,
	}
	switch f.ByteOrder.String() {
	case "LittleEndian":
		img.endianness = smt.LittleEndian
	default:
		img.endianness = smt.BigEndian
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, errs.Errorf(errs.ElfMalformed, errs.MsgElfMalformed, err)
		}
		img.segments = append(img.segments, segment{
			addr:  prog.Vaddr,
			data:  data,
			write: prog.Flags&elf.PF_W != 0,
		})
	}

	// a stripped binary may have no symbol table at all; that is only fatal
	// once we discover _stack_start is missing, below.
	syms, _ := f.Symbols()
	for _, sym := range syms {
		if sym.Name == "" {
			continue
		}
		img.symbols[sym.Name] = sym.Value
	}

	if _, ok := img.symbols["_stack_start"]; !ok {
		return nil, errs.Errorf(errs.MissingStackSymbol, errs.MsgMissingStackSymbol, "_stack_start")
	}

	if sec := f.Section(".text"); sec != nil {
		img.entryLow = sec.Addr
		img.entryHigh = sec.Addr + sec.Size
	}

	img.subprogram = buildSubprogramMap(f, syms)

	return img, nil
}

// ARMAttributes returns the raw .ARM.attributes section contents, if
// present; arch.Discover uses this to recognise the target ISA.
func ARMAttributes(path string) ([]byte, bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, false, errs.Errorf(errs.ElfMalformed, errs.MsgElfMalformed, err)
	}
	defer f.Close()

	sec := f.Section(".ARM.attributes")
	if sec == nil {
		return nil, false, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, false, errs.Errorf(errs.ElfMalformed, errs.MsgElfMalformed, err)
	}
	return data, true, nil
}

// Machine returns the ELF machine type, used alongside .ARM.attributes by
// arch.Discover.
func Machine(path string) (elf.Machine, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, errs.Errorf(errs.ElfMalformed, errs.MsgElfMalformed, err)
	}
	defer f.Close()
	return f.Machine, nil
}

func buildSubprogramMap(f *elf.File, syms []elf.Symbol) SubprogramMap {
	var m SubprogramMap

	dwrf, err := f.DWARF()
	if err == nil && dwrf != nil {
		m.byName = subprogramsFromDWARF(dwrf)
	}

	if len(m.byName) == 0 {
		// no DWARF (or it failed to parse): fall back to function symbols
		// from the ELF symbol table, with no file:line information.
		for _, sym := range syms {
			if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Name == "" || sym.Size == 0 {
				continue
			}
			m.byName = append(m.byName, Subprogram{
				Name: sym.Name,
				Low:  sym.Value,
				High: sym.Value + sym.Size,
			})
		}
	}

	sort.Slice(m.byName, func(i, j int) bool { return m.byName[i].Low < m.byName[j].Low })
	return m
}

func subprogramsFromDWARF(d *dwarf.Data) []Subprogram {
	var out []Subprogram
	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name, _ := entry.Val(dwarf.AttrName).(string)
		if name == "" {
			continue
		}
		low, lowOK := attrAddr(entry, dwarf.AttrLowpc)
		if !lowOK {
			continue
		}
		high, highOK := highPC(entry, low)
		if !highOK {
			continue
		}
		file, _ := entry.Val(dwarf.AttrDeclFile).(int64)
		line, _ := entry.Val(dwarf.AttrDeclLine).(int64)
		out = append(out, Subprogram{
			Name: name,
			Low:  low,
			High: high,
			File: fmt.Sprintf("%d", file),
			Line: int(line),
		})
	}
	return out
}

func attrAddr(entry *dwarf.Entry, attr dwarf.Attr) (uint64, bool) {
	v := entry.Val(attr)
	switch t := v.(type) {
	case uint64:
		return t, true
	case int64:
		return uint64(t), true
	default:
		return 0, false
	}
}

// highPC interprets DW_AT_high_pc, which DWARF4+ may express either as an
// absolute address or as an offset from low_pc.
func highPC(entry *dwarf.Entry, low uint64) (uint64, bool) {
	field := entry.AttrField(dwarf.AttrHighpc)
	if field == nil {
		return 0, false
	}
	switch v := field.Val.(type) {
	case uint64:
		if field.Class == dwarf.ClassAddress {
			return v, true
		}
		return low + v, true
	case int64:
		return low + uint64(v), true
	default:
		return 0, false
	}
}
