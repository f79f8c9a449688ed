// Package symtab resolves breakpoint symbol names and the program's
// basename against a guest ELF binary's symbol table. Unlike a full
// loader, it never maps, relocates, or relinks the binary — qtrace's
// guest runs under the emulator, not in this process — so it only reads
// the static symbol table.
package symtab

import (
	"debug/elf"
	"fmt"
	"path/filepath"
)

// Table is a guest binary's resolved symbol table plus its basename.
type Table struct {
	Basename string
	Machine  string
	symbols  map[string]uint64
	entry    uint64
}

// Load parses path's ELF symbol table (both .symtab and .dynsym, the
// dynamic table first so a stripped binary still resolves exported
// dynamic symbols) and records the file's basename for argv[0] matching
// in the memory-map filter.
func Load(path string) (*Table, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: open %s: %w", path, err)
	}
	defer f.Close()

	t := &Table{
		Basename: filepath.Base(path),
		Machine:  f.Machine.String(),
		symbols:  make(map[string]uint64),
		entry:    f.Entry,
	}

	addSymbols := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC && elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
				continue
			}
			t.symbols[s.Name] = s.Value
		}
	}

	if dynsyms, err := f.DynamicSymbols(); err == nil {
		addSymbols(dynsyms)
	}
	if syms, err := f.Symbols(); err == nil {
		addSymbols(syms)
	}

	return t, nil
}

// Resolve returns the absolute address of a named function or object
// symbol. ok is false when the name is not present in either symbol
// table.
func (t *Table) Resolve(name string) (uint64, bool) {
	addr, ok := t.symbols[name]
	return addr, ok
}

// Entry returns the ELF entry point address.
func (t *Table) Entry() uint64 {
	return t.entry
}

// Count returns the number of resolved symbols, used by the CLI's info
// subcommand.
func (t *Table) Count() int {
	return len(t.symbols)
}
