// Package syscalls maps (arch, syscall number) to a name and formal
// argument list, and formats a human-readable description for a call.
package syscalls

import "fmt"

// Arch selects which syscall table to consult.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// Def is one syscall's static definition: its name and the names of its
// formal arguments, in order. len(Args) is the arity the decoder truncates
// the raw register union to.
type Def struct {
	Name string
	Args []string
}

// Arity returns len(Args), the number of argument words the table says
// this syscall consumes.
func (d Def) Arity() int {
	return len(d.Args)
}

// Lookup returns the definition for (arch, nr). ok is false for an
// unrecognized number, in which case callers fall back to a numeric
// placeholder name.
func Lookup(arch Arch, nr int64) (Def, bool) {
	table, ok := tables[arch]
	if !ok {
		return Def{}, false
	}
	d, ok := table[nr]
	return d, ok
}

// Name returns the syscall's name, or a numeric placeholder when nr is
// not in the table for arch.
func Name(arch Arch, nr int64) string {
	if d, ok := Lookup(arch, nr); ok {
		return d.Name
	}
	return fmt.Sprintf("syscall_%d", nr)
}

// Describe formats a human-readable call description, e.g.
// "write(fd=1, buf=0x7ffee3801000, count=13)", from the raw argument words captured at
// syscall entry. args is already truncated to the table's reported arity
// by the caller (internal/machine); Describe re-derives names from the
// table purely for formatting and does not itself truncate.
func Describe(arch Arch, nr int64, args []uint64) string {
	def, ok := Lookup(arch, nr)
	name := Name(arch, nr)
	if !ok {
		return fmt.Sprintf("%s(%s)", name, formatArgs(nil, args))
	}
	return fmt.Sprintf("%s(%s)", name, formatArgs(def.Args, args))
}

// DescribeReturn formats a signed syscall return value the way the table
// expects: small magnitudes in decimal (including small negatives, the
// conventional -errno encoding), anything larger in hex.
func DescribeReturn(ret int64) string {
	if ret >= -4096 && ret < 1<<20 {
		return fmt.Sprintf("%d", ret)
	}
	return fmt.Sprintf("%#x", uint64(ret))
}

func formatArgs(names []string, args []uint64) string {
	out := ""
	for i, v := range args {
		if i > 0 {
			out += ", "
		}
		if i < len(names) {
			out += fmt.Sprintf("%s=%s", names[i], formatArg(v))
		} else {
			out += formatArg(v)
		}
	}
	return out
}

// formatArg renders a single raw argument word: small values in decimal,
// larger ones in hex (the common case of a pointer or flags bitmask).
func formatArg(v uint64) string {
	if v < 1<<16 {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%#x", v)
}
