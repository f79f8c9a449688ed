// Package colorize formats qtrace's human-readable lines — syscall
// descriptions, basic-block and output markers — as ANSI-colored text
// unless disabled through the environment (see IsDisabled; whether output
// is a terminal is not checked), using the same chroma-based pipeline the
// teacher used for disassembly, pointed instead at a syscall
// description's C-call-like syntax (e.g. "write(fd=1, buf=0x7f.., count=13)").
package colorize

import (
	"bytes"
	"os"
	"strconv"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// IsDisabled reports whether colorized output should be suppressed, per
// the usual environment-variable conventions.
func IsDisabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	if os.Getenv("QTRACE_NO_COLOR") != "" {
		return true
	}
	return false
}

var descStyle = styles.Get("monokai")

// Syscall colorizes a human-readable syscall description line by lexing
// it as C (a syscall description reads as a C function call) and
// formatting with a terminal-256 formatter.
func Syscall(description string) string {
	if IsDisabled() {
		return description
	}
	lexer := lexers.Get("c")
	if lexer == nil {
		return description
	}
	iterator, err := lexer.Tokenise(nil, description)
	if err != nil {
		return description
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return description
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, descStyle, iterator); err != nil {
		return description
	}
	return buf.String()
}

const (
	ansiReset = "\x1b[0m"
)

func wrap(code, s string) string {
	if IsDisabled() {
		return s
	}
	return "\x1b[" + code + "m" + s + ansiReset
}

// BB colorizes a basic-block address marker.
func BB(addr uint64) string {
	return wrap("38;5;39", "bb:"+hex(addr))
}

// Output colorizes a stdout/stderr marker tag.
func Output(fd int) string {
	if fd == 2 {
		return wrap("38;5;203", "stderr")
	}
	return wrap("38;5;107", "stdout")
}

// Fatal colorizes a fatal-error prefix.
func Fatal(msg string) string {
	return wrap("1;38;5;196", msg)
}

// Token exposes chroma's token kind coloring for a single lexical
// category, for coloring text outside of full Syscall lines.
func Token(kind chroma.TokenType, s string) string {
	if IsDisabled() {
		return s
	}
	style := descStyle.Get(kind)
	if style.Colour.IsSet() {
		return wrap("38;2;"+colourTriplet(style.Colour), s)
	}
	return s
}

func colourTriplet(c chroma.Colour) string {
	return strconv.Itoa(int(c.Red())) + ";" + strconv.Itoa(int(c.Green())) + ";" + strconv.Itoa(int(c.Blue()))
}

func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
