package main

import (
	"fmt"
	"os"

	"github.com/qtrace-dev/qtrace/internal/colorize"
	"github.com/qtrace-dev/qtrace/internal/qlog"
	"github.com/qtrace-dev/qtrace/internal/ui"
)

// cliSink is the logging variant of machine.Sink spec.md §4.F describes:
// it mirrors guest output to the host's own stdout/stderr, prints a
// colorized one-line syscall description, and feeds the live counters.
type cliSink struct {
	logger   *qlog.Logger
	counters *ui.Counters
	quiet    bool
}

func newCLISink(logger *qlog.Logger, counters *ui.Counters, quiet bool) *cliSink {
	return &cliSink{logger: logger, counters: counters, quiet: quiet}
}

func (s *cliSink) BasicBlocks(addrs []uint64) {
	for range addrs {
		s.counters.IncBB()
	}
	if s.quiet {
		return
	}
	for _, a := range addrs {
		s.logger.Debug(colorize.BB(a))
	}
}

func (s *cliSink) SyscallStart(nr int64, args []uint64, description string) {
	s.counters.IncSyscall()
	if s.quiet {
		return
	}
	s.logger.Syscall("start", nr, description)
	fmt.Fprintln(os.Stderr, colorize.Syscall(description))
}

func (s *cliSink) SyscallEnd(nr int64, ret int64, description string) {
	if s.quiet {
		return
	}
	s.logger.Syscall("end", nr, description)
}

func (s *cliSink) Output(fd int, data []byte) {
	s.counters.IncOutput()
	if fd == 2 {
		os.Stderr.Write(data)
	} else {
		os.Stdout.Write(data)
	}
}
