package main

import (
	"fmt"

	"github.com/qtrace-dev/qtrace/internal/machine"
	"github.com/qtrace-dev/qtrace/internal/trace"
	"github.com/qtrace-dev/qtrace/internal/ui"
)

// printSummary prints the static completion lines spec.md §6 names:
// "Traced <N> <kind> (<U> unique)" per kind, then "Took <T>s".
func printSummary(m *machine.Machine, counters *ui.Counters) {
	log := m.Log()

	bbs := log.FilterKind(trace.KindBB)
	uniqueBB := make(map[uint64]struct{}, len(bbs))
	for _, e := range bbs {
		uniqueBB[e.(trace.BBEvent).Addr] = struct{}{}
	}

	starts := log.FilterKind(trace.KindSyscallStart)
	uniqueSyscalls := make(map[int64]struct{}, len(starts))
	for _, e := range starts {
		uniqueSyscalls[e.(trace.SyscallStartEvent).Nr] = struct{}{}
	}

	outputs := log.FilterKind(trace.KindOutput)
	uniqueFDs := make(map[int]struct{}, 2)
	for _, e := range outputs {
		uniqueFDs[e.(trace.OutputEvent).FD] = struct{}{}
	}

	fmt.Printf("Traced %d basic blocks (%d unique)\n", len(bbs), len(uniqueBB))
	fmt.Printf("Traced %d syscalls (%d unique)\n", len(starts), len(uniqueSyscalls))
	fmt.Printf("Traced %d outputs (%d unique)\n", len(outputs), len(uniqueFDs))

	_, _, _, elapsed := counters.Snapshot()
	fmt.Printf("Took %.3fs\n", elapsed.Seconds())
}
