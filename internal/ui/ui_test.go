package ui

import (
	"testing"
	"time"
)

func TestCountersSnapshot(t *testing.T) {
	c := NewCounters()
	c.IncBB()
	c.IncBB()
	c.IncSyscall()
	c.IncOutput()
	c.IncOutput()
	c.IncOutput()

	bb, sys, out, elapsed := c.Snapshot()
	if bb != 2 {
		t.Errorf("basicBlocks = %d, want 2", bb)
	}
	if sys != 1 {
		t.Errorf("syscalls = %d, want 1", sys)
	}
	if out != 3 {
		t.Errorf("outputs = %d, want 3", out)
	}
	if elapsed < 0 {
		t.Errorf("elapsed = %v, want non-negative", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("elapsed = %v, suspiciously large for a fresh Counters", elapsed)
	}
}
