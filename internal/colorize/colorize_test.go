package colorize

import (
	"os"
	"strings"
	"testing"
)

func TestIsDisabledRespectsNoColor(t *testing.T) {
	old := os.Getenv("NO_COLOR")
	defer os.Setenv("NO_COLOR", old)

	os.Setenv("NO_COLOR", "1")
	if !IsDisabled() {
		t.Error("NO_COLOR=1 should disable colorized output")
	}

	os.Unsetenv("NO_COLOR")
	os.Unsetenv("QTRACE_NO_COLOR")
	if IsDisabled() {
		t.Error("with no env vars set, colorized output should not be disabled")
	}
}

func TestSyscallPassesThroughWhenDisabled(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	desc := `write(fd=1, buf=0x7ffee380, n=13)`
	if got := Syscall(desc); got != desc {
		t.Errorf("Syscall() = %q, want unchanged %q", got, desc)
	}
}

func TestSyscallColorizesWhenEnabled(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	os.Unsetenv("QTRACE_NO_COLOR")

	desc := `write(fd=1, buf=0x7ffee380, n=13)`
	got := Syscall(desc)
	if !strings.Contains(got, "write") {
		t.Errorf("Syscall() output lost the original text: %q", got)
	}
	if got == desc {
		t.Error("expected Syscall() to add ANSI escapes when color is enabled")
	}
}

func TestBBAndOutputAndFatalWrapWhenEnabled(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	os.Unsetenv("QTRACE_NO_COLOR")

	if got := BB(0x401000); !strings.Contains(got, "0x401000") {
		t.Errorf("BB() = %q, want it to contain the address", got)
	}
	if got := Output(2); !strings.Contains(got, "stderr") {
		t.Errorf("Output(2) = %q, want it to contain stderr", got)
	}
	if got := Output(1); !strings.Contains(got, "stdout") {
		t.Errorf("Output(1) = %q, want it to contain stdout", got)
	}
	if got := Fatal("boom"); !strings.Contains(got, "boom") {
		t.Errorf("Fatal() = %q, want it to contain the message", got)
	}
}
