// Package trace defines the tagged event log produced by a traced run.
package trace

// Kind discriminates the concrete type of an Event.
type Kind string

// Event kinds, matching the tags of the original event log.
const (
	KindBB           Kind = "bb"
	KindSyscallStart Kind = "syscall_start"
	KindSyscallEnd   Kind = "syscall_end"
	KindOutput       Kind = "output"
	KindTest         Kind = "test"
	KindExit         Kind = "exit"
)

// Event is implemented by every concrete event variant. The Kind method is
// the discriminant a type switch or Log.Filter uses; callers that need the
// payload type-assert to the concrete type.
type Event interface {
	Kind() Kind
}

// BBEvent records entry into a basic block at a guest virtual address.
type BBEvent struct {
	Addr uint64
}

func (BBEvent) Kind() Kind { return KindBB }

// SyscallStartEvent records syscall entry: the raw register-sized argument
// values, truncated to the arity the syscall table reports for Nr.
type SyscallStartEvent struct {
	Nr   int64
	Args []uint64
}

func (SyscallStartEvent) Kind() Kind { return KindSyscallStart }

// SyscallEndEvent records a syscall's signed return value.
type SyscallEndEvent struct {
	Nr  int64
	Ret int64
}

func (SyscallEndEvent) Kind() Kind { return KindSyscallEnd }

// OutputEvent records bytes written by the guest to fd 1 or 2, in arrival
// order within that channel.
type OutputEvent struct {
	FD    int
	Bytes []byte
}

func (OutputEvent) Kind() Kind { return KindOutput }

// TestEvent is a user-defined payload produced by a breakpoint callback,
// carrying the caller's own tag alongside the opaque value. The core never
// inspects Tag or Payload; callers type-assert and switch on Tag
// themselves.
type TestEvent struct {
	Tag     string
	Payload any
}

func (TestEvent) Kind() Kind { return KindTest }

// ExitEvent is the terminal event surfaced when the gdbstub reports the
// guest process exited (stop reply "W<xx>"). The original implementation
// observes this only to end its receive loop; here it is preserved on the
// log per the Open Question in the specification's design notes.
type ExitEvent struct {
	Code int
}

func (ExitEvent) Kind() Kind { return KindExit }

// Log is an ordered, append-only sequence of events.
type Log struct {
	events []Event
}

// Append adds an event to the end of the log.
func (l *Log) Append(e Event) {
	l.events = append(l.events, e)
}

// Len returns the number of events currently in the log.
func (l *Log) Len() int {
	return len(l.events)
}

// All returns the full event log in arrival order. The returned slice must
// not be mutated by the caller.
func (l *Log) All() []Event {
	return l.events
}

// Filter returns every event for which pred returns true, in arrival order.
func (l *Log) Filter(pred func(Event) bool) []Event {
	var out []Event
	for _, e := range l.events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterKind is a convenience over Filter for the common case of matching a
// single Kind.
func (l *Log) FilterKind(k Kind) []Event {
	return l.Filter(func(e Event) bool { return e.Kind() == k })
}
