package machine

// Sink is the customization point the original implementation exposed as
// overridable virtual hooks (on_basic_blocks/on_syscall_start/
// on_syscall_end/on_output). Protocol correctness — appending to the
// event log and ACKing the plugin — always happens inside the Machine
// core; a Sink only observes the same data for presentation, mirroring
// the teacher's Logger.onTrace callback-field idiom rather than a virtual
// method a subclass overrides. A nil Sink means "no extra side effect",
// the default-hooks behavior.
type Sink interface {
	BasicBlocks(addrs []uint64)
	SyscallStart(nr int64, args []uint64, description string)
	SyscallEnd(nr int64, ret int64, description string)
	Output(fd int, data []byte)
}
