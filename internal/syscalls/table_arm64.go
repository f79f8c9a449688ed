package syscalls

// arm64Table is a subset of the Linux AArch64 generic syscall table (the
// numbers differ from amd64 even where the call is identical in meaning).
var arm64Table = map[int64]Def{
	56:  {"openat", []string{"dirfd", "pathname", "flags", "mode"}},
	57:  {"close", []string{"fd"}},
	63:  {"read", []string{"fd", "buf", "count"}},
	64:  {"write", []string{"fd", "buf", "count"}},
	78:  {"readlinkat", []string{"dirfd", "pathname", "buf", "bufsiz"}},
	79:  {"newfstatat", []string{"dirfd", "pathname", "statbuf", "flags"}},
	80:  {"fstat", []string{"fd", "statbuf"}},
	93:  {"exit", []string{"status"}},
	94:  {"exit_group", []string{"status"}},
	96:  {"set_tid_address", []string{"tidptr"}},
	99:  {"set_robust_list", []string{"head", "len"}},
	113: {"clock_gettime", []string{"clk_id", "tp"}},
	131: {"tgkill", []string{"tgid", "tid", "sig"}},
	134: {"rt_sigaction", []string{"signum", "act", "oldact", "sigsetsize"}},
	135: {"rt_sigprocmask", []string{"how", "set", "oldset", "sigsetsize"}},
	160: {"uname", []string{"buf"}},
	172: {"getpid", nil},
	178: {"gettid", nil},
	174: {"getuid", nil},
	177: {"getegid", nil},
	214: {"brk", []string{"addr"}},
	215: {"munmap", []string{"addr", "length"}},
	222: {"mmap", []string{"addr", "length", "prot", "flags", "fd", "offset"}},
	226: {"mprotect", []string{"addr", "length", "prot"}},
	278: {"getrandom", []string{"buf", "buflen", "flags"}},
	293: {"rseq", []string{"rseq", "rseq_len", "flags", "sig"}},
	98:  {"futex", []string{"uaddr", "futex_op", "val", "timeout", "uaddr2", "val3"}},
}

var tables = map[Arch]map[int64]Def{
	ArchAMD64: amd64Table,
	ArchARM64: arm64Table,
}
