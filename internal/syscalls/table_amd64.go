package syscalls

// amd64Table is a subset of the Linux x86_64 syscall table: the numbers
// and argument names a typical traced guest (a dynamically linked ELF
// binary under glibc) actually exercises during startup, I/O and exit.
// Unlisted numbers fall back to the numeric placeholder in Name.
var amd64Table = map[int64]Def{
	0:   {"read", []string{"fd", "buf", "count"}},
	1:   {"write", []string{"fd", "buf", "count"}},
	2:   {"open", []string{"pathname", "flags", "mode"}},
	3:   {"close", []string{"fd"}},
	4:   {"stat", []string{"pathname", "statbuf"}},
	5:   {"fstat", []string{"fd", "statbuf"}},
	6:   {"lstat", []string{"pathname", "statbuf"}},
	8:   {"lseek", []string{"fd", "offset", "whence"}},
	9:   {"mmap", []string{"addr", "length", "prot", "flags", "fd", "offset"}},
	10:  {"mprotect", []string{"addr", "length", "prot"}},
	11:  {"munmap", []string{"addr", "length"}},
	12:  {"brk", []string{"addr"}},
	13:  {"rt_sigaction", []string{"signum", "act", "oldact", "sigsetsize"}},
	14:  {"rt_sigprocmask", []string{"how", "set", "oldset", "sigsetsize"}},
	16:  {"ioctl", []string{"fd", "request", "arg"}},
	21:  {"access", []string{"pathname", "mode"}},
	39:  {"getpid", nil},
	60:  {"exit", []string{"status"}},
	63:  {"uname", []string{"buf"}},
	89:  {"readlink", []string{"pathname", "buf", "bufsiz"}},
	97:  {"getrlimit", []string{"resource", "rlim"}},
	102: {"getuid", nil},
	104: {"getgid", nil},
	107: {"geteuid", nil},
	108: {"getegid", nil},
	158: {"arch_prctl", []string{"code", "addr"}},
	186: {"gettid", nil},
	202: {"futex", []string{"uaddr", "futex_op", "val", "timeout", "uaddr2", "val3"}},
	218: {"set_tid_address", []string{"tidptr"}},
	231: {"exit_group", []string{"status"}},
	257: {"openat", []string{"dirfd", "pathname", "flags", "mode"}},
	262: {"newfstatat", []string{"dirfd", "pathname", "statbuf", "flags"}},
	273: {"set_robust_list", []string{"head", "len"}},
	302: {"prlimit64", []string{"pid", "resource", "new_limit", "old_limit"}},
	318: {"getrandom", []string{"buf", "buflen", "flags"}},
	334: {"rseq", []string{"rseq", "rseq_len", "flags", "sig"}},
}
