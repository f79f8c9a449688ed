package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Reason: ReasonFull, NumAddrs: 3},
		{Reason: ReasonSyscallStart, NumAddrs: 0, SyscallNr: 1, StartArgs: [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}},
		{Reason: ReasonSyscallEnd, NumAddrs: 0, SyscallNr: 1, SyscallRet: -1},
		{Reason: ReasonAsync, NumAddrs: 9},
	}
	for _, want := range cases {
		buf := EncodeHeader(want)
		if len(buf) != HeaderSize {
			t.Fatalf("EncodeHeader: got %d bytes, want %d", len(buf), HeaderSize)
		}
		got, err := DecodeHeader(buf)
		if err != nil {
			t.Fatalf("DecodeHeader: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestReadHeaderUnknownReason(t *testing.T) {
	buf := EncodeHeader(Header{Reason: ReasonFull})
	buf[0] = 0xFF // corrupt reason to an unknown value
	_, err := DecodeHeader(buf)
	if err == nil {
		t.Fatal("expected error for unknown reason, got nil")
	}
}

func TestReadHeaderShortRead(t *testing.T) {
	full := EncodeHeader(Header{Reason: ReasonFull, NumAddrs: 1})
	r := bytes.NewReader(full[:HeaderSize-1])
	if _, err := ReadHeader(r); err == nil {
		t.Fatal("expected error on truncated header, got nil")
	}
}

func TestBasicBlocksRoundTrip(t *testing.T) {
	addrs := []uint64{0x400000, 0x400010, 0xdeadbeef}
	buf := EncodeBasicBlocks(addrs)
	got, err := ReadBasicBlocks(bytes.NewReader(buf), uint64(len(addrs)))
	if err != nil {
		t.Fatalf("ReadBasicBlocks: %v", err)
	}
	if len(got) != len(addrs) {
		t.Fatalf("got %d addrs, want %d", len(got), len(addrs))
	}
	for i := range addrs {
		if got[i] != addrs[i] {
			t.Fatalf("addr %d: got %#x, want %#x", i, got[i], addrs[i])
		}
	}
}

func TestReadBasicBlocksZero(t *testing.T) {
	got, err := ReadBasicBlocks(bytes.NewReader(nil), 0)
	if err != nil {
		t.Fatalf("ReadBasicBlocks(0): %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil slice for zero addrs, got %v", got)
	}
}

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCommand(&buf, CmdRequestFlush); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if buf.Len() != 8 {
		t.Fatalf("got %d bytes, want 8", buf.Len())
	}
	if buf.Bytes()[0] != byte(CmdRequestFlush) {
		t.Fatalf("got first byte %#x, want %#x", buf.Bytes()[0], CmdRequestFlush)
	}
}

func TestReasonString(t *testing.T) {
	if got := ReasonSyscallStart.String(); got != "syscall_start" {
		t.Fatalf("got %q, want %q", got, "syscall_start")
	}
}
