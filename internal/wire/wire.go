// Package wire implements the trace plugin's binary framing: the
// fixed-size trace header, the variable-length basic-block address array
// that follows it, and the control commands the host writes back.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// Reason discriminates the kind of trace frame the plugin sent.
type Reason uint32

const (
	ReasonFull         Reason = 0
	ReasonSyscallStart Reason = 1
	ReasonSyscallEnd   Reason = 2
	ReasonAsync        Reason = 3
)

func (r Reason) String() string {
	switch r {
	case ReasonFull:
		return "full"
	case ReasonSyscallStart:
		return "syscall_start"
	case ReasonSyscallEnd:
		return "syscall_end"
	case ReasonAsync:
		return "async"
	default:
		return fmt.Sprintf("reason(%d)", uint32(r))
	}
}

// Valid reports whether r is one of the four known frame reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonFull, ReasonSyscallStart, ReasonSyscallEnd, ReasonAsync:
		return true
	default:
		return false
	}
}

// Command is a control command the host writes to the plugin as a single
// little-endian uint64.
type Command uint64

const (
	CmdACK           Command = 0
	CmdRequestFlush  Command = 1
	CmdRequestMaps   Command = 2
)

// HeaderSize is the fixed wire size of Header. The plugin emits this as a C
// struct { uint reason; uint64_t num_addrs; struct { int64_t syscall_nr;
// union { uint64_t start_args[8]; int64_t ret; } data; } info; }; the
// natural alignment of num_addrs pads reason out to 8 bytes, giving
// 8 (reason+pad) + 8 (num_addrs) + 8 (syscall_nr) + 64 (union) = 88 bytes.
// The sender always writes the full-width union regardless of reason.
const (
	reasonFieldSize = 8 // uint32 reason plus its alignment padding
	numAddrsSize    = 8
	syscallNrSize   = 8
	unionSize       = 64 // u64[8]
	HeaderSize      = reasonFieldSize + numAddrsSize + syscallNrSize + unionSize
)

// Header is the fixed-size preamble of a trace frame.
type Header struct {
	Reason     Reason
	NumAddrs   uint64
	SyscallNr  int64
	StartArgs  [8]uint64 // valid when Reason == ReasonSyscallStart
	SyscallRet int64     // valid when Reason == ReasonSyscallEnd
}

// ReadHeader reads exactly HeaderSize bytes from r ("read-all" semantics:
// it blocks until the full header has arrived or returns an error) and
// decodes it. It validates Reason and returns an error for an unknown
// value, per the codec's sole-authority-over-framing contract.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("wire: read header: %w", err)
	}
	return DecodeHeader(buf[:])
}

// DecodeHeader decodes a HeaderSize-byte buffer into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	var h Header
	h.Reason = Reason(binary.LittleEndian.Uint32(buf[0:4]))
	if !h.Reason.Valid() {
		return Header{}, fmt.Errorf("wire: unknown reason %d", uint32(h.Reason))
	}
	h.NumAddrs = binary.LittleEndian.Uint64(buf[8:16])
	h.SyscallNr = int64(binary.LittleEndian.Uint64(buf[16:24]))

	union := buf[24:88]
	switch h.Reason {
	case ReasonSyscallStart:
		for i := 0; i < 8; i++ {
			h.StartArgs[i] = binary.LittleEndian.Uint64(union[i*8 : i*8+8])
		}
	case ReasonSyscallEnd:
		h.SyscallRet = int64(binary.LittleEndian.Uint64(union[0:8]))
	}
	return h, nil
}

// EncodeHeader is the inverse of DecodeHeader, used by tests and the fake
// plugin to construct wire-accurate frames.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Reason))
	binary.LittleEndian.PutUint64(buf[8:16], h.NumAddrs)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.SyscallNr))

	union := buf[24:88]
	switch h.Reason {
	case ReasonSyscallStart:
		for i := 0; i < 8; i++ {
			binary.LittleEndian.PutUint64(union[i*8:i*8+8], h.StartArgs[i])
		}
	case ReasonSyscallEnd:
		binary.LittleEndian.PutUint64(union[0:8], uint64(h.SyscallRet))
	}
	return buf
}

// ReadBasicBlocks reads the NumAddrs little-endian u64 basic-block
// addresses following a header, blocking until all of them have arrived.
func ReadBasicBlocks(r io.Reader, numAddrs uint64) ([]uint64, error) {
	if numAddrs == 0 {
		return nil, nil
	}
	buf := make([]byte, numAddrs*8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: read basic blocks: %w", err)
	}
	addrs := make([]uint64, numAddrs)
	for i := range addrs {
		addrs[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return addrs, nil
}

// EncodeBasicBlocks is the inverse of ReadBasicBlocks.
func EncodeBasicBlocks(addrs []uint64) []byte {
	buf := make([]byte, len(addrs)*8)
	for i, a := range addrs {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], a)
	}
	return buf
}

// PollHeader is ReadHeader with a bounded wait: it arms a read deadline of
// timeout, attempts to read the frame's first byte, and treats a timeout
// with nothing received as "no frame yet" (ready=false, err=nil) rather
// than an error. Once the first byte has arrived the frame is committed —
// the remainder is read with the deadline cleared, honoring the codec's
// blocking "read-exactly" contract for the rest of the header. This is
// the primitive the event multiplexer polls the trace socket with inside
// its single-goroutine readiness loop.
func PollHeader(conn net.Conn, timeout time.Duration) (h Header, ready bool, err error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Header{}, false, fmt.Errorf("wire: set read deadline: %w", err)
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	var first [1]byte
	if _, err := io.ReadFull(conn, first[:]); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Header{}, false, nil
		}
		return Header{}, false, fmt.Errorf("wire: read header: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	rest := make([]byte, HeaderSize-1)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return Header{}, false, fmt.Errorf("wire: read header: %w", err)
	}

	buf := append([]byte{first[0]}, rest...)
	h, err = DecodeHeader(buf)
	if err != nil {
		return Header{}, false, err
	}
	return h, true, nil
}

// WriteCommand writes a single little-endian uint64 control command to w.
func WriteCommand(w io.Writer, cmd Command) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(cmd))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("wire: write command: %w", err)
	}
	return nil
}
