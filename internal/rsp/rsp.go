// Package rsp implements a minimal client for the emulator's debug-remote
// protocol (the gdbstub-style wire format): packet framing and checksum,
// register and memory fetch, software breakpoint install/remove, and the
// SIGTRAP dispatch loop that runs registered callbacks.
package rsp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sort"
	"time"
)

// RegisterSet names the registers a target architecture exposes, in the
// order the "g" command concatenates them, plus their wire width and
// endianness.
type RegisterSet struct {
	Names     []string
	BitWidth  int
	BigEndian bool
}

// AMD64Registers is the register set the "g" command's concatenated
// hex response decodes against for x86_64 guests.
var AMD64Registers = RegisterSet{
	Names: []string{
		"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"rip", "eflags", "cs", "ss", "ds", "es", "fs", "gs",
	},
	BitWidth:  64,
	BigEndian: false,
}

// Range is a half-open guest memory range, used by Memory.
type Range struct {
	Start, End uint64
}

func (r Range) Len() uint64 { return r.End - r.Start }

// Callback is invoked when a SIGTRAP stop is observed at the address it
// was registered for.
type Callback func()

// Client is a connected debug-remote-protocol session.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	regs   RegisterSet
	cached map[string]uint64
	breaks map[uint64][]Callback
	order  []uint64 // insertion order of breakpoint addresses, for deterministic Detach
	closed bool
}

// Dial wraps an already-connected TCP socket (the gdb-port connection
// made by internal/netconn) as a Client, fetching the initial register
// bank the way the original client's constructor does.
func Dial(conn net.Conn, regs RegisterSet) (*Client, error) {
	c := &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		regs:   regs,
		breaks: make(map[uint64][]Callback),
	}
	if _, err := c.FetchRegisters(); err != nil {
		return nil, fmt.Errorf("rsp: initial register fetch: %w", err)
	}
	return c, nil
}

func checksum(payload []byte) byte {
	var sum int
	for _, b := range payload {
		sum += int(b)
	}
	return byte(sum % 256)
}

// send writes a $<payload>#<checksum> packet and waits for the mandatory
// '+' acknowledgement.
func (c *Client) send(payload string) error {
	pkt := fmt.Sprintf("$%s#%02x", payload, checksum([]byte(payload)))
	if _, err := c.conn.Write([]byte(pkt)); err != nil {
		return fmt.Errorf("rsp: write packet: %w", err)
	}
	ack := make([]byte, 1)
	if _, err := io.ReadFull(c.r, ack); err != nil {
		return fmt.Errorf("rsp: read ack: %w", err)
	}
	if ack[0] != '+' {
		return fmt.Errorf("rsp: expected '+' ack, got %q", ack[0])
	}
	return nil
}

// readMarker reads the packet's leading '$'. When timeout is zero it
// blocks until the marker (or an error) arrives. When timeout is
// positive, it arms a read deadline first and treats an elapsed deadline
// with nothing received as "not ready yet" (ready=false, err=nil) rather
// than an error — the primitive TryAsyncRecv polls the debug socket with.
func (c *Client) readMarker(timeout time.Duration) (ready bool, err error) {
	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return false, fmt.Errorf("rsp: set read deadline: %w", err)
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}

	start := make([]byte, 1)
	if _, err := io.ReadFull(c.r, start); err != nil {
		if timeout > 0 {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return false, nil
			}
		}
		return false, fmt.Errorf("rsp: read start marker: %w", err)
	}
	if start[0] != '$' {
		return false, fmt.Errorf("rsp: expected '$', got %q", start[0])
	}
	return true, nil
}

// recv reads one $<payload>#<checksum> packet, verifies its checksum, acks
// it, and returns the payload. If ok is set, it additionally asserts the
// payload is exactly "OK".
func (c *Client) recv(ok bool) ([]byte, error) {
	if _, err := c.readMarker(0); err != nil {
		return nil, err
	}
	return c.readBody(ok)
}

// readBody reads the rest of a packet once its leading '$' has already
// been consumed by readMarker.
func (c *Client) readBody(ok bool) ([]byte, error) {
	var payload []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("rsp: read payload: %w", err)
		}
		if b == '#' {
			break
		}
		payload = append(payload, b)
	}

	csumHex := make([]byte, 2)
	if _, err := io.ReadFull(c.r, csumHex); err != nil {
		return nil, fmt.Errorf("rsp: read checksum: %w", err)
	}
	var got byte
	if _, err := fmt.Sscanf(string(csumHex), "%02x", &got); err != nil {
		return nil, fmt.Errorf("rsp: parse checksum: %w", err)
	}
	if want := checksum(payload); got != want {
		return nil, fmt.Errorf("rsp: checksum mismatch: got %#x, want %#x", got, want)
	}

	if _, err := c.conn.Write([]byte("+")); err != nil {
		return nil, fmt.Errorf("rsp: write ack: %w", err)
	}
	if ok && string(payload) != "OK" {
		return nil, fmt.Errorf("rsp: expected OK, got %q", payload)
	}
	return payload, nil
}

// FetchRegisters issues "g", decodes the fixed-width hex response against
// the client's RegisterSet, caches the result, and returns it.
func (c *Client) FetchRegisters() (map[string]uint64, error) {
	if err := c.send("g"); err != nil {
		return nil, err
	}
	payload, err := c.recv(false)
	if err != nil {
		return nil, fmt.Errorf("rsp: fetch registers: %w", err)
	}

	hexLen := c.regs.BitWidth / 4
	regs := make(map[string]uint64, len(c.regs.Names))
	for i, name := range c.regs.Names {
		lo, hi := i*hexLen, (i+1)*hexLen
		if hi > len(payload) {
			return nil, fmt.Errorf("rsp: register response too short for %s", name)
		}
		v, err := decodeHexWord(payload[lo:hi], c.regs.BigEndian)
		if err != nil {
			return nil, fmt.Errorf("rsp: decode register %s: %w", name, err)
		}
		regs[name] = v
	}
	c.cached = regs
	return regs, nil
}

// decodeHexWord decodes a run of hex-encoded bytes into a uint64 honoring
// the target's byte order, matching the original client's byte-at-a-time
// int.from_bytes behavior.
func decodeHexWord(hexBytes []byte, bigEndian bool) (uint64, error) {
	if len(hexBytes)%2 != 0 {
		return 0, fmt.Errorf("odd hex length %d", len(hexBytes))
	}
	n := len(hexBytes) / 2
	raw := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		if _, err := fmt.Sscanf(string(hexBytes[i*2:i*2+2]), "%02x", &b); err != nil {
			return 0, err
		}
		raw[i] = b
	}
	var v uint64
	if bigEndian {
		for _, b := range raw {
			v = v<<8 | uint64(b)
		}
	} else {
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
	}
	return v, nil
}

// Register returns a cached register value by name, as fetched by the
// most recent FetchRegisters call.
func (c *Client) Register(name string) (uint64, bool) {
	v, ok := c.cached[name]
	return v, ok
}

// PC returns the cached instruction-pointer register ("rip" on amd64).
func (c *Client) PC() uint64 {
	v, _ := c.Register("rip")
	return v
}

// Memory fetches length bytes of guest memory starting at rng.Start.
func (c *Client) Memory(rng Range) ([]byte, error) {
	if err := c.send(fmt.Sprintf("m%x,%x", rng.Start, rng.Len())); err != nil {
		return nil, err
	}
	payload, err := c.recv(false)
	if err != nil {
		return nil, fmt.Errorf("rsp: fetch memory: %w", err)
	}
	out := make([]byte, len(payload)/2)
	for i := range out {
		if _, err := fmt.Sscanf(string(payload[i*2:i*2+2]), "%02x", &out[i]); err != nil {
			return nil, fmt.Errorf("rsp: decode memory byte %d: %w", i, err)
		}
	}
	return out, nil
}

// AddBreakpoint registers cb to run when the guest traps at addr. The
// first callback at a given address installs a software breakpoint
// ("Z0"); later callbacks at the same address just extend the list.
func (c *Client) AddBreakpoint(addr uint64, cb Callback) error {
	if _, exists := c.breaks[addr]; !exists {
		if err := c.send(fmt.Sprintf("Z0,%x,2", addr)); err != nil {
			return err
		}
		if _, err := c.recv(true); err != nil {
			return fmt.Errorf("rsp: install breakpoint at %#x: %w", addr, err)
		}
		c.order = append(c.order, addr)
	}
	c.breaks[addr] = append(c.breaks[addr], cb)
	return nil
}

// Step issues a single-step and asserts the expected SIGTRAP stop reply.
func (c *Client) Step() error {
	if err := c.send("s"); err != nil {
		return err
	}
	payload, err := c.recv(false)
	if err != nil {
		return fmt.Errorf("rsp: step: %w", err)
	}
	if string(payload) != "S05" {
		return fmt.Errorf("rsp: step: expected S05, got %q", payload)
	}
	return nil
}

// AsyncContinue issues "c" and returns immediately without waiting for a
// reply; the eventual stop reply is observed later via AsyncRecv.
func (c *Client) AsyncContinue() error {
	return c.send("c")
}

// AsyncRecv reads one pending stop-reply packet. It returns (true, nil) if
// the reply was a SIGTRAP that was fully dispatched (callbacks run, single
// stepped past, and continue re-issued), or (false, nil) if the reply was
// a process-exit notification ("W<xx>"), in which case exitCode holds the
// guest's exit status and the client should be dropped from the
// multiplexer's readiness set. Any other payload is a protocol error.
func (c *Client) AsyncRecv() (sigtrap bool, exitCode int, err error) {
	payload, err := c.recv(false)
	if err != nil {
		return false, 0, fmt.Errorf("rsp: async recv: %w", err)
	}
	return c.dispatchStopReply(payload)
}

// TryAsyncRecv is AsyncRecv with a bounded wait for the stop reply to
// arrive: ready is false (with err nil) if nothing was available within
// pollTimeout, matching the readiness-poll contract of wire.PollHeader so
// the event multiplexer can interleave both sockets from one goroutine.
func (c *Client) TryAsyncRecv(pollTimeout time.Duration) (ready, sigtrap bool, exitCode int, err error) {
	ready, err = c.readMarker(pollTimeout)
	if err != nil || !ready {
		return false, false, 0, err
	}
	payload, err := c.readBody(false)
	if err != nil {
		return true, false, 0, fmt.Errorf("rsp: async recv: %w", err)
	}
	sigtrap, exitCode, err = c.dispatchStopReply(payload)
	return true, sigtrap, exitCode, err
}

// dispatchStopReply interprets an already-received stop-reply payload:
// "W<xx>" is a process-exit notification, "S05" triggers SIGTRAP
// dispatch. Anything else is a protocol error.
func (c *Client) dispatchStopReply(payload []byte) (sigtrap bool, exitCode int, err error) {
	switch {
	case len(payload) == 3 && payload[0] == 'W':
		var code int
		if _, err := fmt.Sscanf(string(payload[1:]), "%02x", &code); err != nil {
			return false, 0, fmt.Errorf("rsp: parse exit code: %w", err)
		}
		c.closed = true
		return false, code, nil
	case len(payload) == 3 && payload[0] == 'S':
		var code int
		if _, err := fmt.Sscanf(string(payload[1:]), "%02x", &code); err != nil {
			return false, 0, fmt.Errorf("rsp: parse signal: %w", err)
		}
		if code != 5 {
			return false, 0, fmt.Errorf("rsp: unexpected stop signal %d", code)
		}
		if err := c.handleSigtrap(); err != nil {
			return false, 0, err
		}
		return true, 0, nil
	default:
		return false, 0, fmt.Errorf("rsp: unknown stop reply %q", payload)
	}
}

// handleSigtrap implements SIGTRAP dispatch: refresh registers, find the
// callbacks registered at the current PC (there must be at least one),
// run them in registration order, single-step past the breakpoint
// instruction, and resume asynchronous execution.
func (c *Client) handleSigtrap() error {
	if _, err := c.FetchRegisters(); err != nil {
		return fmt.Errorf("rsp: sigtrap: refresh registers: %w", err)
	}
	pc := c.PC()
	cbs := c.breaks[pc]
	if len(cbs) == 0 {
		return fmt.Errorf("rsp: sigtrap at %#x with no registered callback", pc)
	}
	for _, cb := range cbs {
		cb()
	}
	if err := c.Step(); err != nil {
		return fmt.Errorf("rsp: sigtrap: step: %w", err)
	}
	return c.AsyncContinue()
}

// Detach removes every installed breakpoint, sends "D", asserts "OK", and
// closes the underlying connection.
func (c *Client) Detach() error {
	addrs := append([]uint64(nil), c.order...)
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		if err := c.send(fmt.Sprintf("z0,%x,2", addr)); err != nil {
			return err
		}
		if _, err := c.recv(true); err != nil {
			return fmt.Errorf("rsp: remove breakpoint at %#x: %w", addr, err)
		}
	}
	if err := c.send("D"); err != nil {
		return err
	}
	if _, err := c.recv(true); err != nil {
		return fmt.Errorf("rsp: detach: %w", err)
	}
	return c.conn.Close()
}
