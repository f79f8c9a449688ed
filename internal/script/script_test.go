package script

import (
	"net"
	"testing"

	"github.com/qtrace-dev/qtrace/internal/breakpoint"
	"github.com/qtrace-dev/qtrace/internal/rsp"
	"github.com/qtrace-dev/qtrace/internal/trace"
)

// fakeStub answers exactly the RSP exchanges rsp.Dial, the test's explicit
// FetchRegisters, and Context.Memory require, over an in-memory net.Pipe.
func fakeStub(t *testing.T, conn net.Conn) {
	t.Helper()

	readPacket := func() string {
		buf := make([]byte, 1)
		if _, err := conn.Read(buf); err != nil || buf[0] != '$' {
			return ""
		}
		var payload []byte
		for {
			b := make([]byte, 1)
			if _, err := conn.Read(b); err != nil {
				return ""
			}
			if b[0] == '#' {
				break
			}
			payload = append(payload, b[0])
		}
		csum := make([]byte, 2)
		conn.Read(csum)
		conn.Write([]byte("+"))
		return string(payload)
	}
	replyOK := func(payload string) {
		var sum int
		for _, b := range []byte(payload) {
			sum += int(b)
		}
		conn.Write([]byte("$" + payload + "#"))
		const hextable = "0123456789abcdef"
		conn.Write([]byte{hextable[(sum>>4)&0xf], hextable[sum&0xf]})
		ack := make([]byte, 1)
		conn.Read(ack)
	}

	// "g" register fetches (rsp.Dial's, then FetchRegisters'): rdi (6th in
	// AMD64Registers.Names) gets a distinctive value, everything else zero.
	readPacket()
	zero := ""
	for _, name := range rsp.AMD64Registers.Names {
		if name == "rdi" {
			zero += "2a00000000000000" // little-endian 0x2a
		} else {
			zero += "0000000000000000"
		}
	}
	replyOK(zero)
	readPacket()
	replyOK(zero)

	// "m<addr>,<len>" memory read of 2 bytes.
	readPacket()
	replyOK("cafe")
}

func TestHookReadsRegisterAndEmits(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeStub(t, server)

	dbg, err := rsp.Dial(client, rsp.AMD64Registers)
	if err != nil {
		t.Fatalf("rsp.Dial: %v", err)
	}
	if _, err := dbg.FetchRegisters(); err != nil {
		t.Fatalf("FetchRegisters: %v", err)
	}

	var log trace.Log
	ctx := breakpoint.NewContext(dbg, &log)

	cb, err := Hook(`emit("rdi", regs.get("rdi"))`)
	if err != nil {
		t.Fatalf("Hook: %v", err)
	}
	cb(ctx)

	events := log.FilterKind(trace.KindTest)
	if len(events) != 1 {
		t.Fatalf("got %d test events, want 1", len(events))
	}
	event := events[0].(trace.TestEvent)
	if event.Tag != "rdi" {
		t.Fatalf("emitted tag = %q, want %q", event.Tag, "rdi")
	}
	if event.Payload != int64(0x2a) {
		t.Fatalf("emitted payload = %v (%T), want 42", event.Payload, event.Payload)
	}
}

func TestHookReadsMemory(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeStub(t, server)

	dbg, err := rsp.Dial(client, rsp.AMD64Registers)
	if err != nil {
		t.Fatalf("rsp.Dial: %v", err)
	}
	if _, err := dbg.FetchRegisters(); err != nil {
		t.Fatalf("FetchRegisters: %v", err)
	}

	var log trace.Log
	ctx := breakpoint.NewContext(dbg, &log)

	cb, err := Hook(`emit("mem", mem.read(pc, 2))`)
	if err != nil {
		t.Fatalf("Hook: %v", err)
	}
	cb(ctx)

	events := log.FilterKind(trace.KindTest)
	if len(events) != 1 {
		t.Fatalf("got %d test events, want 1", len(events))
	}
}

func TestHookCompileError(t *testing.T) {
	if _, err := Hook("this is not valid javascript {{{"); err == nil {
		t.Fatal("expected a compile error")
	}
}
