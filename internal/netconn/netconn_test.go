package netconn

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialSucceedsOnceListenerIsUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), 5, time.Millisecond)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}

func TestDialExhaustsAttempts(t *testing.T) {
	// Port 1 has no listener here; Dial should give up after attempts with an
	// error rather than retrying forever.
	_, err := Dial(context.Background(), "127.0.0.1:1", 2, time.Millisecond)
	if err == nil {
		t.Fatal("expected error dialing an unreachable address, got nil")
	}
}

func TestDialRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dial(ctx, "127.0.0.1:1", 10, time.Millisecond)
	if err == nil {
		t.Fatal("expected error for canceled context, got nil")
	}
}
