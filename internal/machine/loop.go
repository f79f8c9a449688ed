package machine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/qtrace-dev/qtrace/internal/syscalls"
	"github.com/qtrace-dev/qtrace/internal/trace"
	"github.com/qtrace-dev/qtrace/internal/wire"
)

// outputChunk is one best-effort read from a stdout/stderr pipe, carried
// from its dedicated reader goroutine to the multiplex loop. Reading the
// pipes off the main goroutine is safe because output delivery never
// touches protocol state (the trace socket, the debug client, or the
// skip-bb latch) — only the event log, which the main loop alone appends
// to upon receiving a chunk.
type outputChunk struct {
	fd   int
	data []byte
	err  error
}

// multiplex is the event multiplexer (component E): a single-goroutine
// readiness loop over the trace socket, the debug socket, and the
// stdout/stderr pipes, terminating when all four sources have gone
// inactive.
func (m *Machine) multiplex() error {
	m.state = StateRunning

	stdoutCh := startPipeReader(1, m.proc.Stdout)
	stderrCh := startPipeReader(2, m.proc.Stderr)

	traceActive := true
	dbgActive := true
	stdoutActive := true
	stderrActive := true

	for traceActive || dbgActive || stdoutActive || stderrActive {
		select {
		case chunk, ok := <-stdoutCh:
			if !ok {
				stdoutActive = false
				stdoutCh = nil
				continue
			}
			if chunk.err != nil || len(chunk.data) == 0 {
				stdoutActive = false
				stdoutCh = nil
				continue
			}
			m.dispatchOutput(1, chunk.data)
			continue
		case chunk, ok := <-stderrCh:
			if !ok {
				stderrActive = false
				stderrCh = nil
				continue
			}
			if chunk.err != nil || len(chunk.data) == 0 {
				stderrActive = false
				stderrCh = nil
				continue
			}
			m.dispatchOutput(2, chunk.data)
			continue
		default:
		}

		if traceActive {
			h, ready, err := wire.PollHeader(m.traceConn, pollInterval)
			switch {
			case err != nil && errors.Is(err, io.EOF):
				traceActive = false
			case err != nil:
				return fmt.Errorf("machine: trace socket: %w", err)
			case ready:
				if _, err := m.handleTraceFrame(h); err != nil {
					return err
				}
			}
		}

		if dbgActive {
			ready, sigtrap, exitCode, err := m.dbg.TryAsyncRecv(pollInterval)
			if err != nil {
				return fmt.Errorf("machine: debug socket: %w", err)
			}
			if ready && !sigtrap {
				dbgActive = false
				m.log.Append(trace.ExitEvent{Code: exitCode})
			}
			if m.pendingErr != nil {
				pending := m.pendingErr
				m.pendingErr = nil
				return pending
			}
		}
	}

	return nil
}

// startPipeReader spawns a goroutine that repeatedly reads from r and
// forwards each chunk (or the terminal zero-byte/error chunk) to the
// returned channel, closing it once the pipe is exhausted.
func startPipeReader(fd int, r io.Reader) <-chan outputChunk {
	ch := make(chan outputChunk, 16)
	go func() {
		defer close(ch)
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				ch <- outputChunk{fd: fd, data: chunk}
			}
			if err != nil {
				ch <- outputChunk{fd: fd, err: err}
				return
			}
			if n == 0 {
				ch <- outputChunk{fd: fd}
				return
			}
		}
	}()
	return ch
}

// dispatchOutput appends an OutputEvent and notifies the optional Sink.
func (m *Machine) dispatchOutput(fd int, data []byte) {
	m.log.Append(trace.OutputEvent{FD: fd, Bytes: data})
	if m.cfg.Sink != nil {
		m.cfg.Sink.Output(fd, data)
	}
}

// handleTraceFrame is handle_trace (4.E): apply the skip-bb-after-
// breakpoint latch, read the basic-block addresses, dispatch them, then
// switch on the frame's reason.
func (m *Machine) handleTraceFrame(h wire.Header) (wire.Reason, error) {
	if m.skipBBAfterBreakpoint {
		if _, err := wire.ReadBasicBlocks(m.traceConn, 1); err != nil {
			return 0, fmt.Errorf("machine: discard stale bb address: %w", err)
		}
		h.NumAddrs--
		m.skipBBAfterBreakpoint = false
	}

	addrs, err := wire.ReadBasicBlocks(m.traceConn, h.NumAddrs)
	if err != nil {
		return 0, fmt.Errorf("machine: read basic blocks: %w", err)
	}
	m.dispatchBasicBlocks(addrs)

	switch h.Reason {
	case wire.ReasonFull:
		if err := m.ack(); err != nil {
			return 0, err
		}
	case wire.ReasonSyscallStart:
		k := 8
		if def, ok := syscalls.Lookup(m.cfg.Arch, h.SyscallNr); ok {
			k = def.Arity()
		}
		if k > len(h.StartArgs) {
			k = len(h.StartArgs)
		}
		args := append([]uint64(nil), h.StartArgs[:k]...)
		m.dispatchSyscallStart(h.SyscallNr, args)
		if err := m.ack(); err != nil {
			return 0, err
		}
	case wire.ReasonSyscallEnd:
		m.dispatchSyscallEnd(h.SyscallNr, h.SyscallRet)
		if err := m.ack(); err != nil {
			return 0, err
		}
	case wire.ReasonAsync:
		if err := m.ack(); err != nil {
			return 0, err
		}
	}

	return h.Reason, nil
}

func (m *Machine) dispatchBasicBlocks(addrs []uint64) {
	for _, a := range addrs {
		m.log.Append(trace.BBEvent{Addr: a})
	}
	if m.cfg.Sink != nil && len(addrs) > 0 {
		m.cfg.Sink.BasicBlocks(addrs)
	}
}

func (m *Machine) dispatchSyscallStart(nr int64, args []uint64) {
	m.log.Append(trace.SyscallStartEvent{Nr: nr, Args: args})
	if m.cfg.Sink != nil {
		m.cfg.Sink.SyscallStart(nr, args, syscalls.Describe(m.cfg.Arch, nr, args))
	}
}

func (m *Machine) dispatchSyscallEnd(nr int64, ret int64) {
	m.log.Append(trace.SyscallEndEvent{Nr: nr, Ret: ret})
	if m.cfg.Sink != nil {
		m.cfg.Sink.SyscallEnd(nr, ret, syscalls.DescribeReturn(ret))
	}
}

// ack writes the ACK control command to the trace socket, releasing the
// halted guest.
func (m *Machine) ack() error {
	return wire.WriteCommand(m.traceConn, wire.CmdACK)
}

// requestFlush sends REQUEST_FLUSH and synchronously processes the
// resulting trace frame, asserting it is reason async.
func (m *Machine) requestFlush() error {
	if err := wire.WriteCommand(m.traceConn, wire.CmdRequestFlush); err != nil {
		return fmt.Errorf("machine: write REQUEST_FLUSH: %w", err)
	}
	h, err := wire.ReadHeader(m.traceConn)
	if err != nil {
		return fmt.Errorf("machine: read flush response: %w", err)
	}
	reason, err := m.handleTraceFrame(h)
	if err != nil {
		return err
	}
	if reason != wire.ReasonAsync {
		return fmt.Errorf("machine: expected async frame after flush, got %s", reason)
	}
	return nil
}

// updateMaps sends REQUEST_MAPS, accumulates the ASCII memory-map dump up
// to its terminating blank line, parses and filters it, and ACKs.
func (m *Machine) updateMaps() error {
	if err := wire.WriteCommand(m.traceConn, wire.CmdRequestMaps); err != nil {
		return fmt.Errorf("machine: write REQUEST_MAPS: %w", err)
	}

	var sb strings.Builder
	br := &singleByteReader{r: m.traceConn}
	for {
		line, err := readLine(br)
		if err != nil {
			return fmt.Errorf("machine: read maps dump: %w", err)
		}
		if line == "" {
			break
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	entries, err := parseMaps(sb.String(), m.argv0Base)
	if err != nil {
		return fmt.Errorf("machine: parse maps: %w", err)
	}
	m.maps = entries

	return m.ack()
}

// singleByteReader adapts a net.Conn to io.ByteReader one raw read at a
// time, used only during updateMaps — the only place qtrace needs
// line-oriented parsing on a socket whose other traffic (trace headers)
// is read with fixed-size, non-buffered reads.
type singleByteReader struct {
	r io.Reader
}

func (s *singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readLine(br interface{ ReadByte() (byte, error) }) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}
