// Package machine implements the trace machine core (component F) and its
// single-goroutine event multiplexer (component E): it orchestrates the
// launcher, trace wire codec, and debug-remote client, owns the event
// log, the memory-map snapshot, and registered breakpoints, and drives
// the run to completion.
package machine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/qtrace-dev/qtrace/internal/breakpoint"
	"github.com/qtrace-dev/qtrace/internal/launcher"
	"github.com/qtrace-dev/qtrace/internal/netconn"
	"github.com/qtrace-dev/qtrace/internal/rsp"
	"github.com/qtrace-dev/qtrace/internal/syscalls"
	"github.com/qtrace-dev/qtrace/internal/trace"
)

// pollInterval bounds how long each readiness check on the trace and
// debug sockets blocks before the multiplexer moves on to the next
// source; it trades a little latency for a single-goroutine loop that
// never needs a real OS-level select/poll over heterogeneous handles.
const pollInterval = 2 * time.Millisecond

// Config configures a Machine's connection to the launched emulator.
type Config struct {
	Launch    launcher.Config
	TraceAddr string // default "localhost:4242"
	GDBAddr   string // default "localhost:1234"
	Arch      syscalls.Arch
	Regs      rsp.RegisterSet
	Resolve   breakpoint.Resolver // resolves breakpoint symbol names; may be nil if none registered
	Sink      Sink                // optional; nil means default (log-only) hooks

	// ConnectAttempts/ConnectDelay bound the Connector's retry budget for
	// both the trace and debug sockets; zero values fall back to
	// netconn's own defaults.
	ConnectAttempts int
	ConnectDelay    time.Duration
}

// Machine is one traced run: it owns the event log, the memory-map
// snapshot, the registered breakpoints, and the live connections to the
// launched emulator.
type Machine struct {
	cfg   Config
	RunID uuid.UUID

	proc      *launcher.Process
	traceConn net.Conn
	dbg       *rsp.Client

	log       trace.Log
	maps      []MapEntry
	argv0Base string

	breakpoints           *breakpoint.Registry
	skipBBAfterBreakpoint bool

	// pendingErr carries a fatal error raised inside a breakpoint
	// callback's wrapper (see wrapBreakpointCallback), which runs inside
	// rsp.Client's own dispatch and has no direct channel back to the
	// multiplex loop; the loop checks it after every dbg-socket readiness
	// event.
	pendingErr error

	state State
}

// New constructs a Machine in State Init. Breakpoints must be registered
// on the returned value's Breakpoints registry before Run is called.
func New(cfg Config) *Machine {
	if cfg.TraceAddr == "" {
		cfg.TraceAddr = "localhost:4242"
	}
	if cfg.GDBAddr == "" {
		cfg.GDBAddr = "localhost:1234"
	}
	if cfg.Arch == "" {
		cfg.Arch = syscalls.ArchAMD64
	}
	if cfg.Regs.Names == nil {
		cfg.Regs = rsp.AMD64Registers
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = netconn.DefaultAttempts
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = netconn.DefaultDelay
	}
	return &Machine{
		cfg:         cfg,
		RunID:       uuid.New(),
		breakpoints: breakpoint.NewRegistry(),
		state:       StateInit,
	}
}

// Breakpoints returns the registry callers add breakpoint callbacks to
// before Run.
func (m *Machine) Breakpoints() *breakpoint.Registry {
	return m.breakpoints
}

// Log returns the run's event log.
func (m *Machine) Log() *trace.Log {
	return &m.log
}

// Maps returns the most recently fetched, filtered memory-map snapshot.
func (m *Machine) Maps() []MapEntry {
	return m.maps
}

// State returns the machine's current run state.
func (m *Machine) State() State {
	return m.state
}

// start spawns the child, connects the trace socket and the debug
// client, and transitions Init -> Spawned.
func (m *Machine) start(ctx context.Context) error {
	if m.state != StateInit {
		return fmt.Errorf("machine: start called in state %s, want %s", m.state, StateInit)
	}

	proc, err := launcher.Launch(m.cfg.Launch)
	if err != nil {
		return fmt.Errorf("machine: launch: %w", err)
	}
	m.proc = proc

	if len(m.cfg.Launch.Argv) > 0 {
		m.argv0Base = basename(m.cfg.Launch.Argv[0])
	}

	traceConn, err := netconn.Dial(ctx, m.cfg.TraceAddr, m.cfg.ConnectAttempts, m.cfg.ConnectDelay)
	if err != nil {
		m.proc.Kill()
		return fmt.Errorf("machine: dial trace socket: %w", err)
	}
	m.traceConn = traceConn

	gdbConn, err := netconn.Dial(ctx, m.cfg.GDBAddr, m.cfg.ConnectAttempts, m.cfg.ConnectDelay)
	if err != nil {
		m.traceConn.Close()
		m.proc.Kill()
		return fmt.Errorf("machine: dial debug socket: %w", err)
	}
	dbg, err := rsp.Dial(gdbConn, m.cfg.Regs)
	if err != nil {
		gdbConn.Close()
		m.traceConn.Close()
		m.proc.Kill()
		return fmt.Errorf("machine: attach debug client: %w", err)
	}
	m.dbg = dbg

	m.state = StateSpawned
	return nil
}

// Run drives the machine from Init through to Done or Fatal: start,
// fetch the initial memory-map snapshot, install registered breakpoints,
// issue the initial async continue, then enter the multiplex loop.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.start(ctx); err != nil {
		m.state = StateFatal
		return err
	}

	if err := m.updateMaps(); err != nil {
		m.state = StateFatal
		m.teardown()
		return fmt.Errorf("machine: initial update_maps: %w", err)
	}

	installed, err := m.breakpoints.Resolve(m.resolveSymbol)
	if err != nil {
		m.state = StateFatal
		m.teardown()
		return err
	}
	for _, bp := range installed {
		bp := bp
		wrapped := m.wrapBreakpointCallback(bp.Callback)
		if err := m.dbg.AddBreakpoint(bp.Addr, wrapped); err != nil {
			m.state = StateFatal
			m.teardown()
			return fmt.Errorf("machine: install breakpoint at %#x: %w", bp.Addr, err)
		}
	}

	if err := m.dbg.AsyncContinue(); err != nil {
		m.state = StateFatal
		m.teardown()
		return fmt.Errorf("machine: initial async continue: %w", err)
	}
	m.state = StateContinued

	if err := m.multiplex(); err != nil {
		m.state = StateFatal
		m.teardown()
		return err
	}

	m.state = StateDone
	m.teardown()
	return nil
}

// resolveSymbol adapts a breakpoint.Resolver configured on Machine to the
// breakpoint package's Resolver signature, failing clearly if the caller
// registered a symbolic breakpoint without supplying a resolver.
func (m *Machine) resolveSymbol(symbol string) (uint64, error) {
	if m.cfg.Resolve == nil {
		return 0, fmt.Errorf("no symbol resolver configured, cannot resolve %q", symbol)
	}
	return m.cfg.Resolve(symbol)
}

// wrapBreakpointCallback implements the 4.F wrapper: before the user
// callback runs, flush any basic blocks buffered in the plugin into the
// log; after it runs, mark that the next trace frame carries one stale
// basic-block address the plugin is known to emit after a software
// breakpoint stop.
func (m *Machine) wrapBreakpointCallback(cb breakpoint.Callback) rsp.Callback {
	return func() {
		if err := m.requestFlush(); err != nil {
			// The multiplexer has no channel to propagate this on from
			// inside an rsp callback; record it as a fatal condition the
			// next loop iteration observes.
			m.pendingErr = fmt.Errorf("machine: flush before breakpoint: %w", err)
			return
		}
		ctx := breakpoint.NewContext(m.dbg, &m.log)
		cb(ctx)
		m.skipBBAfterBreakpoint = true
	}
}

// teardown detaches the debug client and reaps the child, best-effort,
// regardless of how the run ended.
func (m *Machine) teardown() {
	if m.dbg != nil {
		m.dbg.Detach()
	}
	if m.traceConn != nil {
		m.traceConn.Close()
	}
	if m.proc != nil {
		m.proc.Wait()
	}
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
