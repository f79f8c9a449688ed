// Package breakpoint implements the explicit builder-style breakpoint
// registration surface: callers attach a callback to an address or a
// symbol name before a run starts, and the trace machine installs every
// registered breakpoint with the debug-remote client once the guest is
// reachable.
package breakpoint

import (
	"fmt"

	"github.com/qtrace-dev/qtrace/internal/rsp"
	"github.com/qtrace-dev/qtrace/internal/trace"
)

// Context is handed to a breakpoint callback. It exposes exactly the
// capabilities the original implementation's "self.gdb" attribute gave a
// decorated method: register and memory access, plus the ability to
// append a ("test", ...) event to the run's log.
type Context struct {
	client *rsp.Client
	log    *trace.Log
}

// Register returns the named register's cached value.
func (c *Context) Register(name string) (uint64, bool) {
	return c.client.Register(name)
}

// PC returns the current program counter.
func (c *Context) PC() uint64 {
	return c.client.PC()
}

// Memory fetches length bytes of guest memory at addr.
func (c *Context) Memory(addr, length uint64) ([]byte, error) {
	return c.client.Memory(rsp.Range{Start: addr, End: addr + length})
}

// Emit appends a TestEvent carrying tag and payload to the run's event log.
func (c *Context) Emit(tag string, payload any) {
	c.log.Append(trace.TestEvent{Tag: tag, Payload: payload})
}

// Callback is user code that runs when the guest traps at a registered
// address. It observes machine state only through its Context.
type Callback func(*Context)

// entry is one registration: either a resolved address or a symbol to
// resolve at install time, never both.
type entry struct {
	addr     uint64
	hasAddr  bool
	symbol   string
	callback Callback
}

// Registry accumulates breakpoint registrations before a run starts.
type Registry struct {
	entries []entry
}

// NewRegistry returns an empty breakpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Breakpoint registers cb to run when the guest traps at addressOrSymbol.
// A uint64 or int is treated as an absolute guest address; a string is
// resolved against the guest's symbol table at install time.
func (r *Registry) Breakpoint(addressOrSymbol any, cb Callback) error {
	switch v := addressOrSymbol.(type) {
	case uint64:
		r.entries = append(r.entries, entry{addr: v, hasAddr: true, callback: cb})
	case int:
		r.entries = append(r.entries, entry{addr: uint64(v), hasAddr: true, callback: cb})
	case string:
		r.entries = append(r.entries, entry{symbol: v, callback: cb})
	default:
		return fmt.Errorf("breakpoint: address must be a uint64 or int address or a symbol string, got %T", addressOrSymbol)
	}
	return nil
}

// Resolver resolves a symbol name to an absolute guest address, backed by
// internal/symtab against the loaded guest binary.
type Resolver func(symbol string) (uint64, error)

// Installed is one fully resolved breakpoint ready for the debug client.
type Installed struct {
	Addr     uint64
	Callback Callback
}

// Resolve converts every registered entry to an Installed breakpoint,
// resolving symbol names via resolve. It is a fatal configuration error
// for a symbol to fail to resolve.
func (r *Registry) Resolve(resolve Resolver) ([]Installed, error) {
	out := make([]Installed, 0, len(r.entries))
	for _, e := range r.entries {
		if e.hasAddr {
			out = append(out, Installed{Addr: e.addr, Callback: e.callback})
			continue
		}
		addr, err := resolve(e.symbol)
		if err != nil {
			return nil, fmt.Errorf("breakpoint: resolve symbol %q: %w", e.symbol, err)
		}
		out = append(out, Installed{Addr: addr, Callback: e.callback})
	}
	return out, nil
}

// Len reports the number of registered breakpoints.
func (r *Registry) Len() int {
	return len(r.entries)
}

// NewContext constructs a Context wrapping the given debug client and
// event log; it is exported for internal/machine to build the wrapper
// callback described in the component design.
func NewContext(client *rsp.Client, log *trace.Log) *Context {
	return &Context{client: client, log: log}
}
