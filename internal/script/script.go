// Package script implements the optional scripted-hook registration path
// (component J): a breakpoint callback authored as a small JavaScript
// snippet instead of compiled Go, executed in a goja.Runtime with regs,
// mem, and emit exposed as host functions. This is the idiomatic-Go
// stand-in for the original implementation's ability to decorate an
// arbitrary bound method at runtime.
package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/qtrace-dev/qtrace/internal/breakpoint"
)

// Hook compiles source once and returns a breakpoint.Callback that runs
// it against the triggering Context on every invocation. The script sees
// four host bindings:
//
//	regs.get(name)       -> number (register value)
//	pc                   -> number (program counter at the trap)
//	mem.read(addr, len)  -> array of byte values
//	emit(tag, value)     -> appends a TestEvent carrying tag and value
func Hook(source string) (breakpoint.Callback, error) {
	program, err := goja.Compile("<breakpoint>", source, false)
	if err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}

	return func(ctx *breakpoint.Context) {
		vm := goja.New()
		if err := bind(vm, ctx); err != nil {
			panic(fmt.Sprintf("script: bind host functions: %v", err))
		}
		if _, err := vm.RunProgram(program); err != nil {
			panic(fmt.Sprintf("script: run: %v", err))
		}
	}, nil
}

func bind(vm *goja.Runtime, ctx *breakpoint.Context) error {
	regs := vm.NewObject()
	if err := regs.Set("get", func(name string) goja.Value {
		v, ok := ctx.Register(name)
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	}); err != nil {
		return err
	}
	if err := vm.Set("regs", regs); err != nil {
		return err
	}
	if err := vm.Set("pc", ctx.PC()); err != nil {
		return err
	}

	mem := vm.NewObject()
	if err := mem.Set("read", func(addr, length uint64) goja.Value {
		data, err := ctx.Memory(addr, length)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		out := make([]interface{}, len(data))
		for i, b := range data {
			out[i] = int(b)
		}
		return vm.ToValue(out)
	}); err != nil {
		return err
	}
	if err := vm.Set("mem", mem); err != nil {
		return err
	}

	return vm.Set("emit", func(tag string, value goja.Value) {
		ctx.Emit(tag, value.Export())
	})
}
