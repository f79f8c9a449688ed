package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qtrace-dev/qtrace/internal/symtab"
)

var infoCmd = &cobra.Command{
	Use:   "info <program>",
	Short: "Print a guest binary's ELF entry point, symbol count, and architecture without tracing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	program, err := resolveProgram(args[0])
	if err != nil {
		return fmt.Errorf("qtrace info: %w", err)
	}

	table, err := symtab.Load(program)
	if err != nil {
		return fmt.Errorf("qtrace info: %w", err)
	}

	fmt.Printf("program:  %s\n", program)
	fmt.Printf("arch:     %s\n", table.Machine)
	fmt.Printf("entry:    %#x\n", table.Entry())
	fmt.Printf("symbols:  %d\n", table.Count())
	return nil
}
