package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/mainer"
)

// Disassemble compiles each file and prints the bytecode listing of its
// top-level function (and, recursively, any nested function found in its
// constant pool) instead of running it.
func (c *Cmd) Disassemble(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}

		gc := machine.NewGC()
		fn, errs := compiler.Compile(string(source), gc)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(stdio.Stderr, e)
			}
			return errs[0]
		}

		disassembleRecursive(stdio.Stdout, fn, map[*machine.ObjFunction]bool{})
	}
	return nil
}

func disassembleRecursive(w io.Writer, fn *machine.ObjFunction, seen map[*machine.ObjFunction]bool) {
	if seen[fn] {
		return
	}
	seen[fn] = true

	name := "<script>"
	if fn.Name != nil {
		name = fn.String()
	}
	machine.DisassembleChunk(w, &fn.Chunk, name)

	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*machine.ObjFunction); ok {
			disassembleRecursive(w, nested, seen)
		}
	}
}
