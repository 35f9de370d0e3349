package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/mainer"
)

// Run compiles and executes each file in turn, each inside its own GC and
// VM, stopping at the first one that fails to compile or run.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		if err := RunSource(stdio, string(source), c.StressGC); err != nil {
			return err
		}
	}
	return nil
}

// RunSource compiles and runs source against a fresh GC and VM, printing
// compile errors or running to completion and reporting a runtime error, if
// any.
func RunSource(stdio mainer.Stdio, source string, stressGC bool) error {
	gc := machine.NewGC()
	gc.StressGC = stressGC
	vm := machine.NewVM(gc, stdio.Stdout, stdio.Stderr)

	fn, errs := compiler.Compile(source, gc)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stdio.Stderr, e)
		}
		return errs[0]
	}

	return vm.Run(fn)
}
