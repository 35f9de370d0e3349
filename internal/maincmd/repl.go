package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/machine"
	"github.com/mna/mainer"
)

// Repl reads one line at a time from stdin, compiling and running each as
// its own top-level script against a single long-lived GC and VM, so
// globals declared on one line remain visible on the next.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	gc := machine.NewGC()
	gc.StressGC = c.StressGC
	vm := machine.NewVM(gc, stdio.Stdout, stdio.Stderr)

	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return scan.Err()
		}

		line := scan.Text()
		if line == "" {
			continue
		}

		fn, errs := compiler.Compile(line, gc)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(stdio.Stderr, e)
			}
			continue
		}
		vm.Run(fn) //nolint:errcheck // the VM has already reported the error to stderr
	}
}
