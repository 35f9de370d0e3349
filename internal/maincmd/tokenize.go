package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/loxvm/lang/scanner"
	"github.com/mna/loxvm/lang/token"
	"github.com/mna/mainer"
)

// Tokenize scans each file and prints its token stream, one token per line.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}

		sc := scanner.New(string(source))
		for {
			tok := sc.Scan()
			fmt.Fprintf(stdio.Stdout, "%4d %-14s '%s'\n", tok.Line, tok.Kind, tok.Text)
			if tok.Kind == token.EOF {
				break
			}
		}
	}
	return nil
}
