package compiler

import "fmt"

// CompileError is one syntax error recorded during a compile. Multiple may
// accumulate per run: panic-mode recovery lets parsing continue past the
// first one so a single pass can surface as many as it can.
type CompileError struct {
	Line    int
	Where   string // "" for a scanner error token, " at end", or " at 'lexeme'"
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error%s: %s", e.Line, e.Where, e.Message)
}
