package scanner_test

import (
	"testing"

	"github.com/mna/loxvm/lang/scanner"
	"github.com/mna/loxvm/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []scanner.Tok {
	t.Helper()
	s := scanner.New(src)
	var toks []scanner.Tok
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, "(){};,.-+/*!!====<<=>>=")
	want := []token.Token{
		token.LEFT_PAREN, token.RIGHT_PAREN, token.LEFT_BRACE, token.RIGHT_BRACE,
		token.SEMICOLON, token.COMMA, token.DOT, token.MINUS, token.PLUS,
		token.SLASH, token.STAR, token.BANG, token.BANG_EQUAL, token.EQUAL_EQUAL,
		token.EQUAL, token.LESS, token.LESS_EQUAL, token.GREATER, token.GREATER_EQUAL,
		token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, k := range want {
		assert.Equalf(t, k, toks[i].Kind, "token %d", i)
	}
}

func TestScanKeywordsVsIdentifiers(t *testing.T) {
	toks := scanAll(t, "and class forever foo this third")
	want := []token.Token{
		token.AND, token.CLASS, token.IDENTIFIER, token.IDENTIFIER,
		token.THIS, token.IDENTIFIER, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, k := range want {
		assert.Equalf(t, k, toks[i].Kind, "token %d (%q)", i, toks[i].Text)
	}
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, "123 45.67 8.")
	require.Len(t, toks, 5)
	assert.Equal(t, "123", toks[0].Text)
	assert.Equal(t, "45.67", toks[1].Text)
	// trailing dot without a following digit is not part of the number.
	assert.Equal(t, "8", toks[2].Text)
	assert.Equal(t, token.DOT, toks[3].Kind)
}

func TestScanStrings(t *testing.T) {
	toks := scanAll(t, `"hello" "multi
line"`)
	require.Len(t, toks, 3)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, `"hello"`, toks[0].Text)
	assert.Equal(t, token.STRING, toks[1].Kind)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"oops`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.ERROR, toks[0].Kind)
	assert.Equal(t, "Unterminated string.", toks[0].Text)
}

func TestScanLineComment(t *testing.T) {
	toks := scanAll(t, "print 1; // a comment\nprint 2;")
	var lines []int
	for _, tk := range toks {
		if tk.Kind != token.EOF {
			lines = append(lines, tk.Line)
		}
	}
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2}, lines)
}

func TestScanIllegalCharacter(t *testing.T) {
	toks := scanAll(t, "@")
	require.Len(t, toks, 2)
	assert.Equal(t, token.ERROR, toks[0].Kind)
	assert.Equal(t, "Unexpected character.", toks[0].Text)
}
