package maincmd_test

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/loxvm/internal/filetest"
	"github.com/mna/loxvm/internal/maincmd"
	"github.com/mna/mainer"
)

var testUpdateTokenizeTests = flag.Bool("test.update-tokenize-tests", false, "If set, replace expected tokenize test results with actual results.")

func TestTokenize(t *testing.T) {
	ctx := context.Background()
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lox") {
		t.Run(fi.Name(), func(t *testing.T) {
			var out, errOut bytes.Buffer
			stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

			c := &maincmd.Cmd{}
			err := c.Tokenize(ctx, stdio, []string{filepath.Join(srcDir, fi.Name())})
			if err != nil {
				t.Fatal(err)
			}

			filetest.DiffOutput(t, fi, out.String(), resultDir, testUpdateTokenizeTests)
			filetest.DiffErrors(t, fi, errOut.String(), resultDir, testUpdateTokenizeTests)
		})
	}
}

func TestRunSourcePrintsOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.RunSource(stdio, `print "hello" + ", " + "world";`, false)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "hello, world\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunSourceReportsCompileErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.RunSource(stdio, `var x = ;`, false)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errOut.String(), "Expect expression.") {
		t.Fatalf("stderr = %q, want it to contain %q", errOut.String(), "Expect expression.")
	}
}

func TestReplEvaluatesLineByLineSharingGlobals(t *testing.T) {
	in := strings.NewReader("var x = 1;\nprint x + 1;\n")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdin: in, Stdout: &out, Stderr: &errOut}

	c := &maincmd.Cmd{}
	if err := c.Repl(context.Background(), stdio, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "2\n") {
		t.Fatalf("repl output = %q, want it to contain printed 2", out.String())
	}
}
