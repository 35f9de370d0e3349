package machine_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run compiles and executes src, returning its stdout, stderr and any
// runtime error. Compile errors fail the test immediately: these tests are
// about VM semantics, not parser recovery.
func run(t *testing.T, src string) (stdout, stderr string, runErr error) {
	t.Helper()

	gc := machine.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.Empty(t, errs, "unexpected compile errors for %q", src)

	var out, errOut bytes.Buffer
	vm := machine.NewVM(gc, &out, &errOut)
	runErr = vm.Run(fn)
	return out.String(), errOut.String(), runErr
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, err := run(t, "print 1 + 2 * 3;")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestStringInterningEquality(t *testing.T) {
	out, _, err := run(t, `
		var a = "hi" + "!";
		var b = "hi!";
		print a == b;
	`)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestClosureCapturesAndMutatesUpvalue(t *testing.T) {
	out, _, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClassInitMethodAndThis(t *testing.T) {
	out, _, err := run(t, `
		class Counter {
			init(start) {
				this.value = start;
			}
			increment() {
				this.value = this.value + 1;
				return this.value;
			}
		}
		var c = Counter(10);
		print c.increment();
		print c.increment();
	`)
	require.NoError(t, err)
	assert.Equal(t, "11\n12\n", out)
}

func TestSingleInheritanceAndSuper(t *testing.T) {
	out, _, err := run(t, `
		class Animal {
			speak() {
				return "...";
			}
			describe() {
				return "An animal says " + this.speak();
			}
		}
		class Dog < Animal {
			speak() {
				return "Woof";
			}
			describe() {
				return super.describe() + "!";
			}
		}
		print Dog().describe();
	`)
	require.NoError(t, err)
	assert.Equal(t, "An animal says Woof!\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, _, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestRuntimeErrorOperandsMustBeNumbersOrStrings(t *testing.T) {
	_, stderr, err := run(t, `print 1 + "x";`)
	require.Error(t, err)
	assert.Contains(t, stderr, "Operands must be two numbers or two strings.")
}

func TestRuntimeErrorArity(t *testing.T) {
	_, stderr, err := run(t, `
		fun noArgs() { return 1; }
		noArgs(1);
	`)
	require.Error(t, err)
	assert.Contains(t, stderr, "Expected 0 arguments but got 1.")
}

func TestRuntimeErrorUndefinedProperty(t *testing.T) {
	_, stderr, err := run(t, `
		class Point {}
		var p = Point();
		print p.y;
	`)
	require.Error(t, err)
	assert.Contains(t, stderr, "Undefined property 'y'.")
}

func TestCompileErrorReadLocalInOwnInitializer(t *testing.T) {
	gc := machine.NewGC()
	_, errs := compiler.Compile(`
		{
			var a = a;
		}
	`, gc)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "Can't read local variable in its own initializer.") {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", errs)
}
