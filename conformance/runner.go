package conformance

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yklang/yuvakriti/compiler"
	"github.com/yklang/yuvakriti/pkg/bytecode"
	"github.com/yklang/yuvakriti/vm"
)

// Result is the observable outcome of running a test case.
type Result struct {
	Output      string                // captured standard output
	Diagnostics []compiler.Diagnostic // compile-time diagnostics
	RuntimeErr  error                 // fatal VM fault, if any
}

// Run compiles the case's source, round-trips the emitted bytecode through
// the codec, and executes it, capturing the outcome. Compile errors stop
// the pipeline before emission.
func Run(tc TestCase) (Result, error) {
	c := compiler.NewCompiler()
	if tc.Features != nil {
		for _, name := range tc.Features.Enable {
			c.Features.Set(name, true)
		}
		for _, name := range tc.Features.Disable {
			c.Features.Set(name, false)
		}
	}

	program, hasErrors := c.Compile(tc.Source)
	result := Result{Diagnostics: c.Diagnostics.Diagnostics}
	if hasErrors {
		return result, nil
	}

	file, err := bytecode.NewEmitter().Emit(program, tc.Name+".yk")
	if err != nil {
		return result, err
	}

	// Round-trip through the codec so every case also exercises the
	// reader and writer.
	data, err := file.Serialize()
	if err != nil {
		return result, err
	}
	loaded, err := bytecode.Deserialize(data)
	if err != nil {
		return result, err
	}

	machine, err := vm.New(loaded)
	if err != nil {
		return result, err
	}
	var out bytes.Buffer
	machine.Out = &out
	result.RuntimeErr = machine.Run()
	result.Output = out.String()
	return result, nil
}

// Check compares a result against the case's expectation and returns a
// non-empty failure description on mismatch.
func Check(tc TestCase, result Result) string {
	expect := tc.Expect

	if expect.Diagnostic != "" {
		for _, d := range result.Diagnostics {
			if strings.Contains(d.Message, expect.Diagnostic) {
				return ""
			}
		}
		return fmt.Sprintf("expected a diagnostic containing %q, got %v",
			expect.Diagnostic, result.Diagnostics)
	}

	if expect.Fault != "" {
		re, ok := result.RuntimeErr.(*vm.RuntimeError)
		if !ok {
			return fmt.Sprintf("expected a %s fault, got %v", expect.Fault, result.RuntimeErr)
		}
		if re.Kind.String() != expect.Fault {
			return fmt.Sprintf("expected a %s fault, got %s", expect.Fault, re.Kind)
		}
		return ""
	}

	if result.RuntimeErr != nil {
		return fmt.Sprintf("unexpected runtime fault: %v", result.RuntimeErr)
	}
	if len(result.Diagnostics) > 0 {
		for _, d := range result.Diagnostics {
			if d.Kind == compiler.SeverityError {
				return fmt.Sprintf("unexpected compile error: %s", d.Message)
			}
		}
	}
	if expect.Output != nil && result.Output != *expect.Output {
		return fmt.Sprintf("output mismatch:\n  want: %q\n  got:  %q", *expect.Output, result.Output)
	}
	return ""
}
