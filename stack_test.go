package quell_test

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/quellish/quell"
)

func concatLines(lines ...string) string {
	return strings.Join(lines, "\n")
}

func TestStackFormatVarieties(t *testing.T) {
	t.Parallel()

	expected := concatLines(
		"packagename.foo(...)",
		"\t/path/to/package/foo.go:37",
		"packagename.bar(...)",
		"\t/path/to/package/bar.go",
		"packagename.baz(...)",
		"\t<unknown file>",
		"packagename.qux(...)",
		"\t<unknown file>",
		"<unknown function>",
		"\t/unknown/function/path.go:45",
		"<unknown function>",
		"\t<unknown file>",
		"",
	)

	st := quell.StackTrace{
		Frames: []quell.StackFrame{
			{Function: "packagename.foo", File: "/path/to/package/foo.go", Line: 37},
			{Function: "packagename.bar", File: "/path/to/package/bar.go"},
			{Function: "packagename.baz"},
			{Function: "packagename.qux", Line: 29}, // Line should have no effect if File is missing.
			{File: "/unknown/function/path.go", Line: 45},
			{},
		},
	}

	got := st.String()

	if got != expected {
		t.Fail()
		t.Log(
			"--- BEGIN expected formatting ---\n",
			fmt.Sprintf("%q", expected),
			"\n--- END expected formatting. BEGIN actual formatting ---\n",
			fmt.Sprintf("%q", got),
		)
	}
}

func validateStackTrace(t *testing.T, expected, got quell.StackTrace) {
	for depth := 0; ; depth += 1 {
		if (expected.Parent == nil) != (got.Parent == nil) {
			t.Fatalf(
				"mismatched at depth %d, whether has parent: expected %v, got %v",
				depth, expected.Parent != nil, got.Parent != nil,
			)
		}

		if len(expected.Frames) > len(got.Frames) || expected.Parent != nil && len(expected.Frames) != len(got.Frames) {
			t.Fatalf(
				"mismatched at depth %d, number of frames: expected %d, got %d",
				depth, len(expected.Frames), len(got.Frames),
			)
		}

		for i := range expected.Frames {
			e := expected.Frames[i]
			g := got.Frames[i]

			if matched, err := regexp.Match(fmt.Sprint("^", e.File, "$"), []byte(g.File)); !matched || err != nil {
				if err != nil {
					panic(fmt.Errorf("bad regex for expected at depth %d, Frames[%d].File: %w", depth, i, err))
				}

				t.Fatalf("mismatched at depth %d, Frames[%d].File: expected match for %q, got %q", depth, i, e.File, g.File)
			}

			if matched, err := regexp.Match(fmt.Sprint("^", e.Function, "$"), []byte(g.Function)); !matched || err != nil {
				if err != nil {
					panic(fmt.Errorf("bad regex for expected at depth %d, Frames[%d].Function: %w", depth, i, err))
				}

				t.Fatalf("mismatched at depth %d, Frames[%d].Function: expected match for %q, got %q", depth, i, e.Function, g.Function)
			}

			if (e.Line == 0) != (g.Line == 0) {
				expectedKind := "!= 0"
				if e.Line == 0 {
					expectedKind = "== 0"
				}
				t.Fatalf("mismatched at depth %d, Frames[%d].Line: expected %s, got %d", depth, i, expectedKind, g.Line)
			}
		}

		if expected.Parent == nil {
			return
		}

		expected = *expected.Parent
		got = *got.Parent
	}
}

func TestStackBasicCreation(t *testing.T) {
	t.Parallel()

	expected := quell.StackTrace{
		Frames: []quell.StackFrame{
			{Function: `.*/quell_test.TestStackBasicCreation.func1`, File: `.*/stack_test\.go`, Line: 1},
			{Function: `.*/quell_test.TestStackBasicCreation.func2`, File: `.*/stack_test\.go`, Line: 1},
			{Function: `.*/quell_test.TestStackBasicCreation.func3`, File: `.*/stack_test\.go`, Line: 1},
			{Function: `.*/quell_test.TestStackBasicCreation`, File: `.*/stack_test\.go`, Line: 1},
		},
	}

	func1 := func() quell.StackTrace {
		return quell.GetStackTrace(nil, 0)
	}
	func2 := func() quell.StackTrace {
		return func1()
	}
	func3 := func() quell.StackTrace {
		return func2()
	}

	got := func3()

	validateStackTrace(t, expected, got)
}

func TestStackSkipTooManyIsEmpty(t *testing.T) {
	t.Parallel()

	st := quell.GetStackTrace(nil, 100000) // pick a big number to skip all frames
	if len(st.Frames) != 0 {
		t.Fatal("expected no frames, got", len(st.Frames))
	}
}

// Collecting a trace from inside a deferred recover is exactly what Spawn's panic containment
// does, so pin down what it sees.
func TestStackCreateAfterRecover(t *testing.T) {
	t.Parallel()

	expected := quell.StackTrace{
		Frames: []quell.StackFrame{
			{Function: `.*quell_test.TestStackCreateAfterRecover.func1`, File: `.*/stack_test\.go`, Line: 1},
			{Function: `.*quell_test.TestStackCreateAfterRecover.func2`, File: `.*/stack_test\.go`, Line: 1},
			{Function: `.*quell_test.TestStackCreateAfterRecover.func3`, File: `.*/stack_test\.go`, Line: 1},
		},
	}

	func1 := func() {
		panic("")
	}

	func2 := func() {
		func1()
	}

	var func4 func()

	func3 := func() {
		defer func4()
		func2()
	}

	var stack quell.StackTrace
	func4 = func() {
		if recover() != nil {
			stack = quell.GetStackTrace(nil, 2)
		}
	}

	func3()
	got := stack

	validateStackTrace(t, expected, got)
}
