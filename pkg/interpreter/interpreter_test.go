package interpreter

import (
	"testing"

	"github.com/mizuy/microlisp/pkg/parser"
	"github.com/mizuy/microlisp/pkg/runtime"
)

func mustRead(t *testing.T, source string) runtime.Value {
	t.Helper()
	expr, err := parser.ReadString(source)
	if err != nil {
		t.Fatalf("read %q: %v", source, err)
	}
	return expr
}

func evalRendered(t *testing.T, interp *Interpreter, source string) string {
	t.Helper()
	val, err := interp.EvalString(source)
	if err != nil {
		t.Fatalf("eval %q: %v", source, err)
	}
	return runtime.Render(val)
}

func TestGlobalEnvironmentHoldsPrimitivesInOrder(t *testing.T) {
	interp := New()
	names := interp.GlobalEnvironment().Names()
	want := []string{"QUOTE", "CAR", "CDR", "CONS", "EQUAL", "ATOM", "COND", "LAMBDA", "LABEL"}
	if len(names) != len(want) {
		t.Fatalf("expected %d bindings, got %v", len(want), names)
	}
	for idx, name := range want {
		if names[idx] != name {
			t.Fatalf("binding %d: expected %s, got %s", idx, name, names[idx])
		}
		val, err := interp.GlobalEnvironment().Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if prim, ok := val.(runtime.Primitive); !ok || prim.Name != name {
			t.Fatalf("expected primitive %s, got %#v", name, val)
		}
	}
	if got := PrimitiveNames(); len(got) != len(want) || got[0] != "QUOTE" || got[8] != "LABEL" {
		t.Fatalf("unexpected primitive names %v", got)
	}
}

func TestQuoteReturnsOperand(t *testing.T) {
	interp := New()
	cases := map[string]string{
		"(QUOTE A)":             "A",
		"(QUOTE (A B C))":       "(A B C)",
		"(QUOTE (A (B (C)) D))": "(A (B (C)) D)",
		"(QUOTE ())":            "()",
	}
	for input, want := range cases {
		if got := evalRendered(t, interp, input); got != want {
			t.Fatalf("%s: expected %s, got %s", input, want, got)
		}
	}
}

func TestCarAndCdrOfQuotedList(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "(CAR (QUOTE (A B C)))"); got != "A" {
		t.Fatalf("expected A, got %s", got)
	}
	if got := evalRendered(t, interp, "(CDR (QUOTE (A B C)))"); got != "(B C)" {
		t.Fatalf("expected (B C), got %s", got)
	}
	if got := evalRendered(t, interp, "(CDR (QUOTE (A)))"); got != "()" {
		t.Fatalf("expected (), got %s", got)
	}
}

func TestCarCdrInvertCons(t *testing.T) {
	interp := New()
	for _, a := range []string{"A", "FOO", "#T"} {
		for _, b := range []string{"()", "(B)", "(B C D)", "((X) Y)"} {
			car := evalRendered(t, interp, "(CAR (CONS "+a+" (QUOTE "+b+")))")
			if car != a {
				t.Fatalf("CAR of CONS %s %s: got %s", a, b, car)
			}
			cdr := evalRendered(t, interp, "(CDR (CONS "+a+" (QUOTE "+b+")))")
			if cdr != b {
				t.Fatalf("CDR of CONS %s %s: got %s", a, b, cdr)
			}
		}
	}
}

func TestEqual(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "(EQUAL A A)"); got != "#T" {
		t.Fatalf("expected #T, got %s", got)
	}
	if got := evalRendered(t, interp, "(EQUAL A B)"); got != "()" {
		t.Fatalf("expected NIL, got %s", got)
	}
}

func TestAtomPredicate(t *testing.T) {
	interp := New()
	cases := map[string]string{
		"(ATOM A)":                   "#T",
		"(ATOM #T)":                  "#T",
		"(ATOM (QUOTE (A B)))":       "()",
		"(ATOM NIL)":                 "()",
		"(ATOM (LAMBDA (X) X))":      "()",
		"(ATOM (CONS A (QUOTE ())))": "()",
	}
	for input, want := range cases {
		if got := evalRendered(t, interp, input); got != want {
			t.Fatalf("%s: expected %s, got %s", input, want, got)
		}
	}
}

func TestCondFirstTruthyClauseWins(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "(COND (NIL X) (#T Y))"); got != "Y" {
		t.Fatalf("expected Y, got %s", got)
	}
	if got := evalRendered(t, interp, "(COND ((EQUAL A B) FIRST) ((EQUAL A A) SECOND) (#T THIRD))"); got != "SECOND" {
		t.Fatalf("expected SECOND, got %s", got)
	}
	if got := evalRendered(t, interp, "(COND (NIL X) (NIL Y))"); got != "()" {
		t.Fatalf("expected NIL when no clause matches, got %s", got)
	}
	if got := evalRendered(t, interp, "(COND)"); got != "()" {
		t.Fatalf("expected NIL for empty COND, got %s", got)
	}
}

func TestLabelAndClosureApplication(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "(LABEL DOUBLE (LAMBDA (X) (CONS X (CONS X NIL))))"); got != "#T" {
		t.Fatalf("expected LABEL to return #T, got %s", got)
	}
	if got := evalRendered(t, interp, "(DOUBLE A)"); got != "(A A)" {
		t.Fatalf("expected (A A), got %s", got)
	}
	if got := evalRendered(t, interp, "(DOUBLE (QUOTE (B C)))"); got != "((B C) (B C))" {
		t.Fatalf("expected ((B C) (B C)), got %s", got)
	}
}

func TestImmediateLambdaApplication(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "((LAMBDA (X Y) (CONS Y (CONS X NIL))) A B)"); got != "(B A)" {
		t.Fatalf("expected (B A), got %s", got)
	}
	if got := evalRendered(t, interp, "((LAMBDA () DONE))"); got != "DONE" {
		t.Fatalf("expected DONE, got %s", got)
	}
}

func TestLambdaDoesNotEvaluateOperands(t *testing.T) {
	interp := New()
	val, err := interp.Eval(mustRead(t, "(LAMBDA (X) (CAR X))"))
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	closure, ok := val.(*runtime.Closure)
	if !ok {
		t.Fatalf("expected closure, got %#v", val)
	}
	if len(closure.Params) != 1 || closure.Params[0].Name != "X" {
		t.Fatalf("unexpected params %#v", closure.Params)
	}
	if runtime.Render(closure.Body) != "(CAR X)" {
		t.Fatalf("unexpected body %s", runtime.Render(closure.Body))
	}
}

func TestClosuresUseDynamicScope(t *testing.T) {
	interp := New()
	evalRendered(t, interp, "(LABEL GETY (LAMBDA () Y))")
	if got := evalRendered(t, interp, "(GETY)"); got != "Y" {
		t.Fatalf("expected free Y to self-evaluate before binding, got %s", got)
	}
	evalRendered(t, interp, "(LABEL Y BOUND)")
	if got := evalRendered(t, interp, "(GETY)"); got != "BOUND" {
		t.Fatalf("expected free Y to resolve in the caller's environment, got %s", got)
	}
}

func TestLabelEvaluatesItsNameOperand(t *testing.T) {
	interp := New()
	evalRendered(t, interp, "(LABEL X FIRST)")
	// X now evaluates to FIRST, so the second LABEL binds FIRST.
	evalRendered(t, interp, "(LABEL X SECOND)")
	if got := evalRendered(t, interp, "X"); got != "FIRST" {
		t.Fatalf("expected X to stay FIRST, got %s", got)
	}
	if got := evalRendered(t, interp, "FIRST"); got != "SECOND" {
		t.Fatalf("expected FIRST to be bound to SECOND, got %s", got)
	}
}

func TestAppendedBindingDoesNotShadowEarlierOne(t *testing.T) {
	interp := New()
	interp.GlobalEnvironment().Extend("CAR", runtime.NewAtom("OTHER"))
	if got := evalRendered(t, interp, "(CAR (QUOTE (A B)))"); got != "A" {
		t.Fatalf("expected primitive CAR to keep precedence, got %s", got)
	}
}

func TestUnboundAtomsSelfEvaluate(t *testing.T) {
	interp := New()
	for _, name := range []string{"FOO", "BAR", "x"} {
		if got := evalRendered(t, interp, name); got != name {
			t.Fatalf("expected %s to evaluate to itself, got %s", name, got)
		}
	}
	if got := evalRendered(t, interp, "NIL"); got != "()" {
		t.Fatalf("expected NIL to evaluate to the empty list, got %s", got)
	}
	if got := evalRendered(t, interp, "#T"); got != "#T" {
		t.Fatalf("expected #T, got %s", got)
	}
}

func TestNonCallableHeadReturnsList(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "(A B (C D))"); got != "(A B (C D))" {
		t.Fatalf("expected list returned unchanged, got %s", got)
	}
}

func TestPrimitivesEvaluateToThemselves(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "CAR"); got != "#<primitive CAR>" {
		t.Fatalf("unexpected rendering %s", got)
	}
	val, err := interp.Eval(runtime.Primitive{Name: "X"})
	if err != nil || val.Kind() != runtime.KindPrimitive {
		t.Fatalf("expected primitive value back, got %#v (%v)", val, err)
	}
}

func TestLambdaPrimitiveAppliesClosure(t *testing.T) {
	interp := New()
	evalRendered(t, interp, "(LABEL APPLY LAMBDA)")
	if got := evalRendered(t, interp, "(APPLY (LAMBDA (X) (CONS X NIL)) A)"); got != "(A)" {
		t.Fatalf("expected (A), got %s", got)
	}
}

func TestSubstitutionKeepsFirstDuplicateParameter(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "((LAMBDA (X X) X) ONE TWO)"); got != "ONE" {
		t.Fatalf("expected first binding ONE, got %s", got)
	}
}

func TestEvalStringEmptySource(t *testing.T) {
	interp := New()
	if got := evalRendered(t, interp, "  "); got != "()" {
		t.Fatalf("expected NIL for empty source, got %s", got)
	}
}
