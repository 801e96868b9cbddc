package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/parser"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

// check parses and analyzes one source text with a fresh session.
func check(t *testing.T, src string) (*Session, *symbols.Table) {
	t.Helper()
	prog, parseDiags := parser.Parse("main.ql", src)
	require.Empty(t, parseDiags, "unexpected parse errors")
	s := NewSession()
	tab := s.Analyze(prog)
	return s, tab
}

func messages(s *Session) []string {
	var out []string
	for _, d := range s.Sink.All() {
		out = append(out, d.Message)
	}
	return out
}

func requireNoErrors(t *testing.T, s *Session) {
	t.Helper()
	require.False(t, s.Sink.HasErrors(), "unexpected diagnostics: %v", messages(s))
}

func requireError(t *testing.T, s *Session, fragment string) core.Diagnostic {
	t.Helper()
	for _, d := range s.Sink.All() {
		if strings.Contains(d.Message, fragment) {
			return d
		}
	}
	t.Fatalf("no diagnostic containing %q, got %v", fragment, messages(s))
	return core.Diagnostic{}
}

// S1: declaration + inference.
func TestDeclarationInference(t *testing.T) {
	s, tab := check(t, `
x := 1;
y := x + 2;
print(y);
`)
	requireNoErrors(t, s)

	xt, ok := tab.GetType("x")
	require.True(t, ok)
	assert.True(t, types.Int().Equals(xt))
	yt, ok := tab.GetType("y")
	require.True(t, ok)
	assert.True(t, types.Int().Equals(yt))
	assert.True(t, tab.IsInitialized("x"))
	assert.True(t, tab.IsInitialized("y"))
}

// S2: unused symbol at scope exit, non-zero exit.
func TestUnusedSymbol(t *testing.T) {
	s, _ := check(t, `x := 1;`)
	requireError(t, s, "unused symbol x")
	assert.Equal(t, 1, s.Sink.Flush(&strings.Builder{}))
}

// S3: mutable field in a struct declared immutable, with the deeply
// immutable variant suggested.
func TestImmutableStructWithMutableField(t *testing.T) {
	s, _ := check(t, `
immutable struct Holder { a: mut list<int> }
`)
	d := requireError(t, s, "mutable field a in immutable struct Holder")
	assert.Equal(t, core.ErrImmutability, d.Code)
	assert.Contains(t, d.Suggestion, "list<int>")
	assert.NotContains(t, d.Suggestion, "mut list")
}

// S4: complete branch coverage initializes; dropping the else arm loses
// the guarantee.
func TestBranchCoverage(t *testing.T) {
	s, _ := check(t, `
cond := true;
var x: int;
if (cond) { x = 1; } else { x = 2; }
y := x + 1;
print(y);
`)
	requireNoErrors(t, s)

	s, _ = check(t, `
cond := true;
var x: int;
if (cond) { x = 1; }
y := x + 1;
print(y);
`)
	requireError(t, s, "x may be uninitialized")
}

func TestElseIfChainCoverage(t *testing.T) {
	s, _ := check(t, `
cond := true;
var x: int;
if (cond) { x = 1; } else if (cond) { x = 2; } else { x = 3; }
print(x);
`)
	requireNoErrors(t, s)

	s, _ = check(t, `
cond := true;
var x: int;
if (cond) { x = 1; } else if (cond) { x = 2; }
print(x);
`)
	requireError(t, s, "x may be uninitialized")
}

// S5: lambda capture.
func TestLambdaCapture(t *testing.T) {
	s, tab := check(t, `
x := 1;
f := lambda() -> int { return x; };
z := f();
print(z);
`)
	requireNoErrors(t, s)

	require.Len(t, s.Captures, 1)
	for _, captured := range s.Captures {
		assert.Equal(t, []string{"x"}, captured)
	}
	ft, ok := tab.GetType("f")
	require.True(t, ok)
	assert.Equal(t, "provider<int>", ft.String())
}

// S6 / property 8: a procedure that transitively reaches a blocking callee
// without declaring it fails compilation.
func TestBlockingMismatch(t *testing.T) {
	s, _ := check(t, `
blocking consumer bar(n: int) {
  sleep(n);
}
consumer foo(n: int) {
  bar(n);
}
`)
	d := requireError(t, s, "foo is effectively blocking")
	assert.Equal(t, core.ErrBlocking, d.Code)
	assert.Equal(t, 1, s.Sink.Flush(&strings.Builder{}))
}

func TestBlockingPropagatesTransitively(t *testing.T) {
	s, _ := check(t, `
blocking consumer base(n: int) { sleep(n); }
blocking consumer mid(n: int) { base(n); }
consumer top(n: int) { mid(n); }
`)
	requireError(t, s, "top is effectively blocking")

	s, _ = check(t, `
blocking consumer base(n: int) { sleep(n); }
blocking consumer mid(n: int) { base(n); }
blocking consumer top(n: int) { mid(n); }
`)
	requireNoErrors(t, s)
}

func TestModuleLevelBlockingCallIsFine(t *testing.T) {
	s, _ := check(t, `sleep(10);`)
	requireNoErrors(t, s)
}

// The parser already refuses nested definitions; a tree built directly must
// hit the checker's own guard instead of silently skipping the bodies.
func TestNestedDefinitionsAreRejected(t *testing.T) {
	intType := &ast.NamedType{Loc: core.Location{Line: 2, Column: 30}, Name: "int"}
	prog := &ast.Program{File: "main.ql", Stmts: []ast.Stmt{
		&ast.If{
			Loc:  core.Location{Line: 1, Column: 1},
			Cond: &ast.BoolLit{Loc: core.Location{Line: 1, Column: 5}, Value: true},
			Then: &ast.Block{Loc: core.Location{Line: 1, Column: 11}, Stmts: []ast.Stmt{
				&ast.ProcDef{
					Loc:   core.Location{Line: 2, Column: 3},
					Arity: ast.ArityConsumer,
					Name:  "hidden",
					Params: []ast.Param{{
						Loc: core.Location{Line: 2, Column: 19}, Name: "n", Type: intType,
					}},
					// An ill-typed body: it must not slip through unchecked
					// without at least the nesting diagnostic.
					Body: &ast.Block{Loc: core.Location{Line: 2, Column: 35}, Stmts: []ast.Stmt{
						&ast.Return{Loc: core.Location{Line: 3, Column: 5}, Value: &ast.IntLit{Value: 1}},
					}},
				},
				&ast.StructDef{
					Loc:    core.Location{Line: 5, Column: 3},
					Name:   "Inner",
					Fields: []ast.StructFieldDef{{Loc: core.Location{Line: 5, Column: 18}, Name: "x", Type: intType}},
				},
			}},
		},
	}}

	s := NewSession()
	s.Analyze(prog)
	requireError(t, s, "consumer hidden must be declared at the module level")
	requireError(t, s, "struct Inner must be declared at the module level")
	for _, d := range s.Sink.All() {
		assert.Equal(t, core.ErrNestedDecl, d.Code)
	}
}

func TestRedeclaration(t *testing.T) {
	s, _ := check(t, `
x := 1;
x := 2;
print(x);
`)
	requireError(t, s, "unexpected redeclaration of x")
}

func TestUnknownIdentifier(t *testing.T) {
	s, _ := check(t, `print(ghost);`)
	requireError(t, s, "no variable in scope named ghost")
}

func TestVarDeclAnnotationMismatch(t *testing.T) {
	s, _ := check(t, `
var x: int = "hello";
print(x);
`)
	requireError(t, s, "expected int, found string")
}

func TestMutabilityIsStrictInAssertions(t *testing.T) {
	s, _ := check(t, `
var l: list<int> = mut [1, 2];
print(l);
`)
	requireError(t, s, "expected list<int>, found mut list<int>")
}

func TestNumericOperators(t *testing.T) {
	s, tab := check(t, `
a := 1 + 2;
b := 1 + 2.0;
c := 4 / 2;
d := -a;
print(b); print(c); print(d);
`)
	requireNoErrors(t, s)
	at, _ := tab.GetType("a")
	assert.Equal(t, "int", at.String())
	bt, _ := tab.GetType("b")
	assert.Equal(t, "float", bt.String(), "float operand widens the result")
	ct, _ := tab.GetType("c")
	assert.Equal(t, "float", ct.String(), "division always widens to float")

	s, _ = check(t, `e := 1 + "x"; print(e);`)
	requireError(t, s, "operator + expects int or float operands")
}

func TestEqualityRequiresSameType(t *testing.T) {
	s, _ := check(t, `
eq := [1] == [1];
print(eq);
`)
	requireNoErrors(t, s)

	s, _ = check(t, `bad := 1 == "one"; print(bad);`)
	requireError(t, s, "operands of one type")
}

func TestLogicalOperators(t *testing.T) {
	s, _ := check(t, `
ok := true and not false or 1 < 2;
print(ok);
`)
	requireNoErrors(t, s)

	s, _ = check(t, `bad := 1 and true; print(bad);`)
	requireError(t, s, "operator and expects boolean operands")
}

func TestStaticMustBeDeeplyImmutable(t *testing.T) {
	s, _ := check(t, `static LIMITS: mut list<int> = mut [1, 2];`)
	d := requireError(t, s, "static value LIMITS must be deeply immutable")
	assert.Equal(t, core.ErrMutableStatic, d.Code)
	assert.Contains(t, d.Suggestion, "list<int>")

	s, _ = check(t, `static LIMIT: int = 100;`)
	requireNoErrors(t, s)
}

func TestProcedureForwardReference(t *testing.T) {
	s, _ := check(t, `
function double(n: int) -> int { return twice(n); }
function twice(n: int) -> int { return n * 2; }
print(double(4));
`)
	requireNoErrors(t, s)
}

func TestProcedureScopeGating(t *testing.T) {
	s, _ := check(t, `
secret := 42;
function leak() -> int { return secret; }
print(leak());
print(secret);
`)
	requireError(t, s, "no variable in scope named secret")
}

func TestCallArityAndArgTypes(t *testing.T) {
	s, _ := check(t, `
function add(a: int, b: int) -> int { return a + b; }
print(add(1));
`)
	requireError(t, s, "expected 2 argument(s), found 1")

	s, _ = check(t, `
function add(a: int, b: int) -> int { return a + b; }
print(add(1, "two"));
`)
	requireError(t, s, "expected int, found string")
}

func TestReturnTypeChecked(t *testing.T) {
	s, _ := check(t, `
function wrong(n: int) -> int { return "nope"; }
print(wrong(1));
`)
	requireError(t, s, "expected int, found string")

	s, _ = check(t, `
consumer sink(n: int) { return n; }
sink(1);
`)
	requireError(t, s, "consumers cannot return a value")
}

func TestMissingReturnPath(t *testing.T) {
	s, _ := check(t, `
function partial(n: int) -> int {
  if (n > 0) { return 1; }
}
print(partial(1));
`)
	requireError(t, s, "must end every path in a return")

	s, _ = check(t, `
function total(n: int) -> int {
  if (n > 0) { return 1; } else { return 2; }
}
print(total(1));
`)
	requireNoErrors(t, s)
}

func TestGenericInstantiation(t *testing.T) {
	s, tab := check(t, `
function first<T>(items: list<T>) -> T { return pick(items); }
function pick<T>(items: list<T>) -> T { return pick(items); }
n := first([1, 2, 3]);
print(n);
`)
	requireNoErrors(t, s)
	nt, _ := tab.GetType("n")
	assert.Equal(t, "int", nt.String())
}

func TestGenericInferenceConflict(t *testing.T) {
	s, _ := check(t, `
function pair<T>(a: T, b: T) -> T { return a; }
print(pair(1, "one"));
`)
	requireError(t, s, "inferred as both")
}

func TestContractsSatisfied(t *testing.T) {
	s, _ := check(t, `
contract Eq<T> {
  function eq(a: T, b: T) -> boolean;
}
implement Eq<int> {
  function eq(a: int, b: int) -> boolean { return a == b; }
}
function dedupe<T>(a: T, b: T) -> boolean requires(Eq<T>) { return a == b; }
print(dedupe(1, 2));
`)
	requireNoErrors(t, s)
}

func TestContractMissingImplementation(t *testing.T) {
	s, _ := check(t, `
contract Eq<T> {
  function eq(a: T, b: T) -> boolean;
}
function dedupe<T>(a: T, b: T) -> boolean requires(Eq<T>) { return a == b; }
print(dedupe("a", "b"));
`)
	d := requireError(t, s, "no implementation of Eq<string> in scope")
	assert.Equal(t, core.ErrMissingContract, d.Code)
}

func TestContractObligationPropagatesThroughGenerics(t *testing.T) {
	s, _ := check(t, `
contract Eq<T> {
  function eq(a: T, b: T) -> boolean;
}
function inner<T>(a: T, b: T) -> boolean requires(Eq<T>) { return a == b; }
function outer<T>(a: T, b: T) -> boolean { return inner(a, b); }
`)
	requireError(t, s, "add it to the enclosing procedure's requires clause")

	s, _ = check(t, `
contract Eq<T> {
  function eq(a: T, b: T) -> boolean;
}
implement Eq<int> {
  function eq(a: int, b: int) -> boolean { return a == b; }
}
function inner<T>(a: T, b: T) -> boolean requires(Eq<T>) { return a == b; }
function outer<T>(a: T, b: T) -> boolean requires(Eq<T>) { return inner(a, b); }
print(outer(1, 2));
`)
	requireNoErrors(t, s)
}

func TestImplementSignatureMismatch(t *testing.T) {
	s, _ := check(t, `
contract Eq<T> {
  function eq(a: T, b: T) -> boolean;
}
implement Eq<int> {
  function eq(a: int, b: string) -> boolean { return true; }
}
`)
	requireError(t, s, "expected function<int, int -> boolean>")
}

func TestImplementMissingSignature(t *testing.T) {
	s, _ := check(t, `
contract Ord<T> {
  function less(a: T, b: T) -> boolean;
  function eq(a: T, b: T) -> boolean;
}
implement Ord<int> {
  function less(a: int, b: int) -> boolean { return a < b; }
}
`)
	requireError(t, s, "implementation of Ord<int> is missing eq")
}

func TestOneofAcceptsVariants(t *testing.T) {
	s, _ := check(t, `
var v: oneof<int|string> = 1;
v = "one";
print(v);
`)
	requireNoErrors(t, s)

	s, _ = check(t, `
var v: oneof<int|string> = 1.5;
print(v);
`)
	requireError(t, s, "expected oneof<int|string>, found float")
}

func TestOneofDuplicateVariantAnnotation(t *testing.T) {
	s, _ := check(t, `
var v: oneof<int|int> = 1;
print(v);
`)
	requireError(t, s, "duplicated variant")
}

func TestNewtypeAndFieldAccess(t *testing.T) {
	s, tab := check(t, `
newtype Point : struct{x: int, y: int};
p := Point(struct{x = 1, y = 2});
print(p.x);
print(unwrap(p).y);
`)
	requireNoErrors(t, s)
	pt, _ := tab.GetType("p")
	assert.Equal(t, "Point", pt.String())

	s, _ = check(t, `
struct Pair { a: int, b: string }
v := struct{a = 1, b = "x"};
n := v.a;
print(n);
print(v.missing);
`)
	requireError(t, s, "no field named missing")
}

func TestStructLitInference(t *testing.T) {
	s, tab := check(t, `
v := mut struct{a = 1, b = [1, 2]};
print(v);
`)
	requireNoErrors(t, s)
	vt, _ := tab.GetType("v")
	assert.Equal(t, "mut struct{a: int, b: list<int>}", vt.String())
}

func TestDepModuleBinding(t *testing.T) {
	s := NewSession()
	s.SetSelfModule("acme", "app")
	s.AddDependency(ModuleAPI{
		Namespace: "acme",
		Name:      "mathx",
		Types: []ExportedType{
			{Name: "Ratio", Body: types.NewStruct([]types.Field{
				{Name: "num", Type: types.Int()},
				{Name: "den", Type: types.Int()},
			}, false)},
		},
		Procedures: []ExportedProc{
			{Name: "half", Type: types.NewFunction(types.ProcSpec{Args: []*types.Type{types.Int()}, Return: types.Int()})},
			{Name: "wait", Type: types.NewConsumer(types.ProcSpec{Args: []*types.Type{types.Int()}, Blocking: types.BlockingAlways})},
		},
		Initializers: map[string][]string{"Ratio": {"ratio_of"}},
	})

	prog, parseDiags := parser.Parse("main.ql", `
consumer show(r: Ratio) { print(r.num); }
h := mathx.half(10);
print(h);
`)
	require.Empty(t, parseDiags)
	tab := s.Analyze(prog)
	requireNoErrors(t, s)

	ht, _ := tab.GetType("h")
	assert.Equal(t, "int", ht.String())
	show := s.procTypes["show"]
	require.NotNil(t, show)
	assert.Equal(t, "acme$mathx$Ratio", show.Args[0].String())
	assert.Equal(t, []string{"ratio_of"}, s.Initializers["acme$mathx$Ratio"])
	assert.Equal(t, "acme$app", s.SelfModule())

	// A dependency's blocking export propagates into local procedures.
	prog2, parseDiags := parser.Parse("main.ql", `
consumer quiet(n: int) { mathx.wait(n); }
`)
	require.Empty(t, parseDiags)
	s2 := NewSession()
	s2.AddDependency(ModuleAPI{
		Namespace: "acme",
		Name:      "mathx",
		Procedures: []ExportedProc{
			{Name: "wait", Type: types.NewConsumer(types.ProcSpec{Args: []*types.Type{types.Int()}, Blocking: types.BlockingAlways})},
		},
	})
	s2.Analyze(prog2)
	requireError(t, s2, "quiet is effectively blocking")
}

func TestSessionResetIsDeterministic(t *testing.T) {
	src := `
newtype Id : int;
x := 1;
print(x);
`
	prog, _ := parser.Parse("main.ql", src)
	s := NewSession()
	s.Analyze(prog)
	first := len(s.Sink.All())

	s.Reset()
	s.Analyze(prog)
	assert.Equal(t, first, len(s.Sink.All()), "repeated runs in one process behave identically")
}

func TestErrorsKeepTraversalOrder(t *testing.T) {
	s, _ := check(t, `
a := 1 + "x";
b := 2 == "y";
print(a); print(b);
`)
	msgs := messages(s)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Contains(t, msgs[0], "operator +")
	assert.Contains(t, msgs[1], "operator ==")
}

func TestUnknowableSuppressesCascades(t *testing.T) {
	s, _ := check(t, `
bad := ghost + 1;
worse := bad * 2;
print(worse);
`)
	// Only the root cause is reported; bad/worse stay unknowable without
	// piling on mismatches.
	assert.Equal(t, 1, s.Sink.Count(), "got: %v", messages(s))
}

func TestWhileDoesNotGuaranteeInitialization(t *testing.T) {
	s, _ := check(t, `
cond := true;
var x: int;
while (cond) { x = 1; }
print(x);
`)
	requireError(t, s, "x may be uninitialized")
}

func TestLambdaParamShadowsOuter(t *testing.T) {
	s, _ := check(t, `
x := 1;
f := lambda(x: string) -> string { return x; };
print(f("s"));
print(x);
`)
	requireNoErrors(t, s)
}

func TestConsumerLambda(t *testing.T) {
	s, tab := check(t, `
f := lambda(n: int) { print(n); };
f(3);
`)
	requireNoErrors(t, s)
	ft, _ := tab.GetType("f")
	assert.Equal(t, "consumer<int>", ft.String())
}

func TestBlockingGenericOverArgs(t *testing.T) {
	s, _ := check(t, `
blocking consumer slow(n: int) { sleep(n); }
blocking? consumer apply(op: consumer<int>, n: int) { op(n); }
consumer fast(n: int) { print(n); }
consumer fine(n: int) { apply(fast, n); }
`)
	requireNoErrors(t, s)

	s, _ = check(t, `
blocking consumer slow(n: int) { sleep(n); }
blocking? consumer apply(op: blocking consumer<int>, n: int) { op(n); }
consumer bad(n: int) { apply(slow, n); }
`)
	requireError(t, s, "bad is effectively blocking")
}
