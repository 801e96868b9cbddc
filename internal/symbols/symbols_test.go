package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/quill/internal/types"
)

func TestObserveInitializeAndLookup(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())
	assert.True(t, tab.IsDeclared("x"))
	assert.False(t, tab.IsInitialized("x"))

	tab.Initialize("x")
	assert.True(t, tab.IsInitialized("x"))

	typ, ok := tab.GetType("x")
	require.True(t, ok)
	assert.True(t, types.Int().Equals(typ))
}

func TestObserveWritesThroughToDeclaringScope(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())
	tab.EnterScope(BlockScope)
	tab.Observe("x", types.Float())
	tab.ExitScope(false)

	typ, ok := tab.GetType("x")
	require.True(t, ok)
	assert.True(t, types.Float().Equals(typ), "observe reaches the scope that already holds the name")
}

func TestInitializationIsPerScope(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())

	tab.EnterScope(BlockScope)
	tab.Initialize("x")
	assert.True(t, tab.IsInitialized("x"))
	tab.ExitScope(false)

	// Without branch finalization the child's initialization never escapes.
	assert.False(t, tab.IsInitialized("x"))
}

// Property 5: after a complete branch group in which every branch
// initializes x, the parent sees x initialized.
func TestBranchInspectionAllBranchesInitialize(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())

	tab.BeginBranchInspection()
	for i := 0; i < 2; i++ {
		tab.EnterScope(BlockScope)
		tab.Initialize("x")
		tab.ExitScope(false)
	}
	tab.FinalizeBranches()

	assert.True(t, tab.IsInitialized("x"))
}

func TestBranchInspectionOneBranchMisses(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())

	tab.BeginBranchInspection()
	tab.EnterScope(BlockScope)
	tab.Initialize("x")
	tab.ExitScope(false)
	tab.EnterScope(BlockScope)
	tab.ExitScope(false)
	tab.FinalizeBranches()

	assert.False(t, tab.IsInitialized("x"))
}

func TestBranchInspectionIgnoresBranchLocals(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())

	tab.BeginBranchInspection()
	for i := 0; i < 2; i++ {
		tab.EnterScope(BlockScope)
		tab.Initialize("x")
		// y is declared inside the branch; its initialization must not
		// leak into the parent.
		tab.Observe("y", types.Int())
		tab.Initialize("y")
		tab.ExitScope(false)
	}
	tab.FinalizeBranches()

	assert.True(t, tab.IsInitialized("x"))
	assert.False(t, tab.IsInitialized("y"))
	assert.False(t, tab.IsDeclared("y"))
}

// Property 6: inside a procedure body, outer lookups succeed only for
// procedure-, module- and type-definition bindings.
func TestProcedureBoundaryGatesLookups(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())
	tab.Initialize("x")
	tab.Observe("helper", types.NewFunction(types.ProcSpec{Args: []*types.Type{types.Int()}, Return: types.Int()}))
	tab.Observe("deps", types.Module())
	tab.Observe("Point", types.NewStruct([]types.Field{{Name: "x", Type: types.Int()}}, false))
	tab.MarkTypeDefinition("Point")

	tab.EnterScope(ProcedureScope)
	defer tab.ExitScope(false)

	_, ok := tab.GetType("x")
	assert.False(t, ok, "plain variables are invisible past a procedure boundary")
	assert.False(t, tab.IsDeclared("x"))

	_, ok = tab.GetType("helper")
	assert.True(t, ok)
	_, ok = tab.GetType("deps")
	assert.True(t, ok)
	_, ok = tab.GetType("Point")
	assert.True(t, ok)
	assert.True(t, tab.IsInitialized("helper"), "procedures are initialized by declaration")
}

// Property 7: resolving an outer name inside a lambda records it in the
// lambda scope's captured set.
func TestLambdaBoundaryCaptures(t *testing.T) {
	tab := NewTable()
	tab.PutValue("x", types.Int(), int64(1))

	tab.EnterScope(LambdaScope)
	typ, ok := tab.GetType("x")
	require.True(t, ok)
	assert.True(t, types.Int().Equals(typ))
	assert.True(t, tab.CapturedInScope("x"))
	assert.Equal(t, []string{"x"}, tab.CapturedNames())
	assert.True(t, tab.IsInitialized("x"), "snapshot keeps the outer initialization state")

	v, ok := tab.GetValue("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
	tab.ExitScope(false)

	// The outer binding was marked used by the capture.
	assert.Empty(t, tab.UnusedInCurrentScope())

	// Past a procedure boundary the plain binding stays hidden.
	tab.EnterScope(ProcedureScope)
	assert.False(t, tab.IsDeclared("x"))
	tab.ExitScope(false)
	assert.True(t, tab.IsDeclared("x"))
}

func TestLambdaCaptureIsSnapshot(t *testing.T) {
	tab := NewTable()
	tab.PutValue("x", types.Int(), int64(1))

	tab.EnterScope(LambdaScope)
	_, _ = tab.GetValue("x")

	// Rebinding the shadow inside the lambda leaves the outer value alone.
	tab.PutValue("x", types.Int(), int64(99))
	v, _ := tab.GetValue("x")
	assert.Equal(t, int64(99), v)
	tab.ExitScope(false)

	v, _ = tab.GetValue("x")
	assert.Equal(t, int64(1), v)
}

func TestLambdaCapturesModuleProcedures(t *testing.T) {
	tab := NewTable()
	tab.Observe("helper", types.NewProvider(types.ProcSpec{Return: types.Int()}))
	tab.Observe("Point", types.NewStruct([]types.Field{{Name: "x", Type: types.Int()}}, false))
	tab.MarkTypeDefinition("Point")

	// No procedure boundary is crossed, so the snapshot rule applies even
	// to procedure and type-definition bindings.
	tab.EnterScope(LambdaScope)
	_, ok := tab.GetType("helper")
	require.True(t, ok)
	assert.True(t, tab.CapturedInScope("helper"))

	_, ok = tab.GetType("Point")
	require.True(t, ok)
	assert.True(t, tab.CapturedInScope("Point"))

	assert.Equal(t, []string{"Point", "helper"}, tab.CapturedNames())
	assert.True(t, tab.IsInitialized("helper"), "the shadow keeps the procedure's declared-initialized state")
	tab.ExitScope(false)
}

func TestLambdaThenProcedureBoundary(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())
	tab.Observe("helper", types.NewProvider(types.ProcSpec{Return: types.Int()}))

	tab.EnterScope(ProcedureScope)
	tab.EnterScope(LambdaScope)

	_, ok := tab.GetType("x")
	assert.False(t, ok, "lambda then procedure crossing hides plain bindings")
	assert.False(t, tab.CapturedInScope("x"))

	_, ok = tab.GetType("helper")
	assert.True(t, ok)
	assert.False(t, tab.CapturedInScope("helper"), "procedure bindings are returned unshadowed")

	tab.ExitScope(false)
	tab.ExitScope(false)
}

func TestPutWithHidingShadowsOuterBinding(t *testing.T) {
	tab := NewTable()
	tab.PutValue("x", types.Int(), int64(1))

	tab.EnterScope(BlockScope)
	tab.PutWithHiding("x", types.String(), "hello")
	typ, _ := tab.GetType("x")
	assert.True(t, types.String().Equals(typ))
	tab.ExitScope(false)

	typ, _ = tab.GetType("x")
	assert.True(t, types.Int().Equals(typ))
}

func TestExitScopeReportsUnused(t *testing.T) {
	tab := NewTable()
	tab.EnterScope(BlockScope)
	tab.Observe("x", types.Int())
	tab.Observe("_scratch", types.Int())
	tab.Observe("Point", types.NewStruct([]types.Field{{Name: "x", Type: types.Int()}}, false))
	tab.MarkTypeDefinition("Point")
	tab.Observe("y", types.Int())
	tab.MarkUsed("y")

	unused := tab.ExitScope(true)
	require.Len(t, unused, 2)
	assert.Equal(t, UnusedSymbol{Name: "Point", WarnOnly: true}, unused[0])
	assert.Equal(t, UnusedSymbol{Name: "x", WarnOnly: false}, unused[1])
}

func TestDeclare(t *testing.T) {
	tab := NewTable()
	tab.Observe("x", types.Int())
	tab.Declare("x")
	// Declared is a codegen guard; lookup behavior is unchanged.
	assert.True(t, tab.IsDeclared("x"))
}
