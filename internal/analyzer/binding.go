package analyzer

import (
	"github.com/oxhq/quill/internal/types"
)

// ModuleAPI is the checker-facing view of one dependency module: its unique
// descriptor plus the exported surface decoded from the archive store. The
// checker never reads implementation sources, only this.
type ModuleAPI struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`

	Types      []ExportedType `json:"types,omitempty"`
	Procedures []ExportedProc `json:"procedures,omitempty"`

	// Initializers and unwrappers exported for user-defined types, keyed by
	// the unqualified type name.
	Initializers map[string][]string `json:"initializers,omitempty"`
	Unwrappers   map[string][]string `json:"unwrappers,omitempty"`
}

// ExportedType is a user-defined type a module exports. Bodies reference
// other exported types by their qualified registry keys.
type ExportedType struct {
	Name   string      `json:"name"`
	Params []string    `json:"params,omitempty"`
	Body   *types.Type `json:"body"`
}

// ExportedProc is a procedure signature a module exports.
type ExportedProc struct {
	Name string      `json:"name"`
	Type *types.Type `json:"type"`
}

// Qualified is the module's unique identity: project namespace + name.
func (m ModuleAPI) Qualified() string { return m.Namespace + "$" + m.Name }

// TypeKey is the registry key an exported type registers under.
func (m ModuleAPI) TypeKey(typeName string) string { return m.Qualified() + "$" + typeName }

// DepProcName disambiguates an exported procedure in the symbol table.
func DepProcName(module, proc string) string { return "DEP$" + module + "$" + proc }

// selfModuleKey is the sentinel under which the module being compiled
// records its own qualified identity, so a type name defined locally never
// collides with a dependency export.
const selfModuleKey = "$SELF"

// AddDependency registers a dependency module for the next Analyze run.
func (s *Session) AddDependency(api ModuleAPI) {
	s.deps = append(s.deps, api)
}

// SetSelfModule records the identity of the module being compiled.
func (s *Session) SetSelfModule(namespace, name string) {
	s.selfModule = ModuleAPI{Namespace: namespace, Name: name}.Qualified()
}

// SelfModule returns the recorded identity, "" when compiling a bare
// program.
func (s *Session) SelfModule() string { return s.selfModule }

// bindDependencies seeds the module-level scope from every dependency.
// All type definitions from all deps register first; procedure signatures
// bind after, so a signature can mention any dep's types.
func (a *walker) bindDependencies() {
	s := a.session
	for _, dep := range s.deps {
		for _, et := range dep.Types {
			s.Registries.Register(dep.TypeKey(et.Name), et.Params, et.Body)
		}
		for typeName, procs := range dep.Initializers {
			key := dep.TypeKey(typeName)
			s.Initializers[key] = append(s.Initializers[key], procs...)
		}
		for typeName, procs := range dep.Unwrappers {
			key := dep.TypeKey(typeName)
			s.Unwrappers[key] = append(s.Unwrappers[key], procs...)
		}
	}
	for _, dep := range s.deps {
		a.tab.Observe(dep.Name, types.Module())
		a.tab.Declare(dep.Name)
		a.tab.Initialize(dep.Name)
		a.tab.MarkUsed(dep.Name)
		for _, ep := range dep.Procedures {
			bound := DepProcName(dep.Name, ep.Name)
			a.tab.Observe(bound, ep.Type)
			a.tab.Declare(bound)
			a.tab.MarkUsed(bound)
			s.procTypes[bound] = ep.Type
			s.declared[bound] = ep.Type.Blocking
		}
	}
	if s.selfModule != "" {
		s.Registries.Register(selfModuleKey, nil, types.NewUserDefined(s.selfModule))
	}
}

// bindBuiltins seeds the language's built-in procedures. They resolve like
// any other procedure binding and cross procedure boundaries freely.
func (a *walker) bindBuiltins() {
	builtins := []struct {
		name string
		typ  *types.Type
	}{
		{"print", types.NewConsumer(types.ProcSpec{
			Args:     []*types.Type{types.NewGenericParam("T")},
			Generics: []string{"T"},
		})},
		{"len", types.NewFunction(types.ProcSpec{
			Args:     []*types.Type{types.NewGenericParam("T")},
			Return:   types.Int(),
			Generics: []string{"T"},
		})},
		{"sleep", types.NewConsumer(types.ProcSpec{
			Args:     []*types.Type{types.Int()},
			Blocking: types.BlockingAlways,
		})},
	}
	for _, b := range builtins {
		a.tab.Observe(b.name, b.typ)
		a.tab.Declare(b.name)
		a.tab.MarkUsed(b.name)
		a.session.procTypes[b.name] = b.typ
		a.session.declared[b.name] = b.typ.Blocking
	}
}
