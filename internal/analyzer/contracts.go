package analyzer

import (
	"sort"
	"strings"

	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/types"
)

// contractInfo is a contract declaration: its generic names and the
// procedure signatures implementations must provide.
type contractInfo struct {
	Generics []string
	Sigs     map[string]*types.Type
	SigOrder []string
	Loc      core.Location
}

// obligation is a (contract, concrete args) pair some call site requires an
// implementation for; verification runs after the whole walk.
type obligation struct {
	Name string
	Key  string
	Loc  core.Location
}

func argsKey(args []*types.Type) string {
	parts := make([]string, len(args))
	for i, t := range args {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func (a *walker) declareContractDef(d *ast.ContractDef) {
	if a.checkRedeclaration(d.Name, d.Loc) {
		return
	}
	a.tab.Observe(d.Name, types.NewContract(d.Name))
	a.tab.Declare(d.Name)
	a.tab.MarkTypeDefinition(d.Name)

	info := &contractInfo{Generics: d.Generics, Sigs: make(map[string]*types.Type), Loc: d.Loc}
	saved := a.generics
	a.generics = genericSet(d.Generics)
	for _, sig := range d.Sigs {
		if _, dup := info.Sigs[sig.Name]; dup {
			a.errorf(core.ErrRedeclaration, sig.Loc, "unexpected redeclaration of %s in contract %s", sig.Name, d.Name)
			continue
		}
		sigCopy := *sig
		sigCopy.Generics = append(append([]string{}, d.Generics...), sig.Generics...)
		info.Sigs[sig.Name] = a.procTypeFromDef(&sigCopy)
		info.SigOrder = append(info.SigOrder, sig.Name)
	}
	a.generics = saved
	a.session.contracts[d.Name] = info
}

// checkContractRef validates a requires clause entry.
func (a *walker) checkContractRef(name string, args []*types.Type, loc core.Location) {
	info, ok := a.session.contracts[name]
	if !ok {
		a.errorf(core.ErrUnknownIdent, loc, "no contract in scope named %s", name)
		return
	}
	if len(args) != len(info.Generics) {
		a.errorf(core.ErrArity, loc, "contract %s takes %d type argument(s), found %d", name, len(info.Generics), len(args))
	}
}

// declareImplement registers a contract implementation: each provided
// procedure must match the contract's signature after substituting the
// implementation's concrete type args, and no signature may be missing.
func (a *walker) declareImplement(d *ast.ImplementDef) {
	info, ok := a.session.contracts[d.Contract]
	if !ok {
		a.errorf(core.ErrUnknownIdent, d.Loc, "no contract in scope named %s", d.Contract)
		return
	}
	args := make([]*types.Type, len(d.Args))
	for i, te := range d.Args {
		args[i] = a.resolveType(te)
	}
	if len(args) != len(info.Generics) {
		a.errorf(core.ErrArity, d.Loc, "contract %s takes %d type argument(s), found %d", d.Contract, len(info.Generics), len(args))
		return
	}
	key := argsKey(args)
	if a.session.impls[d.Contract] == nil {
		a.session.impls[d.Contract] = make(map[string]bool)
	}
	if a.session.impls[d.Contract][key] {
		a.errorf(core.ErrRedeclaration, d.Loc, "duplicate implementation of %s<%s>", d.Contract, key)
		return
	}
	a.session.impls[d.Contract][key] = true

	mapping := make(map[string]*types.Type, len(info.Generics))
	for i, g := range info.Generics {
		mapping[g] = args[i]
	}

	provided := make(map[string]bool, len(d.Defs))
	for _, def := range d.Defs {
		expected, ok := info.Sigs[def.Name]
		if !ok {
			a.errorf(core.ErrUnknownIdent, def.Loc, "%s is not part of contract %s", def.Name, d.Contract)
			continue
		}
		provided[def.Name] = true
		actual := a.procTypeFromDef(def)
		want := types.Substitute(expected, mapping)
		if !want.Equals(actual) {
			a.session.Sink.Mismatch(def.Loc, want.String(), actual.String())
		}
		identity := implProcIdentity(d.Contract, key, def.Name)
		a.session.procTypes[identity] = actual
		a.session.declared[identity] = actual.Blocking
		a.session.procLocs[identity] = def.Loc
	}
	for _, name := range info.SigOrder {
		if !provided[name] {
			a.errorf(core.ErrMissingContract, d.Loc, "implementation of %s<%s> is missing %s", d.Contract, key, name)
		}
	}
}

func implProcIdentity(contract, key, name string) string {
	return contract + "<" + key + ">$" + name
}

// checkImplementBodies type-checks the implementation's procedure bodies
// under their disambiguated identities.
func (a *walker) checkImplementBodies(d *ast.ImplementDef) {
	info, ok := a.session.contracts[d.Contract]
	if !ok || len(d.Args) != len(info.Generics) {
		return
	}
	args := make([]*types.Type, len(d.Args))
	for i, te := range d.Args {
		args[i] = a.resolveType(te)
	}
	key := argsKey(args)
	for _, def := range d.Defs {
		if _, ok := info.Sigs[def.Name]; !ok {
			continue
		}
		a.checkProcBodyAs(implProcIdentity(d.Contract, key, def.Name), def)
	}
}

// collectObligations substitutes the callee's required-contract table and
// either records fully concrete obligations for the final verification or,
// when generics remain (the caller is itself generic), checks that the
// caller's own requires clause covers them.
func (a *walker) collectObligations(requires []types.ContractRef, subst map[string]*types.Type, loc core.Location) {
	for _, req := range requires {
		concrete := true
		unknowable := false
		args := make([]*types.Type, len(req.Args))
		for i, t := range req.Args {
			args[i] = types.Substitute(t, subst)
			if containsGeneric(args[i]) {
				concrete = false
			}
			if args[i].Kind == types.KindUnknowable {
				unknowable = true
			}
		}
		if unknowable {
			continue
		}
		if concrete {
			a.session.obligations = append(a.session.obligations, obligation{Name: req.Name, Key: argsKey(args), Loc: loc})
			continue
		}
		if !a.coveredByCurrentRequires(req.Name, args) {
			a.errorf(core.ErrMissingContract, loc,
				"%s requires %s<%s>; add it to the enclosing procedure's requires clause",
				a.currentProc, req.Name, argsKey(args))
		}
	}
}

func (a *walker) coveredByCurrentRequires(name string, args []*types.Type) bool {
	for _, req := range a.currentRequires {
		if req.Name != name || len(req.Args) != len(args) {
			continue
		}
		match := true
		for i := range args {
			if !req.Args[i].Equals(args[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func containsGeneric(t *types.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind == types.KindGeneric {
		return true
	}
	for _, c := range []*types.Type{t.Elem, t.Key, t.Value, t.Return} {
		if containsGeneric(c) {
			return true
		}
	}
	for _, f := range t.Fields {
		if containsGeneric(f.Type) {
			return true
		}
	}
	for _, m := range t.Members {
		if containsGeneric(m) {
			return true
		}
	}
	for _, arg := range t.Args {
		if containsGeneric(arg) {
			return true
		}
	}
	return false
}

// verifyObligations runs once per compilation: every recorded (contract,
// concrete args) pair needs a registered implementation.
func (s *Session) verifyObligations() {
	for _, ob := range s.obligations {
		if s.impls[ob.Name][ob.Key] {
			continue
		}
		s.Sink.TypeErrorf(core.ErrMissingContract, ob.Loc,
			"no implementation of %s<%s> in scope", ob.Name, ob.Key)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
