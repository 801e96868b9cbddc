package types

import "fmt"

// Substitute replaces generic placeholders in t by their mapping entries,
// rebuilding only the paths that change. Unmapped placeholders survive.
func Substitute(t *Type, mapping map[string]*Type) *Type {
	if t == nil || len(mapping) == 0 {
		return t
	}
	switch t.Kind {
	case KindGeneric:
		if concrete, ok := mapping[t.TypeName]; ok {
			return concrete
		}
		return t
	case KindList, KindSet:
		clone := *t
		clone.Elem = Substitute(t.Elem, mapping)
		return &clone
	case KindMap:
		clone := *t
		clone.Key = Substitute(t.Key, mapping)
		clone.Value = Substitute(t.Value, mapping)
		return &clone
	case KindFuture:
		clone := *t
		clone.Elem = Substitute(t.Elem, mapping)
		return &clone
	case KindTuple:
		clone := *t
		clone.Members = substituteAll(t.Members, mapping)
		return &clone
	case KindOneof:
		// Substitution can collapse variants to the same concrete type;
		// rebuild through the constructor so ordering stays canonical.
		o, err := NewOneof(substituteAll(t.Members, mapping))
		if err != nil {
			return Unknowable()
		}
		return o
	case KindStruct:
		clone := *t
		clone.Fields = make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			clone.Fields[i] = Field{Name: f.Name, Type: Substitute(f.Type, mapping)}
		}
		return &clone
	case KindUserDef:
		clone := *t
		clone.Args = substituteAll(t.Args, mapping)
		return &clone
	case KindFunction, KindProvider, KindConsumer:
		clone := *t
		clone.Args = substituteAll(t.Args, mapping)
		clone.Return = Substitute(t.Return, mapping)
		clone.Requires = make([]ContractRef, len(t.Requires))
		for i, req := range t.Requires {
			clone.Requires[i] = ContractRef{Name: req.Name, Args: substituteAll(req.Args, mapping)}
		}
		return &clone
	default:
		return t
	}
}

func substituteAll(ts []*Type, mapping map[string]*Type) []*Type {
	out := make([]*Type, len(ts))
	for i, t := range ts {
		out[i] = Substitute(t, mapping)
	}
	return out
}

// Unify matches a (possibly generic) declared type against a concrete type,
// accumulating placeholder assignments into subst. A placeholder already
// bound to a different concrete type, or any structural disagreement, fails.
func Unify(declared, concrete *Type, subst map[string]*Type) error {
	if declared == nil && concrete == nil {
		return nil
	}
	if declared == nil || concrete == nil {
		return fmt.Errorf("cannot unify %s with %s", declared, concrete)
	}
	if declared.Kind == KindGeneric {
		if prev, ok := subst[declared.TypeName]; ok {
			if !prev.Equals(concrete) {
				return fmt.Errorf("generic arg %s inferred as both %s and %s", declared.TypeName, prev, concrete)
			}
			return nil
		}
		subst[declared.TypeName] = concrete
		return nil
	}
	if declared.Kind != concrete.Kind || declared.Mutable != concrete.Mutable {
		return fmt.Errorf("cannot unify %s with %s", declared.DiagnosticString(subst), concrete)
	}
	switch declared.Kind {
	case KindList, KindSet, KindFuture:
		return Unify(declared.Elem, concrete.Elem, subst)
	case KindMap:
		if err := Unify(declared.Key, concrete.Key, subst); err != nil {
			return err
		}
		return Unify(declared.Value, concrete.Value, subst)
	case KindTuple, KindOneof:
		return unifyAll(declared.Members, concrete.Members, subst, declared, concrete)
	case KindStruct:
		if len(declared.Fields) != len(concrete.Fields) {
			return fmt.Errorf("cannot unify %s with %s", declared, concrete)
		}
		for i := range declared.Fields {
			if declared.Fields[i].Name != concrete.Fields[i].Name {
				return fmt.Errorf("cannot unify %s with %s", declared, concrete)
			}
			if err := Unify(declared.Fields[i].Type, concrete.Fields[i].Type, subst); err != nil {
				return err
			}
		}
		return nil
	case KindUserDef:
		if declared.TypeName != concrete.TypeName {
			return fmt.Errorf("cannot unify %s with %s", declared, concrete)
		}
		return unifyAll(declared.Args, concrete.Args, subst, declared, concrete)
	case KindFunction, KindProvider, KindConsumer:
		if err := unifyAll(declared.Args, concrete.Args, subst, declared, concrete); err != nil {
			return err
		}
		return Unify(declared.Return, concrete.Return, subst)
	default:
		if !declared.Equals(concrete) {
			return fmt.Errorf("cannot unify %s with %s", declared, concrete)
		}
		return nil
	}
}

func unifyAll(declared, concrete []*Type, subst map[string]*Type, dt, ct *Type) error {
	if len(declared) != len(concrete) {
		return fmt.Errorf("cannot unify %s with %s", dt, ct)
	}
	for i := range declared {
		if err := Unify(declared[i], concrete[i], subst); err != nil {
			return err
		}
	}
	return nil
}
