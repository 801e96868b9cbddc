package types

// IsDeeplyImmutable reports whether t carries no mutable=true anywhere in its
// transitive structure, looking through user-defined wrappers via reg.
// Primitive kinds are trivially deeply immutable.
func (t *Type) IsDeeplyImmutable(reg *Registries) bool {
	return t.deeplyImmutable(reg, map[string]bool{})
}

// visiting guards recursion through self-referential nominal types: a name
// already on the path is assumed immutable, so only a genuinely mutable slot
// elsewhere can fail the check.
func (t *Type) deeplyImmutable(reg *Registries, visiting map[string]bool) bool {
	if t == nil {
		return true
	}
	switch t.Kind {
	case KindList, KindSet, KindMap, KindTuple, KindStruct:
		if t.Mutable {
			return false
		}
		for _, child := range t.slotTypes() {
			if !child.deeplyImmutable(reg, visiting) {
				return false
			}
		}
		return true
	case KindOneof:
		for _, v := range t.Members {
			if !v.deeplyImmutable(reg, visiting) {
				return false
			}
		}
		return true
	case KindFuture:
		return t.Elem.deeplyImmutable(reg, visiting)
	case KindUserDef:
		if visiting[t.TypeName] {
			return true
		}
		body, ok := reg.ResolveBody(t)
		if !ok {
			// Unregistered nominal type: the checker has already reported
			// the unknown name, keep going without cascading.
			return true
		}
		visiting[t.TypeName] = true
		defer delete(visiting, t.TypeName)
		return body.deeplyImmutable(reg, visiting)
	default:
		// Primitives, procedures, generic params and the checker meta-types
		// carry no mutability anywhere.
		return true
	}
}

// ToDeeplyImmutable returns the deeply-immutable variant of t, rebuilding
// container kinds with every mutability flag cleared. The second result is
// false when no such variant exists: a future whose payload is not deeply
// immutable, or a user-defined type whose wrapped body is not.
func (t *Type) ToDeeplyImmutable(reg *Registries) (*Type, bool) {
	if t == nil {
		return nil, false
	}
	switch t.Kind {
	case KindList:
		elem, ok := t.Elem.ToDeeplyImmutable(reg)
		if !ok {
			return nil, false
		}
		return NewList(elem, false), true
	case KindSet:
		elem, ok := t.Elem.ToDeeplyImmutable(reg)
		if !ok {
			return nil, false
		}
		s, err := NewSet(elem, false)
		return s, err == nil
	case KindMap:
		key, ok := t.Key.ToDeeplyImmutable(reg)
		if !ok {
			return nil, false
		}
		value, ok := t.Value.ToDeeplyImmutable(reg)
		if !ok {
			return nil, false
		}
		m, err := NewMap(key, value, false)
		return m, err == nil
	case KindTuple:
		members, ok := allDeeplyImmutable(t.Members, reg)
		if !ok {
			return nil, false
		}
		return NewTuple(members, false), true
	case KindStruct:
		fields := make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			ft, ok := f.Type.ToDeeplyImmutable(reg)
			if !ok {
				return nil, false
			}
			fields[i] = Field{Name: f.Name, Type: ft}
		}
		return NewStruct(fields, false), true
	case KindOneof:
		members, ok := allDeeplyImmutable(t.Members, reg)
		if !ok {
			return nil, false
		}
		o, err := NewOneof(members)
		return o, err == nil
	case KindFuture:
		// A future's payload cannot be coerced after the fact; it either
		// already is deeply immutable or no variant exists.
		if !t.Elem.IsDeeplyImmutable(reg) {
			return nil, false
		}
		return t, true
	case KindUserDef:
		// Nominal types cannot be rebuilt structurally; the wrapped body
		// decides.
		if !t.IsDeeplyImmutable(reg) {
			return nil, false
		}
		return t, true
	default:
		return t, true
	}
}

func allDeeplyImmutable(ts []*Type, reg *Registries) ([]*Type, bool) {
	out := make([]*Type, len(ts))
	for i, t := range ts {
		conv, ok := t.ToDeeplyImmutable(reg)
		if !ok {
			return nil, false
		}
		out[i] = conv
	}
	return out, true
}

// DeeplyImmutableRecommendation renders the deeply-immutable variant of t for
// use as a diagnostic suggestion. The second result is false when no variant
// exists.
func DeeplyImmutableRecommendation(t *Type, reg *Registries) (string, bool) {
	variant, ok := t.ToDeeplyImmutable(reg)
	if !ok {
		return "", false
	}
	return variant.String(), true
}

// slotTypes returns the nested types of every parameter slot, in slot order.
func (t *Type) slotTypes() []*Type {
	var out []*Type
	if t.Elem != nil {
		out = append(out, t.Elem)
	}
	if t.Key != nil {
		out = append(out, t.Key)
	}
	if t.Value != nil {
		out = append(out, t.Value)
	}
	for _, f := range t.Fields {
		out = append(out, f.Type)
	}
	out = append(out, t.Members...)
	return out
}
