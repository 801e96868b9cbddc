package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// String is the canonical user-facing form. It is deterministic and stable
// across runs: oneof variants print in sorted order and struct fields in
// declaration order.
func (t *Type) String() string {
	return t.format(nil)
}

// DiagnosticString is the canonical form with generic placeholders replaced
// through mapping. It exists purely to produce better error text (and to
// drive codegen of parameterized user-defined types); a nil mapping degrades
// to String.
func (t *Type) DiagnosticString(mapping map[string]*Type) string {
	return t.format(mapping)
}

func (t *Type) format(mapping map[string]*Type) string {
	if t == nil {
		return "<nil>"
	}
	mut := ""
	if t.Mutable {
		mut = "mut "
	}
	switch t.Kind {
	case KindInt, KindFloat, KindString, KindBool, KindModule, KindNothing, KindUndecided, KindUnknowable:
		return string(t.Kind)
	case KindList:
		return mut + "list<" + t.Elem.format(mapping) + ">"
	case KindSet:
		return mut + "set<" + t.Elem.format(mapping) + ">"
	case KindMap:
		return mut + "map<" + t.Key.format(mapping) + ", " + t.Value.format(mapping) + ">"
	case KindTuple:
		return mut + "tuple<" + joinTypes(t.Members, mapping, ", ") + ">"
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + f.Type.format(mapping)
		}
		return mut + "struct{" + strings.Join(parts, ", ") + "}"
	case KindOneof:
		return "oneof<" + joinTypes(t.Members, mapping, "|") + ">"
	case KindFuture:
		return "future<" + t.Elem.format(mapping) + ">"
	case KindUserDef:
		if len(t.Args) == 0 {
			return t.TypeName
		}
		return t.TypeName + "<" + joinTypes(t.Args, mapping, ", ") + ">"
	case KindFunction:
		return t.blockingPrefix() + "function<" + joinTypes(t.Args, mapping, ", ") + " -> " + t.Return.format(mapping) + ">"
	case KindProvider:
		return t.blockingPrefix() + "provider<" + t.Return.format(mapping) + ">"
	case KindConsumer:
		return t.blockingPrefix() + "consumer<" + joinTypes(t.Args, mapping, ", ") + ">"
	case KindGeneric:
		if mapping != nil {
			if concrete, ok := mapping[t.TypeName]; ok {
				return concrete.format(mapping)
			}
		}
		return t.TypeName
	case KindContract:
		return "contract:" + t.TypeName
	case KindContrImpl:
		return "impl:" + t.TypeName
	}
	panic(fmt.Sprintf("unreachable type kind %q", t.Kind))
}

func (t *Type) blockingPrefix() string {
	switch t.Blocking {
	case BlockingAlways:
		return "blocking "
	case BlockingGeneric:
		if len(t.BlockingArgs) == 0 {
			return "blocking? "
		}
		idx := make([]string, len(t.BlockingArgs))
		for i, a := range t.BlockingArgs {
			idx[i] = strconv.Itoa(a)
		}
		return "blocking:" + strings.Join(idx, "|") + " "
	}
	return ""
}

func joinTypes(ts []*Type, mapping map[string]*Type, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.format(mapping)
	}
	return strings.Join(parts, sep)
}

func sortedByCanonical(ts []*Type) []*Type {
	out := make([]*Type, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// TargetString is the type's form in emitted target (Go) source. Generic
// parameters must be concrete by emission time, so the mapping is consulted
// the same way DiagnosticString does.
func (t *Type) TargetString(mapping map[string]*Type) string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNothing:
		return "struct{}"
	case KindModule, KindUndecided, KindUnknowable:
		return "any"
	case KindList:
		return "[]" + t.Elem.TargetString(mapping)
	case KindSet:
		return "map[" + t.Elem.TargetString(mapping) + "]struct{}"
	case KindMap:
		return "map[" + t.Key.TargetString(mapping) + "]" + t.Value.TargetString(mapping)
	case KindTuple, KindStruct:
		var fields []string
		if t.Kind == KindTuple {
			for i, m := range t.Members {
				fields = append(fields, fmt.Sprintf("F%d %s", i, m.TargetString(mapping)))
			}
		} else {
			for _, f := range t.Fields {
				fields = append(fields, fmt.Sprintf("%s %s", exportName(f.Name), f.Type.TargetString(mapping)))
			}
		}
		return "struct{ " + strings.Join(fields, "; ") + " }"
	case KindOneof:
		return "quillrt.OneOf"
	case KindFuture:
		return "quillrt.Future[" + t.Elem.TargetString(mapping) + "]"
	case KindUserDef:
		if len(t.Args) == 0 {
			return exportName(t.TypeName)
		}
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.TargetString(mapping)
		}
		return exportName(t.TypeName) + "[" + strings.Join(args, ", ") + "]"
	case KindFunction, KindProvider, KindConsumer:
		var args []string
		for _, a := range t.Args {
			args = append(args, a.TargetString(mapping))
		}
		ret := ""
		if t.Return != nil {
			ret = " " + t.Return.TargetString(mapping)
		}
		return "func(" + strings.Join(args, ", ") + ")" + ret
	case KindGeneric:
		if mapping != nil {
			if concrete, ok := mapping[t.TypeName]; ok {
				return concrete.TargetString(mapping)
			}
		}
		return t.TypeName
	case KindContract, KindContrImpl:
		return "any"
	}
	panic(fmt.Sprintf("unreachable type kind %q", t.Kind))
}

func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
