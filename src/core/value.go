package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// A ValueType identifies one of the variant kinds spec §4.B enumerates.
// Like please's parse/asp pyObject.Type(), this is deliberately a small,
// closed set rather than an open interface hierarchy: the match engine and
// ad-hoc recipes need to be able to switch on it exhaustively.
type ValueType int

const (
	// TypeUntyped marks a raw, not-yet-typified "names" value (spec
	// §4.B: "a raw names (untyped) vector"; "type pointer (possibly
	// null = untyped)").
	TypeUntyped ValueType = iota
	TypeBool
	TypeInt64
	TypeUint64
	TypeString
	TypePathValue
	TypeDirPathValue
	TypeAbsDirPathValue
	TypeNameValue
	TypeNamePair
	TypeProcessPath
	TypeProcessPathEx
	TypeTargetTriplet
	TypeProjectName
	TypeJSON
	TypeList
	TypeMap
)

func (vt ValueType) String() string {
	switch vt {
	case TypeUntyped:
		return "names"
	case TypeBool:
		return "bool"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeString:
		return "string"
	case TypePathValue:
		return "path"
	case TypeDirPathValue:
		return "dir_path"
	case TypeAbsDirPathValue:
		return "abs_dir_path"
	case TypeNameValue:
		return "name"
	case TypeNamePair:
		return "name_pair"
	case TypeProcessPath:
		return "process_path"
	case TypeProcessPathEx:
		return "process_path_ex"
	case TypeTargetTriplet:
		return "target_triplet"
	case TypeProjectName:
		return "project_name"
	case TypeJSON:
		return "json"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// A Value is a variant-typed variable value (spec §4.B). Rather than a
// single struct with a v-table of function pointers (dtor/copy_ctor/
// copy_assign/assign/append/prepend/reverse/compare/empty/subscript/
// iterate, per the spec), we follow please's parse/asp pyObject pattern:
// an interface each concrete kind implements, which is the idiomatic Go
// equivalent of a hand-rolled v-table and gets us the dtor/copy_ctor pair
// for free from the language itself.
type Value interface {
	fmt.Stringer
	// Type returns this value's variant kind.
	Type() ValueType
	// IsNull reports whether this is the untyped/absent value (the
	// spec's "a null flag").
	IsNull() bool
	// Empty reports whether this value is the empty form of its type
	// (empty string, zero-length list, zero int, etc).
	Empty() bool
	// Compare orders this value against other of the same type; panics
	// if the types differ, mirroring the spec's requirement that
	// comparison is only ever invoked after typification has made both
	// sides agree.
	Compare(other Value) int
}

// Appendable is implemented by values whose Append/Prepend operations are
// meaningful (lists, strings, name vectors).
type Appendable interface {
	Value
	Append(other Value) Value
	Prepend(other Value) Value
}

// Reversible is implemented by values that support in-place reversal
// (lists).
type Reversible interface {
	Value
	Reverse() Value
}

// Iterable is implemented by values that can be iterated (lists, maps,
// json arrays/objects).
type Iterable interface {
	Value
	Len() int
	Item(i int) Value
}

// Subscriptable is implemented by values supporting index/key lookup.
type Subscriptable interface {
	Value
	Subscript(key Value) (Value, bool)
}

// BoolValue is the TypeBool variant.
type BoolValue bool

func (b BoolValue) Type() ValueType  { return TypeBool }
func (b BoolValue) IsNull() bool     { return false }
func (b BoolValue) Empty() bool      { return !bool(b) }
func (b BoolValue) String() string   { return fmt.Sprintf("%t", bool(b)) }
func (b BoolValue) Compare(o Value) int {
	ob := o.(BoolValue)
	if b == ob {
		return 0
	}
	if !bool(b) {
		return -1
	}
	return 1
}

// Int64Value is the TypeInt64 variant.
type Int64Value int64

func (i Int64Value) Type() ValueType { return TypeInt64 }
func (i Int64Value) IsNull() bool    { return false }
func (i Int64Value) Empty() bool     { return i == 0 }
func (i Int64Value) String() string  { return fmt.Sprintf("%d", int64(i)) }
func (i Int64Value) Compare(o Value) int {
	oi := o.(Int64Value)
	switch {
	case i < oi:
		return -1
	case i > oi:
		return 1
	default:
		return 0
	}
}

// StringValue is the TypeString variant.
type StringValue string

func (s StringValue) Type() ValueType { return TypeString }
func (s StringValue) IsNull() bool    { return false }
func (s StringValue) Empty() bool     { return s == "" }
func (s StringValue) String() string  { return string(s) }
func (s StringValue) Compare(o Value) int {
	return strings.Compare(string(s), string(o.(StringValue)))
}
func (s StringValue) Append(o Value) Value  { return s + StringValue(o.String()) }
func (s StringValue) Prepend(o Value) Value { return StringValue(o.String()) + s }

// PathValue is the TypePathValue variant, wrapping core.Path.
type PathValue Path

func (p PathValue) Type() ValueType     { return TypePathValue }
func (p PathValue) IsNull() bool        { return false }
func (p PathValue) Empty() bool         { return p == "" }
func (p PathValue) String() string      { return string(p) }
func (p PathValue) Compare(o Value) int { return strings.Compare(string(p), string(o.(PathValue))) }

// ListValue is the generic TypeList variant: an ordered, homogeneous (by
// convention, not enforced) sequence of values.
type ListValue []Value

func (l ListValue) Type() ValueType { return TypeList }
func (l ListValue) IsNull() bool    { return false }
func (l ListValue) Empty() bool     { return len(l) == 0 }
func (l ListValue) Len() int        { return len(l) }
func (l ListValue) Item(i int) Value { return l[i] }
func (l ListValue) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (l ListValue) Compare(o Value) int {
	ol := o.(ListValue)
	for i := 0; i < len(l) && i < len(ol); i++ {
		if c := l[i].Compare(ol[i]); c != 0 {
			return c
		}
	}
	return len(l) - len(ol)
}
func (l ListValue) Append(o Value) Value {
	switch ov := o.(type) {
	case ListValue:
		out := make(ListValue, 0, len(l)+len(ov))
		out = append(out, l...)
		out = append(out, ov...)
		return out
	default:
		out := make(ListValue, 0, len(l)+1)
		out = append(out, l...)
		return append(out, ov)
	}
}
func (l ListValue) Prepend(o Value) Value {
	switch ov := o.(type) {
	case ListValue:
		out := make(ListValue, 0, len(l)+len(ov))
		out = append(out, ov...)
		return append(out, l...)
	default:
		out := make(ListValue, 0, len(l)+1)
		out = append(out, ov)
		return append(out, l...)
	}
}
func (l ListValue) Reverse() Value {
	out := make(ListValue, len(l))
	for i, v := range l {
		out[len(l)-1-i] = v
	}
	return out
}

// MapValue is the generic TypeMap variant, string-keyed.
type MapValue map[string]Value

func (m MapValue) Type() ValueType { return TypeMap }
func (m MapValue) IsNull() bool    { return false }
func (m MapValue) Empty() bool     { return len(m) == 0 }
func (m MapValue) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + m[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (m MapValue) Compare(o Value) int {
	// Maps only support equality, per the spec's variant semantics;
	// anything else is a programming error (spec §7 category 3).
	om, ok := o.(MapValue)
	if !ok || len(m) != len(om) {
		return 1
	}
	for k, v := range m {
		ov, present := om[k]
		if !present || v.Compare(ov) != 0 {
			return 1
		}
	}
	return 0
}
func (m MapValue) Subscript(key Value) (Value, bool) {
	v, ok := m[key.String()]
	return v, ok
}

// NamesValue is the untyped "raw names vector" (spec §4.B). It is the only
// value ever constructed directly by a loader/parser before typification,
// and the only legal argument to Typify.
type NamesValue []string

func (n NamesValue) Type() ValueType  { return TypeUntyped }
func (n NamesValue) IsNull() bool     { return n == nil }
func (n NamesValue) Empty() bool      { return len(n) == 0 }
func (n NamesValue) Len() int         { return len(n) }
func (n NamesValue) Item(i int) Value { return StringValue(n[i]) }
func (n NamesValue) String() string   { return strings.Join(n, " ") }
func (n NamesValue) Compare(o Value) int {
	on := o.(NamesValue)
	for i := 0; i < len(n) && i < len(on); i++ {
		if c := strings.Compare(n[i], on[i]); c != 0 {
			return c
		}
	}
	return len(n) - len(on)
}

// A Cell is a single addressable variable slot: the thing that can hold
// either an untyped NamesValue or, after Typify, a concrete typed Value.
// Variable maps store *Cell rather than Value directly so that
// typification is a real, synchronized, in-place mutation as spec §4.B
// requires ("converts an untyped names value in place ... is the only
// supported type change").
type Cell struct {
	mu  sync.Mutex
	val Value
}

// NewCell wraps an initial value (typically a NamesValue) in a Cell.
func NewCell(v Value) *Cell { return &Cell{val: v} }

// Get returns the cell's current value.
func (c *Cell) Get() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// Set overwrites the cell's value outright (used for rule-specific
// variables that are never typified from names, only ever assigned a
// concrete typed value directly).
func (c *Cell) Set(v Value) {
	c.mu.Lock()
	c.val = v
	c.mu.Unlock()
}

// Typify converts this cell's value from NamesValue into a concrete typed
// Value using convert, in place, exactly once. A cell already holding a
// typed value is left untouched and convert is not called again — spec
// §4.B: "the only supported type change", implicitly idempotent once done.
func (c *Cell) Typify(convert func(NamesValue) (Value, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	names, ok := c.val.(NamesValue)
	if !ok {
		return nil // already typified (or never was names to begin with)
	}
	v, err := convert(names)
	if err != nil {
		return err
	}
	c.val = v
	return nil
}
