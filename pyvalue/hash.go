package pyvalue

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// hashKey returns a key equal for values that compare equal, so 1, 1.0 and
// True collide the way the language requires.
func hashKey(v Value) (string, error) {
	switch x := v.(type) {
	case NoneType:
		return "N", nil
	case Bool, Int:
		n, _ := asBig(v)
		return "i:" + n.String(), nil
	case Float:
		return realKey(float64(x)), nil
	case Complex:
		if imag(x) == 0 {
			return realKey(real(x)), nil
		}
		return "c:" + realKey(real(x)) + "," + realKey(imag(x)), nil
	case Str:
		return "s:" + strconv.Quote(string(x)), nil
	case Bytes:
		return "b:" + strconv.Quote(string(x)), nil
	case Tuple:
		parts := make([]string, len(x))
		for i, item := range x {
			k, err := hashKey(item)
			if err != nil {
				return "", err
			}
			parts[i] = k
		}
		return "t(" + strings.Join(parts, ",") + ")", nil
	case *FrozenSet:
		keys := append([]string(nil), x.table.keys...)
		sort.Strings(keys)
		return "F{" + strings.Join(keys, ",") + "}", nil
	}
	return "", typeError("unhashable type: '%s'", v.TypeName())
}

func realKey(f float64) string {
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) {
		n, _ := new(big.Float).SetFloat64(f).Int(nil)
		return "i:" + n.String()
	}
	return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
}

// hashTable keeps insertion order; sets and dicts share it.
type hashTable struct {
	keys   []string
	keyOf  map[string]Value
	valued map[string]Value
}

func newHashTable() *hashTable {
	return &hashTable{keyOf: make(map[string]Value), valued: make(map[string]Value)}
}

func (t *hashTable) len() int { return len(t.keys) }

func (t *hashTable) has(k string) bool {
	_, ok := t.keyOf[k]
	return ok
}

// put inserts or overwrites. An existing key object is kept, as the
// language does.
func (t *hashTable) put(k string, key, value Value) {
	if _, ok := t.keyOf[k]; !ok {
		t.keys = append(t.keys, k)
		t.keyOf[k] = key
	}
	t.valued[k] = value
}

func (t *hashTable) clone() *hashTable {
	out := newHashTable()
	for _, k := range t.keys {
		out.put(k, t.keyOf[k], t.valued[k])
	}
	return out
}

func (t *hashTable) items() []Value {
	out := make([]Value, len(t.keys))
	for i, k := range t.keys {
		out[i] = t.keyOf[k]
	}
	return out
}

// Set is a mutable set of hashable values.
type Set struct {
	table *hashTable
}

// FrozenSet is an immutable, hashable set.
type FrozenSet struct {
	table *hashTable
}

// Dict is an insertion-ordered mapping.
type Dict struct {
	table *hashTable
}

func (*Set) TypeName() string       { return "set" }
func (*FrozenSet) TypeName() string { return "frozenset" }
func (*Dict) TypeName() string      { return "dict" }

func buildTable(items []Value) (*hashTable, error) {
	t := newHashTable()
	for _, item := range items {
		k, err := hashKey(item)
		if err != nil {
			return nil, err
		}
		t.put(k, item, nil)
	}
	return t, nil
}

// NewSet builds a set; unhashable items raise TypeError.
func NewSet(items ...Value) (*Set, error) {
	t, err := buildTable(items)
	if err != nil {
		return nil, err
	}
	return &Set{table: t}, nil
}

func NewFrozenSet(items ...Value) (*FrozenSet, error) {
	t, err := buildTable(items)
	if err != nil {
		return nil, err
	}
	return &FrozenSet{table: t}, nil
}

// Items returns the members in insertion order.
func (s *Set) Items() []Value       { return s.table.items() }
func (s *FrozenSet) Items() []Value { return s.table.items() }

// NewDict builds a dict from alternating keys and values.
func NewDict(pairs ...Value) (*Dict, error) {
	if len(pairs)%2 != 0 {
		panic("pyvalue: NewDict needs key/value pairs")
	}
	t := newHashTable()
	for i := 0; i < len(pairs); i += 2 {
		k, err := hashKey(pairs[i])
		if err != nil {
			return nil, err
		}
		t.put(k, pairs[i], pairs[i+1])
	}
	return &Dict{table: t}, nil
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value { return d.table.items() }

// Get looks a key up. Unhashable keys raise TypeError.
func (d *Dict) Get(key Value) (Value, bool, error) {
	k, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	if !d.table.has(k) {
		return nil, false, nil
	}
	return d.table.valued[k], true, nil
}

func tableOf(v Value) (*hashTable, bool) {
	switch x := v.(type) {
	case *Set:
		return x.table, true
	case *FrozenSet:
		return x.table, true
	}
	return nil, false
}

func sameKind(like Value, t *hashTable) Value {
	if _, ok := like.(*FrozenSet); ok {
		return &FrozenSet{table: t}
	}
	return &Set{table: t}
}

// setOp implements -, &, ^ and | between set-likes. The result has the
// left operand's type.
func setOp(op byte, l, r Value) (Value, error) {
	a, ok := tableOf(l)
	if !ok {
		return nil, errNotImplemented
	}
	b, ok := tableOf(r)
	if !ok {
		return nil, errNotImplemented
	}

	out := newHashTable()
	switch op {
	case '-':
		for _, k := range a.keys {
			if !b.has(k) {
				out.put(k, a.keyOf[k], nil)
			}
		}
	case '&':
		for _, k := range a.keys {
			if b.has(k) {
				out.put(k, a.keyOf[k], nil)
			}
		}
	case '^':
		for _, k := range a.keys {
			if !b.has(k) {
				out.put(k, a.keyOf[k], nil)
			}
		}
		for _, k := range b.keys {
			if !a.has(k) {
				out.put(k, b.keyOf[k], nil)
			}
		}
	case '|':
		out = a.clone()
		for _, k := range b.keys {
			out.put(k, b.keyOf[k], nil)
		}
	}
	return sameKind(l, out), nil
}

func dictMerge(l, r Value) (Value, error) {
	a, ok := l.(*Dict)
	if !ok {
		return nil, errNotImplemented
	}
	b, ok := r.(*Dict)
	if !ok {
		return nil, errNotImplemented
	}
	out := a.table.clone()
	for _, k := range b.table.keys {
		out.put(k, b.table.keyOf[k], b.table.valued[k])
	}
	return &Dict{table: out}, nil
}
