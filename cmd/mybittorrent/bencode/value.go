package bencode

import (
	"fmt"
	"slices"
)

// Value is one of String, Integer, List or Dict.
type Value interface {
	Kind() Kind
	isValue()
}

// String is a bencoded byte string. It holds raw bytes and is not assumed to be UTF-8.
type String []byte

// Integer is a bencoded signed integer.
type Integer int64

// List is an ordered sequence of values.
type List []Value

// Dict maps byte-string keys to values. Keys are emitted in ascending byte order.
type Dict map[string]Value

func (String) isValue()  {}
func (Integer) isValue() {}
func (List) isValue()    {}
func (Dict) isValue()    {}

func (String) Kind() Kind  { return KindString }
func (Integer) Kind() Kind { return KindInteger }
func (List) Kind() Kind    { return KindList }
func (Dict) Kind() Kind    { return KindDict }

type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "byte string"
	case KindInteger:
		return "integer"
	case KindList:
		return "list"
	case KindDict:
		return "dictionary"
	default:
		return "unknown"
	}
}

// Keys returns the dictionary keys in the order they are encoded.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FieldError reports a dictionary entry that is absent or has the wrong kind.
type FieldError struct {
	Key     string
	Want    Kind
	Got     Kind
	Missing bool
}

func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing key %q", e.Key)
	}
	return fmt.Sprintf("key %q: expected %s, got %s", e.Key, e.Want, e.Got)
}

// Require looks up key and checks that it holds a value of the given kind.
func (d Dict) Require(key string, want Kind) (Value, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, &FieldError{Key: key, Want: want, Missing: true}
	}
	if v.Kind() != want {
		return nil, &FieldError{Key: key, Want: want, Got: v.Kind()}
	}
	return v, nil
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && string(a) == string(b)
	case Integer:
		b, ok := b.(Integer)
		return ok && a == b
	case List:
		b, ok := b.(List)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case Dict:
		b, ok := b.(Dict)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
