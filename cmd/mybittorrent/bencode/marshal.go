package bencode

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// TagName is the struct tag read by Marshal and Unmarshal, e.g. `bencode:"piece length"`.
const TagName = "bencode"

var bytesType = reflect.TypeOf([]byte(nil))

// Marshal encodes a Go value in canonical bencode. Structs are flattened into
// dictionaries keyed by their bencode tags.
func Marshal(in any) ([]byte, error) {
	v, err := FromGo(in)
	if err != nil {
		return nil, err
	}
	return Encode(v)
}

// FromGo converts strings, byte slices and arrays, integers, slices, string-keyed maps
// and tagged structs into a Value.
func FromGo(in any) (Value, error) {
	if v, ok := in.(Value); ok {
		return v, nil
	}
	return fromReflect(reflect.ValueOf(in))
}

func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return nil, fmt.Errorf("cannot encode nil value")
	}
	if v, ok := rv.Interface().(Value); ok {
		return v, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot encode nil %s", rv.Type())
		}
		return fromReflect(rv.Elem())

	case reflect.String:
		return String(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return Integer(u), nil

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return String(b), nil
		}
		list := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := fromReflect(rv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list item %d: %w", i, err)
			}
			list[i] = item
		}
		return list, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		dict := make(Dict, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			item, err := fromReflect(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("dictionary key %q: %w", key, err)
			}
			dict[key] = item
		}
		return dict, nil

	case reflect.Struct:
		fields := make(map[string]any)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: TagName,
			Result:  &fields,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(rv.Interface()); err != nil {
			return nil, fmt.Errorf("failed to flatten %s: %w", rv.Type(), err)
		}
		return fromReflect(reflect.ValueOf(fields))

	default:
		return nil, fmt.Errorf("unsupported type for bencode encoding: %s", rv.Type())
	}
}

// Native converts v into plain Go values: []byte, int64, []any and map[string]any.
func Native(value Value) any {
	switch v := value.(type) {
	case String:
		return []byte(v)
	case Integer:
		return int64(v)
	case List:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = Native(item)
		}
		return result
	case Dict:
		result := make(map[string]any, len(v))
		for key, item := range v {
			result[key] = Native(item)
		}
		return result
	default:
		return nil
	}
}

// Unmarshal projects a decoded value into out, which must be a pointer. Struct fields
// are matched by their bencode tag; byte strings may land in string or []byte fields and
// keys without a matching field are ignored.
func Unmarshal(v Value, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    TagName,
		DecodeHook: bytesToStringHook,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(Native(v))
}

func bytesToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from == bytesType && to.Kind() == reflect.String {
		return string(data.([]byte)), nil
	}
	return data, nil
}
