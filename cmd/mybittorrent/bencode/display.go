package bencode

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// EncodingError reports a byte string that is not valid UTF-8 where text is required.
type EncodingError struct {
	Path string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("bencode: byte string at %s is not valid UTF-8", e.Path)
}

// ToDisplay converts v into plain Go values suitable for json.Marshal: byte strings
// become string, integers int64, lists []any and dictionaries map[string]any.
// Byte strings (including dictionary keys) must be valid UTF-8.
func ToDisplay(v Value) (any, error) {
	return toDisplay(v, "$")
}

func toDisplay(value Value, path string) (any, error) {
	switch v := value.(type) {
	case String:
		if !utf8.Valid(v) {
			return nil, &EncodingError{Path: path}
		}
		return string(v), nil
	case Integer:
		return int64(v), nil
	case List:
		result := make([]any, len(v))
		for i, item := range v {
			converted, err := toDisplay(item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	case Dict:
		result := make(map[string]any, len(v))
		for _, key := range v.Keys() {
			keyPath := path + "." + strconv.Quote(key)
			if !utf8.ValidString(key) {
				return nil, &EncodingError{Path: keyPath}
			}
			converted, err := toDisplay(v[key], keyPath)
			if err != nil {
				return nil, err
			}
			result[key] = converted
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported value for display: %T", value)
	}
}
