package bencode

import (
	"bytes"
	"fmt"
	"strconv"
)

// MaxDepth is the deepest nesting of lists and dictionaries Decode accepts.
const MaxDepth = 512

// ParseError reports malformed bencode framing.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bencode: %s at offset %d", e.Msg, e.Offset)
}

func parseErrorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Decode parses exactly one value from data. Bytes left over after the value are an error.
func Decode(data []byte) (Value, error) {
	v, n, err := DecodePrefix(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, parseErrorf(n, "%d trailing bytes after value", len(data)-n)
	}
	return v, nil
}

// DecodePrefix parses the value at the start of data and returns it along with the
// number of bytes it occupied.
func DecodePrefix(data []byte) (Value, int, error) {
	return decodeValue(data, 0, 0)
}

func decodeValue(data []byte, pos, depth int) (Value, int, error) {
	if pos >= len(data) {
		return nil, 0, parseErrorf(pos, "unexpected end of input")
	}

	switch c := data[pos]; {
	case c >= '0' && c <= '9':
		return decodeString(data, pos)
	case c == 'i':
		return decodeInteger(data, pos)
	case c == 'l' || c == 'd':
		if depth >= MaxDepth {
			return nil, 0, parseErrorf(pos, "nesting deeper than %d levels", MaxDepth)
		}
		if c == 'l' {
			return decodeList(data, pos, depth+1)
		}
		return decodeDictionary(data, pos, depth+1)
	default:
		return nil, 0, parseErrorf(pos, "unexpected byte %q", c)
	}
}

func decodeDictionary(data []byte, pos, depth int) (Value, int, error) {
	result := make(Dict)
	pos++ // 'd'

	for {
		if pos >= len(data) {
			return nil, 0, parseErrorf(pos, "missing 'e' terminator for dictionary")
		}
		if data[pos] == 'e' {
			return result, pos + 1, nil
		}
		if c := data[pos]; c < '0' || c > '9' {
			return nil, 0, parseErrorf(pos, "dictionary key must be a byte string, found %q", c)
		}

		keyPos := pos
		key, next, err := decodeString(data, pos)
		if err != nil {
			return nil, 0, err
		}
		k := string(key.(String))
		if _, dup := result[k]; dup {
			return nil, 0, parseErrorf(keyPos, "duplicate dictionary key %q", k)
		}

		value, next, err := decodeValue(data, next, depth)
		if err != nil {
			return nil, 0, err
		}
		result[k] = value
		pos = next
	}
}

func decodeList(data []byte, pos, depth int) (Value, int, error) {
	result := make(List, 0)
	pos++ // 'l'

	for {
		if pos >= len(data) {
			return nil, 0, parseErrorf(pos, "missing 'e' terminator for list")
		}
		if data[pos] == 'e' {
			return result, pos + 1, nil
		}

		value, next, err := decodeValue(data, pos, depth)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, value)
		pos = next
	}
}

func decodeInteger(data []byte, pos int) (Value, int, error) {
	start := pos + 1
	end := bytes.IndexByte(data[start:], 'e')
	if end == -1 {
		return nil, 0, parseErrorf(pos, "missing 'e' terminator for integer")
	}
	end += start

	digits := data[start:end]
	if err := checkIntegerDigits(digits); err != "" {
		return nil, 0, parseErrorf(start, "invalid integer %q: %s", digits, err)
	}

	num, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return nil, 0, parseErrorf(start, "integer %q out of range", digits)
	}

	return Integer(num), end + 1, nil
}

func checkIntegerDigits(digits []byte) string {
	unsigned := digits
	if len(unsigned) > 0 && unsigned[0] == '-' {
		unsigned = unsigned[1:]
	}
	if len(unsigned) == 0 {
		return "no digits"
	}
	for _, c := range unsigned {
		if c < '0' || c > '9' {
			return "non-digit character"
		}
	}
	if unsigned[0] == '0' && len(unsigned) > 1 {
		return "leading zero"
	}
	if len(unsigned) != len(digits) && unsigned[0] == '0' {
		return "negative zero"
	}
	return ""
}

func decodeString(data []byte, pos int) (Value, int, error) {
	colon := bytes.IndexByte(data[pos:], ':')
	if colon == -1 {
		return nil, 0, parseErrorf(pos, "missing ':' after byte string length")
	}
	colon += pos

	prefix := data[pos:colon]
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return nil, 0, parseErrorf(pos, "non-numeric byte string length %q", prefix)
		}
	}
	if len(prefix) > 1 && prefix[0] == '0' {
		return nil, 0, parseErrorf(pos, "byte string length %q has a leading zero", prefix)
	}

	length, err := strconv.ParseUint(string(prefix), 10, 64)
	remaining := uint64(len(data) - colon - 1)
	if err != nil || length > remaining {
		return nil, 0, parseErrorf(pos, "byte string length %s exceeds remaining %d bytes", prefix, remaining)
	}

	start := colon + 1
	end := start + int(length)
	return String(bytes.Clone(data[start:end])), end, nil
}
