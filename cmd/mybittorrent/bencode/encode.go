package bencode

import (
	"bytes"
	"fmt"
	"strconv"
)

// Encode serializes v to its canonical form: integers without leading zeros, byte
// strings verbatim and dictionary keys in ascending byte order.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, value Value) error {
	switch v := value.(type) {
	case String:
		encodeString(buf, []byte(v))
	case Integer:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(int64(v), 10))
		buf.WriteByte('e')
	case List:
		buf.WriteByte('l')
		for i, item := range v {
			if err := encodeValue(buf, item); err != nil {
				return fmt.Errorf("failed to encode list item %d: %w", i, err)
			}
		}
		buf.WriteByte('e')
	case Dict:
		buf.WriteByte('d')
		for _, key := range v.Keys() {
			encodeString(buf, []byte(key))
			if err := encodeValue(buf, v[key]); err != nil {
				return fmt.Errorf("failed to encode dictionary value %q: %w", key, err)
			}
		}
		buf.WriteByte('e')
	default:
		return fmt.Errorf("unsupported value for bencode encoding: %T", value)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s []byte) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.Write(s)
}
