package resave

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// NormalizeValue turns a value read from the store into the text written
// back. Strings and byte slices pass through unchanged; structured values
// are encoded as JSON with sorted object keys. Numbers held as json.Number
// keep their stored digits; float64 values are written in Go's shortest
// form, so 1.0 becomes 1 and integers above 2^53 lose precision. The
// boolean is false when
// there is nothing worth writing: nil, empty text, or an empty collection.
func NormalizeValue(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, val != "", nil
	case []byte:
		return string(val), len(val) > 0, nil
	case json.RawMessage:
		return string(val), len(val) > 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "", false, nil
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false, nil
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", false, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), true, nil
}
