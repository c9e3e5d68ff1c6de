// Package coerce converts URL parameter strings to typed values and back.
//
// Three value types are supported:
//
//	string → passed through unchanged
//	number → float64, parsed like a browser's Number() and printed like its toString
//	json   → structured data (map[string]any, []any, ...), printed compactly
//
// Absent parameters are distinct from empty ones. ToTyped returns nil for an
// absent string or number parameter and an empty object for an absent json
// parameter; callers must treat nil as "no value" rather than as a zero.
package coerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Type is the declared type of a synchronized parameter.
type Type string

const (
	// String values pass through unchanged in both directions.
	String Type = "string"

	// Number values are held as float64.
	Number Type = "number"

	// JSON values are arbitrary structured data encoded as compact JSON text.
	JSON Type = "json"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case String, Number, JSON:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a declared type name. The empty string means String.
func ParseType(s string) (Type, error) {
	if s == "" {
		return String, nil
	}
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown parameter type %q", s)
	}
	return t, nil
}

// ParseError is returned when a json parameter is not well-formed.
type ParseError struct {
	Type Type
	Raw  string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("coerce: cannot parse %q as %s: %v", e.Raw, e.Type, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToTyped converts a raw URL string into the typed value for t.
// present is false when the parameter is missing from the URL.
//
// Malformed numbers yield NaN without an error. Malformed json yields a
// *ParseError.
func ToTyped(t Type, raw string, present bool) (any, error) {
	if !present {
		if t == JSON {
			return map[string]any{}, nil
		}
		return nil, nil
	}

	switch t {
	case Number:
		return ParseNumber(raw), nil
	case JSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &ParseError{Type: t, Raw: raw, Err: err}
		}
		return v, nil
	default:
		return raw, nil
	}
}

// ToString returns the string form of a typed value as it appears in a URL.
// nil (and nil pointers, maps, slices) become the empty string regardless of
// the declared type.
func ToString(v any) string {
	if isNil(v) {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return FormatNumber(val)
	case float32:
		return FormatNumber(float64(val))
	case int:
		return FormatNumber(float64(val))
	case int8:
		return FormatNumber(float64(val))
	case int16:
		return FormatNumber(float64(val))
	case int32:
		return FormatNumber(float64(val))
	case int64:
		return FormatNumber(float64(val))
	case uint:
		return FormatNumber(float64(val))
	case uint8:
		return FormatNumber(float64(val))
	case uint16:
		return FormatNumber(float64(val))
	case uint32:
		return FormatNumber(float64(val))
	case uint64:
		return FormatNumber(float64(val))
	case bool:
		if val {
			return "true"
		}
		return "false"
	}

	data, err := marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// marshal encodes v as compact JSON without HTML escaping, so "&", "<" and
// ">" stay as written in a URL.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Truthy reports whether v counts as a present value for query parameters.
// nil, "", false, 0 and NaN are falsy; everything else, including empty
// objects and arrays, is truthy.
func Truthy(v any) bool {
	if isNil(v) {
		return false
	}

	switch val := v.(type) {
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0 && val == val
	case float32:
		return val != 0 && val == val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
