package coerce

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", String, false},
		{"string", String, false},
		{"number", Number, false},
		{"json", JSON, false},
		{"int", "", true},
	}

	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToTypedAbsent(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		v, err := ToTyped(String, "", false)
		if err != nil || v != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", v, err)
		}
	})

	t.Run("Number", func(t *testing.T) {
		v, err := ToTyped(Number, "", false)
		if err != nil || v != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", v, err)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		v, err := ToTyped(JSON, "", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, ok := v.(map[string]any)
		if !ok || len(m) != 0 {
			t.Errorf("got %#v, want empty object", v)
		}
	})
}

func TestToTypedPresent(t *testing.T) {
	v, err := ToTyped(String, "profile", true)
	if err != nil || v != "profile" {
		t.Errorf("string: got (%v, %v)", v, err)
	}

	v, err = ToTyped(Number, "42", true)
	if err != nil || v != float64(42) {
		t.Errorf("number: got (%v, %v)", v, err)
	}

	v, err = ToTyped(JSON, `{"a":[1,"x"]}`, true)
	if err != nil {
		t.Fatalf("json: unexpected error: %v", err)
	}
	want := map[string]any{"a": []any{float64(1), "x"}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("json: got %#v, want %#v", v, want)
	}
}

func TestToTypedMalformedNumberIsNaN(t *testing.T) {
	v, err := ToTyped(Number, "12abc", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := v.(float64)
	if !ok || !math.IsNaN(f) {
		t.Errorf("got %#v, want NaN", v)
	}
}

func TestToTypedMalformedJSON(t *testing.T) {
	_, err := ToTyped(JSON, "{bad json", true)
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *ParseError", err)
	}
	if pe.Raw != "{bad json" || pe.Type != JSON {
		t.Errorf("ParseError = %+v", pe)
	}
	if pe.Unwrap() == nil {
		t.Error("ParseError should wrap the decoder error")
	}
}

func TestToString(t *testing.T) {
	var nilMap map[string]any
	var nilPtr *struct{}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"Nil", nil, ""},
		{"NilMap", nilMap, ""},
		{"NilPointer", nilPtr, ""},
		{"String", "abc", "abc"},
		{"EmptyString", "", ""},
		{"Float", 42.5, "42.5"},
		{"Int", 99, "99"},
		{"Bool", true, "true"},
		{"Object", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"Array", []any{1, "two"}, `[1,"two"]`},
		{"EmptyObject", map[string]any{}, "{}"},
		{"ObjectWithHTMLCharacters", map[string]any{"q": "a&b<c>"}, `{"q":"a&b<c>"}`},
		{"StringArray", []string{"x&y"}, `["x&y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(tt.in); got != tt.want {
				t.Errorf("ToString(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	numbers := []float64{0, 1, -1, 42, 3.14159, 1e21, 1.5e-7, -2.5e300, 123456789012345680000}
	for _, n := range numbers {
		v, err := ToTyped(Number, ToString(n), true)
		if err != nil {
			t.Fatalf("ToTyped(%v): %v", n, err)
		}
		if v != n {
			t.Errorf("number round trip: %v -> %q -> %v", n, ToString(n), v)
		}
	}

	strs := []string{"", "hello", "a b&c=d", "ünïcode", "42"}
	for _, s := range strs {
		v, err := ToTyped(String, ToString(s), true)
		if err != nil || v != s {
			t.Errorf("string round trip: %q -> %v (%v)", s, v, err)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{"x", true},
		{float64(0), false},
		{math.NaN(), false},
		{float64(-1), true},
		{0, false},
		{7, true},
		{false, false},
		{true, true},
		{map[string]any{}, true},
		{[]any{}, true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
