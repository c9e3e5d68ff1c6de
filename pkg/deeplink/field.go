package deeplink

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sync"
)

// Field is a view field that can be synchronized with a URL parameter.
type Field interface {
	// Value returns the current typed value, or nil when the field holds none.
	Value() any

	// Assign stores a value read from the URL. nil clears the field.
	// Assign must not notify change listeners.
	Assign(v any) error
}

// Notifier is implemented by fields that report user-driven changes.
type Notifier interface {
	// OnChange registers fn to receive every new value. The returned
	// function removes the registration.
	OnChange(fn func(v any)) (cancel func())
}

// View exposes the fields of a live view by parameter name.
type View interface {
	Fields() map[string]Field
}

// ViewFunc adapts a function to View.
type ViewFunc func() map[string]Field

// Fields calls f.
func (f ViewFunc) Fields() map[string]Field {
	return f()
}

// ChangeName returns the conventional name of the change notification of
// field name, e.g. "tabChange".
func ChangeName(name string) string {
	return name + "Change"
}

// Value is a typed field with change notification.
//
// Set and Clear are user edits and notify listeners. Assign is the inflow
// path and stays silent.
type Value[T any] struct {
	mu        sync.Mutex
	value     T
	present   bool
	listeners map[int]func(any)
	nextID    int
}

// NewValue creates a field holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{value: initial, present: true}
}

// NewEmpty creates a field holding no value.
func NewEmpty[T any]() *Value[T] {
	return &Value[T]{}
}

// Get returns the value and whether one is present.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.present
}

// Peek returns the value, or T's zero value when none is present.
func (v *Value[T]) Peek() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Value implements Field.
func (v *Value[T]) Value() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return nil
	}
	return v.value
}

// Set stores x and notifies listeners.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	v.value = x
	v.present = true
	listeners := v.snapshot()
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(x)
	}
}

// Clear removes the value and notifies listeners with nil.
func (v *Value[T]) Clear() {
	v.mu.Lock()
	var zero T
	v.value = zero
	v.present = false
	listeners := v.snapshot()
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
}

// Assign implements Field.
func (v *Value[T]) Assign(x any) error {
	if x == nil {
		v.mu.Lock()
		var zero T
		v.value = zero
		v.present = false
		v.mu.Unlock()
		return nil
	}

	typed, err := convert[T](x)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.value = typed
	v.present = true
	v.mu.Unlock()
	return nil
}

// Edit is Set for untyped input, as decoded from a client message. x is
// converted like Assign; nil clears.
func (v *Value[T]) Edit(x any) error {
	if x == nil {
		v.Clear()
		return nil
	}
	typed, err := convert[T](x)
	if err != nil {
		return err
	}
	v.Set(typed)
	return nil
}

// OnChange implements Notifier.
func (v *Value[T]) OnChange(fn func(any)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listeners == nil {
		v.listeners = make(map[int]func(any))
	}
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// snapshot returns the listeners in registration order. Caller holds mu.
func (v *Value[T]) snapshot() []func(any) {
	out := make([]func(any), 0, len(v.listeners))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// AssignError is returned when a URL value cannot be stored in a field's type.
type AssignError struct {
	Value any
	Type  reflect.Type
	Err   error
}

// Error implements the error interface.
func (e *AssignError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deeplink: cannot assign %T to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("deeplink: cannot assign %T to %s", e.Value, e.Type)
}

// Unwrap returns the underlying conversion error.
func (e *AssignError) Unwrap() error {
	return e.Err
}

// convert turns a coerced URL value into T. Numbers convert between numeric
// kinds; structured values are re-decoded into T through JSON.
func convert[T any](x any) (T, error) {
	if typed, ok := x.(T); ok {
		return typed, nil
	}

	var zero T
	target := reflect.TypeOf(&zero).Elem()
	src := reflect.ValueOf(x)

	if isNumeric(src.Kind()) && isNumeric(target.Kind()) {
		if f, ok := x.(float64); ok && isInteger(target.Kind()) && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return zero, &AssignError{Value: x, Type: target, Err: fmt.Errorf("%v is not an integer", f)}
		}
		return src.Convert(target).Interface().(T), nil
	}
	if src.Kind() == reflect.String && target.Kind() == reflect.String {
		return src.Convert(target).Interface().(T), nil
	}

	data, err := json.Marshal(x)
	if err != nil {
		return zero, &AssignError{Value: x, Type: target, Err: err}
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, &AssignError{Value: x, Type: target, Err: err}
	}
	return out, nil
}

func isNumeric(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
