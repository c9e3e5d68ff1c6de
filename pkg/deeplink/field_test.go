package deeplink

import (
	"errors"
	"math"
	"testing"
)

func TestValueSetNotifies(t *testing.T) {
	v := NewEmpty[string]()
	if v.Value() != nil {
		t.Fatalf("empty Value() = %v, want nil", v.Value())
	}

	var got []any
	cancel := v.OnChange(func(x any) { got = append(got, x) })

	v.Set("a")
	v.Set("b")
	cancel()
	v.Set("c")

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("notifications = %v, want [a b]", got)
	}
	if s, ok := v.Get(); !ok || s != "c" {
		t.Errorf("Get() = %q, %v", s, ok)
	}
}

func TestValueListenerOrder(t *testing.T) {
	v := NewValue(0)
	var order []int
	v.OnChange(func(any) { order = append(order, 1) })
	v.OnChange(func(any) { order = append(order, 2) })
	v.OnChange(func(any) { order = append(order, 3) })

	v.Set(5)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}
}

func TestValueClear(t *testing.T) {
	v := NewValue("x")
	var got any = "unset"
	v.OnChange(func(x any) { got = x })

	v.Clear()
	if got != nil {
		t.Errorf("Clear notified %v, want nil", got)
	}
	if _, ok := v.Get(); ok {
		t.Error("value should be absent after Clear")
	}
	if v.Peek() != "" {
		t.Errorf("Peek() = %q, want zero value", v.Peek())
	}
}

func TestValueAssignIsSilent(t *testing.T) {
	v := NewEmpty[string]()
	notified := false
	v.OnChange(func(any) { notified = true })

	if err := v.Assign("profile"); err != nil {
		t.Fatal(err)
	}
	if notified {
		t.Error("Assign must not notify")
	}
	if v.Value() != "profile" {
		t.Errorf("Value() = %v", v.Value())
	}

	if err := v.Assign(nil); err != nil {
		t.Fatal(err)
	}
	if v.Value() != nil {
		t.Errorf("Assign(nil) should clear, Value() = %v", v.Value())
	}
}

func TestValueAssignConverts(t *testing.T) {
	t.Run("FloatToInt", func(t *testing.T) {
		v := NewEmpty[int]()
		if err := v.Assign(42.0); err != nil {
			t.Fatal(err)
		}
		if v.Peek() != 42 {
			t.Errorf("Peek() = %d", v.Peek())
		}
	})

	t.Run("NaNToInt", func(t *testing.T) {
		v := NewValue(7)
		err := v.Assign(math.NaN())
		var ae *AssignError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want *AssignError", err)
		}
		if v.Peek() != 7 {
			t.Errorf("failed Assign changed the value to %d", v.Peek())
		}
	})

	t.Run("NamedString", func(t *testing.T) {
		type Tab string
		v := NewEmpty[Tab]()
		if err := v.Assign("settings"); err != nil {
			t.Fatal(err)
		}
		if v.Peek() != Tab("settings") {
			t.Errorf("Peek() = %q", v.Peek())
		}
	})

	t.Run("ObjectToStruct", func(t *testing.T) {
		type Filter struct {
			Status string   `json:"status"`
			Tags   []string `json:"tags"`
		}
		v := NewEmpty[Filter]()
		err := v.Assign(map[string]any{"status": "open", "tags": []any{"a", "b"}})
		if err != nil {
			t.Fatal(err)
		}
		f := v.Peek()
		if f.Status != "open" || len(f.Tags) != 2 {
			t.Errorf("Peek() = %+v", f)
		}
	})

	t.Run("ObjectToAny", func(t *testing.T) {
		v := NewEmpty[any]()
		in := map[string]any{"a": 1.0}
		if err := v.Assign(in); err != nil {
			t.Fatal(err)
		}
		if m, ok := v.Value().(map[string]any); !ok || m["a"] != 1.0 {
			t.Errorf("Value() = %#v", v.Value())
		}
	})

	t.Run("Mismatch", func(t *testing.T) {
		v := NewEmpty[int]()
		err := v.Assign("abc")
		var ae *AssignError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want *AssignError", err)
		}
		if ae.Error() == "" {
			t.Error("empty error message")
		}
	})
}

func TestChangeName(t *testing.T) {
	if got := ChangeName("tab"); got != "tabChange" {
		t.Errorf("ChangeName = %q", got)
	}
}

func TestViewFunc(t *testing.T) {
	tab := NewEmpty[string]()
	view := ViewFunc(func() map[string]Field { return map[string]Field{"tab": tab} })
	if view.Fields()["tab"] != tab {
		t.Error("ViewFunc should return its fields")
	}
}

func TestValueEdit(t *testing.T) {
	v := NewEmpty[float64]()
	var got []any
	v.OnChange(func(x any) { got = append(got, x) })

	if err := v.Edit(3); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := v.Edit(nil); err != nil {
		t.Fatalf("Edit(nil): %v", err)
	}
	if err := v.Edit("x"); err == nil {
		t.Error("Edit with an unconvertible value should fail")
	}

	if len(got) != 2 || got[0] != 3.0 || got[1] != nil {
		t.Errorf("notifications = %v", got)
	}
	if v.Value() != nil {
		t.Errorf("Value() = %v after clearing edit", v.Value())
	}
}
