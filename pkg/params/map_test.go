package params

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestMap_OrderAndOverwrite(t *testing.T) {
	m := NewMap()
	m.Set("b", "1")
	m.Set("a", "2")
	m.Set("b", "3")

	if got := strings.Join(m.Keys(), ","); got != "b,a" {
		t.Fatalf("Keys: got %s, want b,a", got)
	}
	if v, _ := m.Get("b"); v != "3" {
		t.Errorf("Get(b): got %v, want 3", v)
	}
	if !m.Delete("b") || m.Has("b") || m.Len() != 1 {
		t.Errorf("Delete(b): map is %s", m)
	}
	if m.Delete("missing") {
		t.Error("Delete(missing): got true, want false")
	}
}

func TestMap_ZeroValue(t *testing.T) {
	var m Map
	if !m.Set("x", "1") {
		t.Fatal("Set on zero Map failed")
	}
	if v, ok := m.Get("x"); !ok || v != "1" {
		t.Errorf("Get(x): got %v, %v", v, ok)
	}

	var nilMap *Map
	if nilMap.Len() != 0 || nilMap.Has("x") || nilMap.Keys() != nil {
		t.Error("nil Map should behave as empty")
	}
}

func TestMap_ForbiddenKeys(t *testing.T) {
	m := NewMap()
	for _, k := range ForbiddenKeys() {
		if !IsForbidden(k) {
			t.Errorf("IsForbidden(%q): got false", k)
		}
		if m.Set(k, "x") {
			t.Errorf("Set(%q): got true, want false", k)
		}
		if m.Has(k) {
			t.Errorf("Has(%q) after Set: got true", k)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len: got %d, want 0", m.Len())
	}
	if IsForbidden("proto") || IsForbidden("Constructor") {
		t.Error("only the exact reserved names are forbidden")
	}
}

func TestMap_CloneIsDeep(t *testing.T) {
	inner := NewMap()
	inner.Set("c", "1")
	m := NewMap()
	m.Set("a", inner)
	m.Set("s", []any{"x"})

	cp := m.Clone()
	inner.Set("c", "2")
	seq, _ := m.Get("s")
	seq.([]any)[0] = "y"

	got, _ := cp.Get("a")
	if v, _ := got.(*Map).Get("c"); v != "1" {
		t.Errorf("clone inner: got %v, want 1", v)
	}
	cs, _ := cp.Get("s")
	if cs.([]any)[0] != "x" {
		t.Errorf("clone seq: got %v, want x", cs)
	}
}

func TestMap_Equal(t *testing.T) {
	a := NewMap()
	a.Set("x", "1")
	a.Set("y", []any{"a", nil})
	b := NewMap()
	b.Set("y", []any{"a", nil})
	b.Set("x", 1)

	if !a.Equal(b) {
		t.Errorf("Equal: %s vs %s should be equal", a, b)
	}
	b.Set("z", "extra")
	if a.Equal(b) {
		t.Error("Equal: maps with different keys compared equal")
	}
}

func TestMap_JSONPreservesOrder(t *testing.T) {
	input := `{"z":"1","a":{"y":"2","b":[1,true,null]},"m":"3"}`
	m, err := ParseJSON([]byte(input))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got := strings.Join(m.Keys(), ","); got != "z,a,m" {
		t.Errorf("Keys: got %s, want z,a,m", got)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != input {
		t.Errorf("Marshal: got %s, want %s", out, input)
	}
}

func TestParseJSON_Errors(t *testing.T) {
	for _, input := range []string{`[1]`, `"s"`, `3`, `null`, ` null `} {
		if _, err := ParseJSON([]byte(input)); !errors.Is(err, ErrNotObject) {
			t.Errorf("ParseJSON(%s): got %v, want ErrNotObject", input, err)
		}
	}
	if _, err := ParseJSON([]byte(`{"a":`)); err == nil || errors.Is(err, ErrNotObject) {
		t.Errorf("ParseJSON(truncated): got %v, want a syntax error", err)
	}
}

func TestParseJSON_DropsForbiddenKeys(t *testing.T) {
	m, err := ParseJSON([]byte(`{"__proto__":{"polluted":"yes"},"ok":"1"}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if m.Has("__proto__") || m.Len() != 1 {
		t.Errorf("ParseJSON: got %s, want only ok", m)
	}
}

func TestFromAnyAndToAny(t *testing.T) {
	tree := map[string]any{
		"b": []any{"x", map[string]any{"c": "d"}},
		"a": map[string]string{"k": "v"},
		"t": []string{"p", "q"},
	}
	m := MapFromAny(tree)
	if got := strings.Join(m.Keys(), ","); got != "a,b,t" {
		t.Errorf("Keys: got %s, want a,b,t (sorted)", got)
	}
	back := ToAny(m).(map[string]any)
	seq := back["b"].([]any)
	if inner := seq[1].(map[string]any); inner["c"] != "d" {
		t.Errorf("ToAny: got %v", back)
	}
	if got := back["t"].([]any); len(got) != 2 || got[1] != "q" {
		t.Errorf("ToAny([]string): got %v", got)
	}

	if MapFromAny(nil).Len() != 0 || MapFromAny("scalar").Len() != 0 {
		t.Error("MapFromAny of a non-object should be empty")
	}
	var typedNil *Map
	if MapFromAny(typedNil) == nil {
		t.Error("MapFromAny(typed nil) returned nil")
	}
}

type stringer struct{}

func (stringer) String() string { return "custom" }

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{"s", "s", true},
		{json.Number("1.50"), "1.50", true},
		{true, "true", true},
		{42, "42", true},
		{int64(-7), "-7", true},
		{uint8(9), "9", true},
		{1.5, "1.5", true},
		{float32(0.25), "0.25", true},
		{stringer{}, "custom", true},
		{nil, "", false},
		{NewMap(), "", false},
		{[]any{}, "", false},
	}
	for _, tt := range tests {
		got, ok := FormatScalar(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FormatScalar(%#v): got %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEqualValues(t *testing.T) {
	if !EqualValues("1", 1) {
		t.Error(`EqualValues("1", 1): got false`)
	}
	if EqualValues(nil, "") {
		t.Error(`EqualValues(nil, ""): got true`)
	}
	if EqualValues([]any{"a"}, []any{"a", "b"}) {
		t.Error("sequences of different length compared equal")
	}
	if EqualValues(NewMap(), []any{}) {
		t.Error("map and sequence compared equal")
	}
}
