package encoding

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/vango-dev/urlstate/pkg/params"
)

func TestBase64(t *testing.T) {
	tests := []struct {
		name string
		enc  Encoding[string]
		in   string
		want string
	}{
		{"standard", Base64, "<<???>>", "PDw/Pz8+Pg=="},
		{"url safe", Base64URL, "<<???>>", "PDw_Pz8-Pg"},
		{"url safe no padding", Base64URL, "hello world", "aGVsbG8gd29ybGQ"},
		{"empty", Base64URL, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.enc.To(tt.in)
			if got != tt.want {
				t.Fatalf("To(%q): got %v, want %q", tt.in, got, tt.want)
			}
			back, err := tt.enc.From(got)
			if err != nil {
				t.Fatalf("From(%v): %v", got, err)
			}
			if back != tt.in {
				t.Errorf("From(%v): got %q, want %q", got, back, tt.in)
			}
		})
	}
}

func TestBase64_FromAcceptsEitherAlphabet(t *testing.T) {
	for _, in := range []string{"PDw/Pz8+Pg==", "PDw/Pz8+Pg", "PDw_Pz8-Pg", "PDw_Pz8-Pg=="} {
		for name, enc := range map[string]Encoding[string]{"std": Base64, "url": Base64URL} {
			got, err := enc.From(in)
			if err != nil || got != "<<???>>" {
				t.Errorf("%s.From(%q): got %q, %v; want <<???>>", name, in, got, err)
			}
		}
	}

	if _, err := Base64URL.From("!!!"); err == nil {
		t.Error("From(!!!): got nil error")
	}
	if _, err := Base64URL.From([]any{"x"}); err == nil {
		t.Error("From(sequence): got nil error")
	}
}

func TestDefault_Scalars(t *testing.T) {
	if got := Default[string]().To("a b"); got != "a b" {
		t.Errorf("string To: got %v", got)
	}
	if got := Default[int]().To(42); got != "42" {
		t.Errorf("int To: got %v, want \"42\"", got)
	}
	if got := Default[bool]().To(true); got != "true" {
		t.Errorf("bool To: got %v", got)
	}
	if got := Default[float64]().To(2.5); got != "2.5" {
		t.Errorf("float To: got %v", got)
	}

	n, err := Default[int]().From("17")
	if err != nil || n != 17 {
		t.Errorf("int From: got %d, %v", n, err)
	}
	n, err = Default[int]().From(json.Number("8"))
	if err != nil || n != 8 {
		t.Errorf("int From(json.Number): got %d, %v", n, err)
	}
	if _, err := Default[int]().From("seventeen"); err == nil {
		t.Error("int From(seventeen): got nil error")
	}
	b, err := Default[bool]().From("true")
	if err != nil || !b {
		t.Errorf("bool From: got %v, %v", b, err)
	}
	if _, err := Default[int]().From(params.NewMap()); err == nil {
		t.Error("int From(mapping): got nil error")
	}
}

func TestDefault_Slices(t *testing.T) {
	enc := Default[[]int]()
	shape := enc.To([]int{1, 2})
	if !reflect.DeepEqual(shape, []any{"1", "2"}) {
		t.Fatalf("To: got %#v", shape)
	}
	back, err := enc.From(shape)
	if err != nil || !reflect.DeepEqual(back, []int{1, 2}) {
		t.Errorf("From: got %v, %v", back, err)
	}

	single, err := Default[[]string]().From("only")
	if err != nil || !reflect.DeepEqual(single, []string{"only"}) {
		t.Errorf("From(scalar): got %v, %v", single, err)
	}
	if got := Default[[]string]().To(nil); got != nil {
		t.Errorf("To(nil slice): got %#v, want nil", got)
	}
}

func TestDefault_Maps(t *testing.T) {
	enc := Default[map[string]int]()
	shape, ok := enc.To(map[string]int{"b": 2, "a": 1}).(*params.Map)
	if !ok {
		t.Fatalf("To: got %T, want *params.Map", shape)
	}
	if strings.Join(shape.Keys(), ",") != "a,b" {
		t.Errorf("To keys: got %v, want sorted", shape.Keys())
	}
	back, err := enc.From(shape)
	if err != nil || back["a"] != 1 || back["b"] != 2 {
		t.Errorf("From: got %v, %v", back, err)
	}
}

type filter struct {
	Query string   `url:"q"`
	Page  int      `url:"page"`
	Tags  []string `url:"tags"`
	Draft bool
	skip  string
}

func TestDefault_Structs(t *testing.T) {
	enc := Default[filter]()
	shape := enc.To(filter{Query: "go", Tags: []string{"a"}, Draft: true, skip: "x"}).(*params.Map)

	data, _ := json.Marshal(shape)
	if want := `{"q":"go","tags":["a"],"draft":"true"}`; string(data) != want {
		t.Errorf("To: got %s, want %s", data, want)
	}

	back, err := enc.From(shape)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if back.Query != "go" || back.Page != 0 || len(back.Tags) != 1 || !back.Draft {
		t.Errorf("From: got %+v", back)
	}
	if _, err := enc.From("scalar"); err == nil {
		t.Error("From(scalar) into struct: got nil error")
	}
}

func TestDefault_ParamsMapAndInterface(t *testing.T) {
	m := params.NewMap()
	m.Set("k", "v")

	got := Default[*params.Map]().To(m).(*params.Map)
	if !got.Equal(m) || got == m {
		t.Error("To(*params.Map) should return an equal copy")
	}

	v, err := Default[any]().From([]any{"x"})
	if err != nil || !reflect.DeepEqual(v, []any{"x"}) {
		t.Errorf("any From: got %v, %v", v, err)
	}
}

func TestFuncAndDecoder(t *testing.T) {
	upper := Func[string]{
		ToFunc: func(s string) any { return strings.ToUpper(s) },
		FromFunc: func(raw any) (string, error) {
			s, _ := params.FormatScalar(raw)
			return strings.ToLower(s), nil
		},
	}
	if got := upper.To("go"); got != "GO" {
		t.Errorf("To: got %v", got)
	}
	if got, _ := upper.From("GO"); got != "go" {
		t.Errorf("From: got %v", got)
	}

	dec := Decoder(func(raw any) (int, error) {
		s, _ := params.FormatScalar(raw)
		n, err := strconv.Atoi(s)
		return n * 10, err
	})
	if got := dec.To(5); got != "5" {
		t.Errorf("Decoder To: got %v, want coerced \"5\"", got)
	}
	if got, _ := dec.From("5"); got != 50 {
		t.Errorf("Decoder From: got %v, want 50", got)
	}

	sdec := StringDecoder(func(s string) []string { return strings.Split(s, "|") })
	if got, _ := sdec.From("a|b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("StringDecoder From: got %v", got)
	}

	var zero Func[int]
	if got := zero.To(3); got != "3" {
		t.Errorf("zero Func To: got %v", got)
	}
	if got, err := zero.From("3"); err != nil || got != 3 {
		t.Errorf("zero Func From: got %v, %v", got, err)
	}
}

func TestCoerce(t *testing.T) {
	if Coerce(nil) != nil {
		t.Error("Coerce(nil) should be nil")
	}
	if got := Coerce(12); got != "12" {
		t.Errorf("Coerce(12): got %v", got)
	}
	seq := []any{"a"}
	if got := Coerce(seq); !reflect.DeepEqual(got, seq) {
		t.Errorf("Coerce(seq): got %v", got)
	}
}

func TestJSON(t *testing.T) {
	type view struct {
		Sort string `json:"sort"`
		Cols []int  `json:"cols"`
	}
	enc := JSON[view]()
	in := view{Sort: "name", Cols: []int{1, 3}}
	shape, ok := enc.To(in).(string)
	if !ok || strings.ContainsAny(shape, "+/=") {
		t.Fatalf("To: got %v, want URL-safe base64", enc.To(in))
	}
	out, err := enc.From(shape)
	if err != nil || !reflect.DeepEqual(out, in) {
		t.Errorf("From: got %+v, %v", out, err)
	}
	if _, err := enc.From(""); err == nil {
		t.Error("From(empty): got nil error")
	}
	if _, err := enc.From("bm90IGpzb24"); err == nil {
		t.Error("From(base64 of non-JSON): got nil error")
	}
}

func TestComma(t *testing.T) {
	enc := Comma()
	if got := enc.To([]string{"go", "web"}); got != "go,web" {
		t.Errorf("To: got %v", got)
	}
	if got := enc.To(nil); got != nil {
		t.Errorf("To(nil): got %v, want nil", got)
	}

	tests := []struct {
		raw  any
		want []string
	}{
		{"go,web", []string{"go", "web"}},
		{"", []string{}},
		{nil, nil},
		{[]any{"a", "b"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		got, err := enc.From(tt.raw)
		if err != nil || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("From(%#v): got %#v, %v; want %#v", tt.raw, got, err, tt.want)
		}
	}
	if _, err := enc.From(params.NewMap()); err == nil {
		t.Error("From(mapping): got nil error")
	}
}
