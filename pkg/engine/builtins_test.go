package engine

import (
	"testing"

	"github.com/chazu/koga/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(createText :characters "Hi")`,
			expect: `(createText "__kw_characters" "Hi")`,
		},
		{
			name:   "multiple keywords",
			input:  `(createRectangle :width 400 :height 200)`,
			expect: `(createRectangle "__kw_width" 400 "__kw_height" 200)`,
		},
		{
			name:   "camel case keyword",
			input:  `(setProp r :cornerRadius 8)`,
			expect: `(setProp r "__kw_cornerRadius" 8)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def card-width 10)`,
			expect: `(def card_width 10)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(createRectangle :x -5)`,
			expect: `(createRectangle "__kw_x" -5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "slash comment untouched",
			input:  `// keep :this-one`,
			expect: `// keep :this-one`,
		},
		{
			name:   "hex string untouched",
			input:  `(hex "#ff-00:00")`,
			expect: `(hex "#ff-00:00")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Value conversion tests
// ---------------------------------------------------------------------------

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		in   zygo.Sexp
		want bool
	}{
		{"nil", zygo.SexpNull, false},
		{"false", &zygo.SexpBool{Val: false}, false},
		{"true", &zygo.SexpBool{Val: true}, true},
		{"zero", &zygo.SexpInt{Val: 0}, true},
		{"string", &zygo.SexpStr{S: ""}, true},
		{"node", &sexpNodeRef{id: "rect_1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truthy(tt.in); got != tt.want {
				t.Errorf("truthy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToPropValue(t *testing.T) {
	red := scene.Solid(scene.Opaque(1, 0, 0))

	v, err := toPropValue(&zygo.SexpInt{Val: 7})
	if err != nil || v != 7.0 {
		t.Errorf("int: got %v, %v", v, err)
	}
	v, err = toPropValue(&zygo.SexpStr{S: kwPrefix + "CENTER"})
	if err != nil || v != "CENTER" {
		t.Errorf("keyword: got %v, %v", v, err)
	}
	v, err = toPropValue(&sexpPaint{paint: red})
	if err != nil || v != red {
		t.Errorf("paint: got %v, %v", v, err)
	}

	v, err = toPropValue(zygo.MakeList([]zygo.Sexp{&sexpPaint{paint: red}}))
	if err != nil {
		t.Fatalf("paint list: %v", err)
	}
	if ps, ok := v.([]scene.Paint); !ok || len(ps) != 1 || ps[0] != red {
		t.Errorf("paint list: got %v", v)
	}

	v, err = toPropValue(zygo.SexpNull)
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if ps, ok := v.([]scene.Paint); !ok || len(ps) != 0 {
		t.Errorf("empty list: got %#v", v)
	}

	if _, err := toPropValue(&sexpNodeRef{id: "x"}); err == nil {
		t.Error("expected error for node value")
	}
}

func TestFromPropValue(t *testing.T) {
	if f, ok := fromPropValue(2.5).(*zygo.SexpFloat); !ok || f.Val != 2.5 {
		t.Errorf("float: got %v", fromPropValue(2.5))
	}
	if s, ok := fromPropValue("TEXT").(*zygo.SexpStr); !ok || s.S != "TEXT" {
		t.Errorf("string: got %v", fromPropValue("TEXT"))
	}

	items, err := sexpListToSlice(fromPropValue([]scene.NodeID{"a_1", "b_2"}))
	if err != nil {
		t.Fatalf("node list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if id, _ := toNodeRef(items[1]); id != "b_2" {
		t.Errorf("second item = %s, want b_2", id)
	}

	if fromPropValue(struct{}{}) != zygo.SexpNull {
		t.Error("unknown values should map to nil")
	}
}

func TestParsePropPairs(t *testing.T) {
	args := []zygo.Sexp{
		&zygo.SexpStr{S: kwPrefix + "x"}, &zygo.SexpInt{Val: 1},
		&zygo.SexpStr{S: "name"}, &zygo.SexpStr{S: "Card"},
	}
	pairs, err := parsePropPairs(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 || pairs[0].name != "x" || pairs[1].name != "name" {
		t.Errorf("unexpected pairs %+v", pairs)
	}

	if _, err := parsePropPairs(args[:3]); err == nil {
		t.Error("expected error for odd argument count")
	}
	if _, err := parsePropPairs([]zygo.Sexp{&zygo.SexpInt{Val: 1}, &zygo.SexpInt{Val: 2}}); err == nil {
		t.Error("expected error for non-string name")
	}
}
