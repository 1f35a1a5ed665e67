package grading

import (
	"errors"
	"testing"
)

func TestParseJSON_ObjectForm(t *testing.T) {
	exam := mustExam(t, `{
		"second": {"title": "Second", "problems": [{"id": 2, "type": "fill", "correctAnswer": 6.0}]},
		"first":  {"blockTitle": "First", "problems": [{"id": 1, "type": "single", "correctAnswer": "A",
			"options": [{"text": "yes"}, {"text": "no"}]}]}
	}`)

	if len(exam.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(exam.Blocks))
	}
	if exam.Blocks[0].Title != "Second" || exam.Blocks[1].Title != "First" {
		t.Errorf("titles = %q, %q; want object key order", exam.Blocks[0].Title, exam.Blocks[1].Title)
	}

	fill, ok := exam.Find("2")
	if !ok {
		t.Fatal("Find(2) not found")
	}
	if fill.Key.Kind != KeyText || fill.Key.Text != "6.0" {
		t.Errorf("fill key = %+v, want literal text 6.0", fill.Key)
	}

	single, _ := exam.Find("1")
	if got := single.Labels(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Labels() = %v, want [A B]", got)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
- title: Algebra
  problems:
    - id: 1
      type: single
      points: 2
      options:
        - {label: A, text: one}
        - {label: B, text: two}
      answer: B
    - id: 30
      type: fill
      correctAnswer:
        "30-1": 6.0
        "30-2": "7"
- blockTitle: Sets
  problems:
    - id: 31
      type: multi
      options: [{label: A}, {label: B}, {label: C}]
      correctAnswer: "A, C"
`
	exam, err := ParseYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if err := Validate(exam); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	p1, _ := exam.Find("1")
	if p1.Max() != 2 {
		t.Errorf("Max() = %v, want 2 from points alias", p1.Max())
	}
	if p1.Key.Labels[0] != "B" {
		t.Errorf("key = %v, want B from answer alias", p1.Key.Labels)
	}

	p30, _ := exam.Find("30")
	if p30.Key.Kind != KeyParts || p30.Key.Parts["30-1"] != "6.0" || p30.Key.Parts["30-2"] != "7" {
		t.Errorf("parts = %v", p30.Key.Parts)
	}
	if got := p30.Key.SubKeys(); len(got) != 2 || got[0] != "30-1" {
		t.Errorf("SubKeys() = %v", got)
	}

	p31, _ := exam.Find("31")
	if len(p31.Key.Labels) != 2 || p31.Key.Labels[1] != "C" {
		t.Errorf("multi key = %v, want [A C]", p31.Key.Labels)
	}
	if exam.Blocks[1].Title != "Sets" {
		t.Errorf("Title = %q, want Sets", exam.Blocks[1].Title)
	}
	if exam.MaxTotal() != 10 {
		t.Errorf("MaxTotal() = %v, want 10", exam.MaxTotal())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"block without problems", `[{"title": "t"}]`},
		{"duplicate id across blocks", `[{"title": "a", "problems": [{"id": 1, "type": "fill", "correctAnswer": "x"}]},
			{"title": "b", "problems": [{"id": "1", "type": "fill", "correctAnswer": "y"}]}]`},
		{"missing id", `[{"title": "t", "problems": [{"type": "fill", "correctAnswer": "x"}]}]`},
		{"reserved id", `[{"title": "t", "problems": [{"id": "total", "type": "fill", "correctAnswer": "x"}]}]`},
		{"negative allocation", `[{"title": "t", "problems": [{"id": 1, "type": "fill", "allocation": -1, "correctAnswer": "x"}]}]`},
		{"multi without options", `[{"title": "t", "problems": [{"id": 1, "type": "multi", "correctAnswer": ["A"]}]}]`},
		{"duplicate labels", `[{"title": "t", "problems": [{"id": 1, "type": "single", "correctAnswer": "A",
			"options": [{"label": "A"}, {"label": "A"}]}]}]`},
		{"empty part key", `[{"title": "t", "problems": [{"id": 1, "type": "fill", "correctAnswer": {}}]}]`},
		{"null sub-key value", `[{"title": "t", "problems": [{"id": 30, "type": "fill", "allocation": 4,
			"correctAnswer": {"30-1": "6", "30-2": null}}]}]`},
		{"blank sub-key value", `[{"title": "t", "problems": [{"id": 30, "type": "fill", "correctAnswer": {"30-1": "  "}}]}]`},
		{"object sub-key value", `[{"title": "t", "problems": [{"id": 30, "type": "fill", "correctAnswer": {"30-1": {"x": 1}}}]}]`},
		{"blank fill key", `[{"title": "t", "problems": [{"id": 1, "type": "fill", "correctAnswer": " "}]}]`},
		{"missing fill key", `[{"title": "t", "problems": [{"id": 1, "type": "fill"}]}]`},
		{"array fill key", `[{"title": "t", "problems": [{"id": 1, "type": "fill", "correctAnswer": ["18"]}]}]`},
		{"empty single key", `[{"title": "t", "problems": [{"id": 1, "type": "single", "correctAnswer": "",
			"options": [{"label": "A"}]}]}]`},
		{"null single key", `[{"title": "t", "problems": [{"id": 1, "type": "single", "correctAnswer": null,
			"options": [{"label": "A"}]}]}]`},
		{"empty multi key", `[{"title": "t", "problems": [{"id": 1, "type": "multi", "correctAnswer": [],
			"options": [{"label": "A"}, {"label": "B"}]}]}]`},
		{"comma-only multi key", `[{"title": "t", "problems": [{"id": 1, "type": "multi", "correctAnswer": ",",
			"options": [{"label": "A"}, {"label": "B"}]}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := mustExam(t, tt.doc)
			err := Validate(exam)
			if !errors.Is(err, ErrMalformedExam) {
				t.Errorf("Validate() error = %v, want ErrMalformedExam", err)
			}
		})
	}
}

func TestValidate_NonFiniteAllocation(t *testing.T) {
	for _, alloc := range []string{".inf", "-.inf", ".nan"} {
		t.Run(alloc, func(t *testing.T) {
			doc := "- title: t\n  problems:\n    - {id: 1, type: fill, allocation: " + alloc + ", correctAnswer: x}\n"
			exam, err := ParseYAML([]byte(doc))
			if err != nil {
				t.Fatalf("ParseYAML() error = %v", err)
			}
			if err := Validate(exam); !errors.Is(err, ErrMalformedExam) {
				t.Errorf("Validate() error = %v, want ErrMalformedExam", err)
			}
			if _, err := Grade(exam, RawAnswers{"1": "x"}); !errors.Is(err, ErrMalformedExam) {
				t.Errorf("Grade() error = %v, want ErrMalformedExam", err)
			}
		})
	}
}

func TestValidate_UnknownTypeNeedsNoKey(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": [{"id": 1, "type": "essay"}]}]`)
	if err := Validate(exam); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_EmptyBlockIsFine(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": []}]`)
	if err := Validate(exam); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDecodeAnswers(t *testing.T) {
	a, err := DecodeAnswers([]byte(`{"1": 6.0, "2": ["A"], "3": {"3-1": 7}}`))
	if err != nil {
		t.Fatalf("DecodeAnswers() error = %v", err)
	}
	if s, _ := literal(a["1"]); s != "6.0" {
		t.Errorf("a[1] = %q, want literal 6.0", s)
	}

	a, err = DecodeAnswers([]byte(`null`))
	if err != nil || a == nil || len(a) != 0 {
		t.Errorf("DecodeAnswers(null) = %v, %v; want empty map", a, err)
	}

	if _, err := DecodeAnswers([]byte(`[1, 2]`)); err == nil {
		t.Error("DecodeAnswers(array) error = nil, want error")
	}
}

func TestReport_JSON(t *testing.T) {
	var r Report
	if err := r.UnmarshalJSON([]byte(`{"2": 1.5, "1": 3, "total": 4.5}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if r.Total != 4.5 || r.Score("2") != 1.5 {
		t.Errorf("report = %+v", r)
	}
	if _, ok := r.Scores[TotalKey]; ok {
		t.Error("total leaked into Scores")
	}
	if ids := r.IDs(); len(ids) != 2 || ids[0] != "1" {
		t.Errorf("IDs() = %v, want sorted", ids)
	}
}
