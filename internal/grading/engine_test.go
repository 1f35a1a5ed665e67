package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const threeProblemExam = `[
  {
    "title": "Part A",
    "problems": [
      {"id": 1, "type": "single", "allocation": 3,
       "options": [{"label": "A", "text": "x"}, {"label": "B", "text": "y"}, {"label": "C", "text": "z"}],
       "correctAnswer": "B"},
      {"id": 2, "type": "multi", "allocation": 5,
       "options": [{"label": "A"}, {"label": "B"}, {"label": "C"}, {"label": "D"}, {"label": "E"}],
       "correctAnswer": ["A", "C"]}
    ]
  },
  {
    "blockTitle": "Part B",
    "problems": [
      {"id": "3", "type": "fill", "allocation": 3, "correctAnswer": "18"}
    ]
  }
]`

func mustExam(t *testing.T, doc string) *Exam {
	t.Helper()
	exam, err := ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	return exam
}

func mustAnswers(t *testing.T, doc string) RawAnswers {
	t.Helper()
	a, err := DecodeAnswers([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeAnswers() error = %v", err)
	}
	return a
}

func mustGrade(t *testing.T, exam *Exam, answers RawAnswers) *Report {
	t.Helper()
	r, err := Grade(exam, answers)
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	return r
}

func TestGrade_ThreeProblemFixture(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	answers := mustAnswers(t, `{"1": "B", "2": ["A", "C"], "3": "17"}`)

	r := mustGrade(t, exam, answers)

	want := map[string]float64{"1": 3, "2": 5, "3": 0}
	for id, v := range want {
		if got := r.Score(id); got != v {
			t.Errorf("Score(%s) = %v, want %v", id, got, v)
		}
	}
	if r.Total != 8 {
		t.Errorf("Total = %v, want 8", r.Total)
	}
	if ids := r.IDs(); len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Errorf("IDs() = %v, want document order [1 2 3]", ids)
	}
}

func TestGrade_Single(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	p, _ := exam.Find("1")

	tests := []struct {
		name   string
		answer any
		want   float64
	}{
		{"correct label", "B", 3},
		{"wrong label", "A", 0},
		{"lower case", "b", 0},
		{"padded", " B", 0},
		{"singleton array", []any{"B"}, 3},
		{"two element array", []any{"B", "A"}, 0},
		{"object", map[string]any{"x": "B"}, 0},
		{"missing", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeProblem(p, tt.answer); got != tt.want {
				t.Errorf("GradeProblem(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestGrade_Multi(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	p, _ := exam.Find("2")

	tests := []struct {
		name   string
		answer any
		want   float64
	}{
		{"exact set", []any{"A", "C"}, 5},
		{"exact set reversed", []any{"C", "A"}, 5},
		{"comma string", "A, C", 5},
		{"duplicates collapse", []any{"A", "A", "C"}, 5},
		// k=2 of n=5: 5*(5-2-2)/5
		{"explicit empty set", []any{}, 1},
		{"one correct pick", []any{"A"}, 3},
		{"one extra pick", []any{"A", "C", "D"}, 3},
		{"complement floors at zero", []any{"B", "D", "E"}, 0},
		{"undeclared label ignored", []any{"A", "C", "Z"}, 5},
		{"blank string is no answer", "  ", 0},
		{"commas only is no answer", ",", 0},
		{"blank fields only is no answer", " , ,", 0},
		{"missing", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GradeProblem(p, tt.answer)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("GradeProblem(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestGrade_MultiEmptySetFormula(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k <= n; k++ {
			opts := make([]Option, n)
			key := make([]string, 0, k)
			for i := 0; i < n; i++ {
				opts[i] = Option{Label: string(rune('A' + i))}
				if i < k {
					key = append(key, opts[i].Label)
				}
			}
			alloc := 5.0
			p := &Problem{ID: "m", Type: ProblemTypeMulti, Allocation: &alloc, Options: opts,
				Key: AnswerKey{Kind: KeyLabels, Labels: key}}

			got := GradeProblem(p, []any{})
			want := math.Max(0, alloc*float64(n-k-k)/float64(n))
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("n=%d k=%d: GradeProblem([]) = %v, want %v", n, k, got, want)
			}
		}
	}
}

func TestGrade_Fill(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	p, _ := exam.Find("3")

	tests := []struct {
		name   string
		answer any
		want   float64
	}{
		{"exact", "18", 3},
		{"surrounding whitespace", " 18 ", 3},
		{"json number", json.Number("18"), 3},
		{"different literal", "18.0", 0},
		{"wrong", "17", 0},
		{"array", []any{"18"}, 0},
		{"missing", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeProblem(p, tt.answer); got != tt.want {
				t.Errorf("GradeProblem(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestGrade_FillMultiPartLinearity(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": [
		{"id": 30, "type": "fill", "allocation": 4,
		 "correctAnswer": {"30-1": "6", "30-2": "7", "30-3": "8", "30-4": "9"}}
	]}]`)
	p, _ := exam.Find("30")

	tests := []struct {
		name   string
		answer any
		want   float64
	}{
		{"all right", map[string]any{"30-1": "6", "30-2": "7", "30-3": "8", "30-4": "9"}, 4},
		{"two right", map[string]any{"30-1": "6", "30-2": " 7 ", "30-3": "x"}, 2},
		{"none right", map[string]any{"30-1": "1"}, 0},
		{"unknown sub-keys only", map[string]any{"99": "6"}, 0},
		{"scalar against parts", "6", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeProblem(p, tt.answer); got != tt.want {
				t.Errorf("GradeProblem(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestGradeProblem_BlankKeyNeverMatches(t *testing.T) {
	alloc := 4.0
	tests := []struct {
		name   string
		p      *Problem
		answer any
	}{
		{"single blank label", &Problem{ID: "s", Type: ProblemTypeSingle, Allocation: &alloc,
			Options: []Option{{Label: "A"}}, Key: AnswerKey{Kind: KeyLabels, Labels: []string{""}}}, ""},
		{"fill blank text", &Problem{ID: "f", Type: ProblemTypeFill, Allocation: &alloc,
			Key: AnswerKey{Kind: KeyText, Text: " "}}, "   "},
		{"fill blank part", &Problem{ID: "p", Type: ProblemTypeFill, Allocation: &alloc,
			Key: AnswerKey{Kind: KeyParts, Parts: map[string]string{"p-1": "", "p-2": ""}}}, map[string]any{"p-1": "wrong"}},
		{"multi without key", &Problem{ID: "m", Type: ProblemTypeMulti, Allocation: &alloc,
			Options: []Option{{Label: "A"}, {Label: "B"}}}, []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeProblem(tt.p, tt.answer); got != 0 {
				t.Errorf("GradeProblem(%v) = %v, want 0", tt.answer, got)
			}
		})
	}
}

func TestGrade_SumThenRound(t *testing.T) {
	// a and c earn 5/3 each; rounding before summing would give 3.34.
	exam := mustExam(t, `[{"title": "t", "problems": [
		{"id": "a", "type": "multi", "options": [{"label": "A"}, {"label": "B"}, {"label": "C"}], "correctAnswer": ["A"]},
		{"id": "b", "type": "multi", "options": [{"label": "A"}, {"label": "B"}, {"label": "C"}], "correctAnswer": ["A"]},
		{"id": "c", "type": "multi", "options": [{"label": "A"}, {"label": "B"}, {"label": "C"}], "correctAnswer": ["A"]}
	]}]`)
	answers := mustAnswers(t, `{"a": [], "b": "", "c": ["A", "B"]}`)

	r := mustGrade(t, exam, answers)

	if got := r.Score("a"); got != 1.67 {
		t.Errorf("Score(a) = %v, want 1.67", got)
	}
	if got := r.Score("b"); got != 0 {
		t.Errorf("Score(b) = %v, want 0", got)
	}
	if got := r.Score("c"); got != 1.67 {
		t.Errorf("Score(c) = %v, want 1.67", got)
	}
	if r.Total != 3.33 {
		t.Errorf("Total = %v, want 3.33", r.Total)
	}
}

func TestGrade_Bounds(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	sheets := []string{
		`{}`,
		`{"1": "B", "2": ["A", "B", "C", "D", "E"], "3": " 18"}`,
		`{"1": ["B"], "2": "B,D,E", "3": {"x": 1}}`,
		`{"1": 7, "2": [1, 2], "3": 18}`,
	}

	for _, s := range sheets {
		r := mustGrade(t, exam, mustAnswers(t, s))
		for _, p := range exam.Problems() {
			got := r.Score(p.ID)
			if got < 0 || got > p.Max() {
				t.Errorf("%s: Score(%s) = %v outside [0, %v]", s, p.ID, got, p.Max())
			}
		}
	}
}

func TestGrade_EmptySubmission(t *testing.T) {
	exam := mustExam(t, threeProblemExam)

	for _, answers := range []RawAnswers{nil, {}} {
		r := mustGrade(t, exam, answers)
		if r.Total != 0 {
			t.Errorf("Total = %v, want 0", r.Total)
		}
		for _, id := range r.IDs() {
			if r.Score(id) != 0 {
				t.Errorf("Score(%s) = %v, want 0", id, r.Score(id))
			}
		}
		if len(r.Scores) != 3 {
			t.Errorf("len(Scores) = %d, want 3", len(r.Scores))
		}
	}
}

func TestGrade_Deterministic(t *testing.T) {
	exam := mustExam(t, threeProblemExam)
	answers := mustAnswers(t, `{"1": "A", "2": "A", "3": " 18 "}`)

	first, err := json.Marshal(mustGrade(t, exam, answers))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := json.Marshal(mustGrade(t, exam, answers))
		if !bytes.Equal(first, again) {
			t.Fatalf("run %d: %s != %s", i, again, first)
		}
	}
	if want := `{"1":0,"2":3,"3":3,"total":6}`; string(first) != want {
		t.Errorf("report = %s, want %s", first, want)
	}
}

func TestGrade_UnknownTypeScoresZero(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": [
		{"id": "e", "type": "essay", "correctAnswer": "anything"},
		{"id": "s", "type": "single", "options": [{"label": "A"}], "correctAnswer": "A"}
	]}]`)

	r := mustGrade(t, exam, mustAnswers(t, `{"e": "anything", "s": "A"}`))

	if _, ok := r.Scores["e"]; !ok {
		t.Error("unknown type missing from report")
	}
	if r.Score("e") != 0 {
		t.Errorf("Score(e) = %v, want 0", r.Score("e"))
	}
	if r.Total != 3 {
		t.Errorf("Total = %v, want 3", r.Total)
	}
}

func TestGrade_DefaultAllocations(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": [
		{"id": "s", "type": "single", "options": [{"label": "A"}], "correctAnswer": "A"},
		{"id": "m", "type": "multi", "options": [{"label": "A"}], "correctAnswer": ["A"]},
		{"id": "f", "type": "fill", "correctAnswer": "x"},
		{"id": "p", "type": "fill", "points": 2, "answer": "y"}
	]}]`)

	r := mustGrade(t, exam, mustAnswers(t, `{"s": "A", "m": ["A"], "f": "x", "p": "y"}`))

	want := map[string]float64{"s": 3, "m": 5, "f": 3, "p": 2}
	for id, v := range want {
		if got := r.Score(id); got != v {
			t.Errorf("Score(%s) = %v, want %v", id, got, v)
		}
	}
	if r.Total != 13 {
		t.Errorf("Total = %v, want 13", r.Total)
	}
}

func TestGrade_ZeroAllocation(t *testing.T) {
	exam := mustExam(t, `[{"title": "t", "problems": [
		{"id": "z", "type": "single", "allocation": 0, "options": [{"label": "A"}], "correctAnswer": "A"}
	]}]`)

	r := mustGrade(t, exam, mustAnswers(t, `{"z": "A"}`))
	if r.Score("z") != 0 || r.Total != 0 {
		t.Errorf("report = %v, want all zero", r.Flat())
	}
}

func TestGrade_MalformedExam(t *testing.T) {
	_, err := Grade(nil, nil)
	if !errors.Is(err, ErrMalformedExam) {
		t.Errorf("Grade(nil) error = %v, want ErrMalformedExam", err)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.666666, 1.67},
		{1.005000001, 1.01},
		{2.5, 2.5},
		{0, 0},
		{3.333333, 3.33},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
