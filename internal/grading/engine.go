// Package grading scores exam submissions.
//
// Grading is a pure transform from an exam definition and a submitted answer
// sheet to a score report. Nothing in this package performs I/O or keeps
// state between calls, so every function is safe for concurrent use.
package grading

import (
	"math"
	"strings"
)

// scorer computes the unrounded points earned on one problem. The response
// is never ResponseNone when a scorer runs.
type scorer func(p *Problem, alloc float64, r Response) float64

var scorers = map[ProblemType]scorer{
	ProblemTypeSingle: scoreSingle,
	ProblemTypeMulti:  scoreMulti,
	ProblemTypeFill:   scoreFill,
}

// Grade validates the exam and scores every problem in document order.
// Structural defects of the exam are returned as errors wrapping
// ErrMalformedExam; problems with answers of the wrong shape score zero.
func Grade(exam *Exam, answers RawAnswers) (*Report, error) {
	if err := Validate(exam); err != nil {
		return nil, err
	}

	report := newReport()
	var sum float64
	for _, p := range exam.Problems() {
		earned := GradeProblem(p, answers[p.ID])
		sum += earned
		report.set(p.ID, math.Min(Round2(earned), p.Max()))
	}
	report.Total = Round2(sum)
	return report, nil
}

// GradeProblem returns the unrounded points earned on p for the raw answer v.
// A missing answer (nil) always earns zero.
func GradeProblem(p *Problem, v any) float64 {
	s, ok := scorers[p.Type]
	if !ok {
		return 0
	}
	r := Normalize(p, v)
	if r.Kind == ResponseNone {
		return 0
	}
	alloc := p.Max()
	if alloc <= 0 {
		return 0
	}
	return s(p, alloc, r)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// scoreSingle is all-or-nothing exact label equality.
func scoreSingle(p *Problem, alloc float64, r Response) float64 {
	if p.Key.Kind != KeyLabels || len(p.Key.Labels) != 1 || len(r.Choices) != 1 {
		return 0
	}
	if strings.TrimSpace(p.Key.Labels[0]) == "" {
		return 0
	}
	if r.Choices[0] == p.Key.Labels[0] {
		return alloc
	}
	return 0
}

// scoreMulti treats every declared option as a binary decision. Matching
// decisions add, mismatching ones subtract, and the result is scaled by the
// option count and floored at zero.
func scoreMulti(p *Problem, alloc float64, r Response) float64 {
	labels := p.Labels()
	if len(labels) == 0 || p.Key.Kind != KeyLabels {
		return 0
	}

	picked := toSet(r.Choices)
	correct := toSet(p.Key.Labels)

	var right, wrong int
	for _, l := range labels {
		_, isPicked := picked[l]
		_, isCorrect := correct[l]
		if isPicked == isCorrect {
			right++
		} else {
			wrong++
		}
	}

	raw := alloc * float64(right-wrong) / float64(len(labels))
	return math.Max(0, raw)
}

// scoreFill compares trimmed strings; multi-part keys earn linear credit per
// matching blank.
func scoreFill(p *Problem, alloc float64, r Response) float64 {
	switch p.Key.Kind {
	case KeyText:
		want := strings.TrimSpace(p.Key.Text)
		if want != "" && r.Kind == ResponseText && strings.TrimSpace(r.Text) == want {
			return alloc
		}
		return 0
	case KeyParts:
		if len(p.Key.Parts) == 0 || r.Kind != ResponseParts {
			return 0
		}
		perBlank := alloc / float64(len(p.Key.Parts))
		matched := 0
		for sk, want := range p.Key.Parts {
			want = strings.TrimSpace(want)
			if want != "" && strings.TrimSpace(r.Parts[sk]) == want {
				matched++
			}
		}
		return float64(matched) * perBlank
	}
	return 0
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}
