package grading

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedExam marks a structural defect of an exam definition. Callers
// are expected to validate before grading; Grade fails fast with it.
var ErrMalformedExam = errors.New("malformed exam definition")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedExam, fmt.Sprintf(format, args...))
}

// Validate checks the structural preconditions of grading. Unknown problem
// types are not an error; they score zero.
func Validate(exam *Exam) error {
	if exam == nil {
		return malformed("exam is nil")
	}

	seen := make(map[string]struct{})
	for bi := range exam.Blocks {
		b := &exam.Blocks[bi]
		if b.Problems == nil {
			return malformed("block %d (%q) has no problems sequence", bi+1, b.Title)
		}
		for pi := range b.Problems {
			p := &b.Problems[pi]
			if err := validateProblem(p); err != nil {
				return err
			}
			if _, dup := seen[p.ID]; dup {
				return malformed("duplicate problem id %q", p.ID)
			}
			seen[p.ID] = struct{}{}
		}
	}
	return nil
}

func validateProblem(p *Problem) error {
	if strings.TrimSpace(p.ID) == "" {
		return malformed("problem without id")
	}
	if p.ID == TotalKey {
		return malformed("problem id %q is reserved", TotalKey)
	}
	if p.Allocation != nil {
		a := *p.Allocation
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return malformed("problem %s has a non-finite allocation", p.ID)
		}
		if a < 0 {
			return malformed("problem %s has negative allocation", p.ID)
		}
	}

	labels := make(map[string]struct{}, len(p.Options))
	for _, o := range p.Options {
		if _, dup := labels[o.Label]; dup {
			return malformed("problem %s has duplicate option label %q", p.ID, o.Label)
		}
		labels[o.Label] = struct{}{}
	}

	switch p.Type {
	case ProblemTypeMulti:
		if len(p.Options) == 0 {
			return malformed("multi problem %s declares no options", p.ID)
		}
	case ProblemTypeFill:
		if p.Key.Kind == KeyParts && len(p.Key.Parts) == 0 {
			return malformed("fill problem %s has an empty multi-part key", p.ID)
		}
	}
	return validateKey(p)
}

// validateKey rejects answer keys that a blank response could match.
func validateKey(p *Problem) error {
	switch p.Type {
	case ProblemTypeSingle, ProblemTypeMulti, ProblemTypeFill:
	default:
		return nil
	}

	k := p.Key
	switch k.Kind {
	case KeyNone:
		return malformed("%s problem %s has no usable answer key", p.Type, p.ID)
	case KeyLabels:
		if len(k.Labels) == 0 {
			return malformed("%s problem %s has an empty answer key", p.Type, p.ID)
		}
		for _, l := range k.Labels {
			if strings.TrimSpace(l) == "" {
				return malformed("%s problem %s has a blank answer label", p.Type, p.ID)
			}
		}
	case KeyText:
		if strings.TrimSpace(k.Text) == "" {
			return malformed("fill problem %s has a blank answer key", p.ID)
		}
	case KeyParts:
		for sk, v := range k.Parts {
			if strings.TrimSpace(sk) == "" || strings.TrimSpace(v) == "" {
				return malformed("fill problem %s has a blank value for sub-key %q", p.ID, sk)
			}
		}
	}
	return nil
}
