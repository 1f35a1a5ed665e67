package grading

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ────────────────────────────────────────────────────────────────────────────
// Answer key
// ────────────────────────────────────────────────────────────────────────────

// KeyKind tells which shape an answer key has.
type KeyKind int

const (
	KeyNone KeyKind = iota
	KeyLabels
	KeyText
	KeyParts
)

// AnswerKey is the correct answer of a problem, normalised by problem type.
//   - single: Labels holds exactly one label
//   - multi:  Labels holds the correct label set
//   - fill:   Text (scalar) or Parts (sub-key → value)
type AnswerKey struct {
	Kind   KeyKind
	Labels []string
	Text   string
	Parts  map[string]string
}

func newAnswerKey(t ProblemType, v any) AnswerKey {
	if v == nil {
		return AnswerKey{}
	}

	switch t {
	case ProblemTypeSingle:
		if s, ok := literal(v); ok {
			return AnswerKey{Kind: KeyLabels, Labels: []string{s}}
		}
		if arr, ok := v.([]any); ok && len(arr) == 1 {
			if s, ok := literal(arr[0]); ok {
				return AnswerKey{Kind: KeyLabels, Labels: []string{s}}
			}
		}
	case ProblemTypeMulti:
		if labels, ok := labelSet(v); ok {
			return AnswerKey{Kind: KeyLabels, Labels: labels}
		}
	case ProblemTypeFill:
		if m, ok := v.(map[string]any); ok {
			parts := make(map[string]string, len(m))
			for k, sub := range m {
				parts[k], _ = literal(sub)
			}
			return AnswerKey{Kind: KeyParts, Parts: parts}
		}
		if s, ok := literal(v); ok {
			return AnswerKey{Kind: KeyText, Text: s}
		}
	}
	return AnswerKey{}
}

// SubKeys returns the multi-part sub-keys in sorted order.
func (k AnswerKey) SubKeys() []string {
	keys := make([]string, 0, len(k.Parts))
	for sk := range k.Parts {
		keys = append(keys, sk)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the key in its JSON shape: a label, a label list, a string or
// a sub-key mapping.
func (k AnswerKey) Value(t ProblemType) any {
	switch k.Kind {
	case KeyLabels:
		if t == ProblemTypeSingle && len(k.Labels) == 1 {
			return k.Labels[0]
		}
		return k.Labels
	case KeyText:
		return k.Text
	case KeyParts:
		return k.Parts
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Submitted answers
// ────────────────────────────────────────────────────────────────────────────

// RawAnswers is a submitted answer sheet keyed by problem id. Values keep the
// shape the client sent; numbers are kept as json.Number.
type RawAnswers map[string]any

// UnmarshalJSON decodes an answer object keeping numeric literals intact.
func (a *RawAnswers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*a = m
	return nil
}

// DecodeAnswers parses a JSON answer object.
func DecodeAnswers(data []byte) (RawAnswers, error) {
	var a RawAnswers
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if a == nil {
		a = RawAnswers{}
	}
	return a, nil
}

// ResponseKind tags the canonical shape of a normalised answer.
type ResponseKind int

const (
	ResponseNone ResponseKind = iota
	ResponseChoices
	ResponseText
	ResponseParts
)

// Response is a submitted answer normalised for one problem.
type Response struct {
	Kind    ResponseKind
	Choices []string
	Text    string
	Parts   map[string]string
}

// Answered reports whether the response carries anything at all.
func (r Response) Answered() bool {
	switch r.Kind {
	case ResponseChoices:
		return len(r.Choices) > 0
	case ResponseText:
		return strings.TrimSpace(r.Text) != ""
	case ResponseParts:
		return len(r.Parts) > 0
	}
	return false
}

// Value returns the response in its JSON shape.
func (r Response) Value(t ProblemType) any {
	switch r.Kind {
	case ResponseChoices:
		if t == ProblemTypeSingle && len(r.Choices) == 1 {
			return r.Choices[0]
		}
		return r.Choices
	case ResponseText:
		return r.Text
	case ResponseParts:
		return r.Parts
	}
	return nil
}

// Normalize maps a raw answer onto the canonical shape expected by the
// problem's type. Shapes that cannot be interpreted yield an empty response.
func Normalize(p *Problem, v any) Response {
	if v == nil {
		return Response{}
	}

	switch p.Type {
	case ProblemTypeSingle:
		if s, ok := literal(v); ok {
			return Response{Kind: ResponseChoices, Choices: []string{s}}
		}
		if arr, ok := v.([]any); ok && len(arr) == 1 {
			if s, ok := literal(arr[0]); ok {
				return Response{Kind: ResponseChoices, Choices: []string{s}}
			}
		}
	case ProblemTypeMulti:
		// A delimited string that yields no labels is an untouched field.
		// Only an explicit [] is graded as "picked nothing".
		if labels, ok := labelSet(v); ok {
			if len(labels) == 0 && !isList(v) {
				return Response{}
			}
			return Response{Kind: ResponseChoices, Choices: labels}
		}
	case ProblemTypeFill:
		if p.Key.Kind == KeyParts {
			m, ok := v.(map[string]any)
			if !ok {
				return Response{}
			}
			parts := make(map[string]string, len(m))
			for k, sub := range m {
				if s, ok := literal(sub); ok {
					parts[k] = s
				}
			}
			return Response{Kind: ResponseParts, Parts: parts}
		}
		if s, ok := literal(v); ok {
			return Response{Kind: ResponseText, Text: s}
		}
	}
	return Response{}
}

// labelSet reads a label list from an array or a comma-delimited string.
// Labels are trimmed, empties dropped and duplicates collapsed.
func labelSet(v any) ([]string, bool) {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := literal(e); ok {
				items = append(items, s)
			}
		}
	case []string:
		items = t
	default:
		s, ok := literal(v)
		if !ok {
			return nil, false
		}
		items = strings.Split(s, ",")
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out, true
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	}
	return false
}

// literal renders a scalar as text. Composite values are rejected.
func literal(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
