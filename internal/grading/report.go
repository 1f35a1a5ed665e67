package grading

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TotalKey is the reserved report key that carries the exam total.
const TotalKey = "total"

// Report holds the earned points per problem id plus the total. It encodes
// to a flat JSON object: {"1": 3, "2": 2.5, "total": 5.5}.
type Report struct {
	Scores map[string]float64
	Total  float64
	order  []string
}

func newReport() *Report {
	return &Report{Scores: make(map[string]float64)}
}

func (r *Report) set(id string, earned float64) {
	if _, ok := r.Scores[id]; !ok {
		r.order = append(r.order, id)
	}
	r.Scores[id] = earned
}

// Score returns the earned points of a problem (zero when absent).
func (r *Report) Score(id string) float64 {
	if r == nil {
		return 0
	}
	return r.Scores[id]
}

// IDs returns the graded problem ids in document order. Reports decoded from
// JSON have no document order and return sorted ids instead.
func (r *Report) IDs() []string {
	if len(r.order) == len(r.Scores) {
		return append([]string(nil), r.order...)
	}
	keys := make([]string, 0, len(r.Scores))
	for k := range r.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flat returns the report as a single map including the total key.
func (r Report) Flat() map[string]float64 {
	m := make(map[string]float64, len(r.Scores)+1)
	for k, v := range r.Scores {
		m[k] = v
	}
	m[TotalKey] = r.Total
	return m
}

// MarshalJSON encodes the flat form. encoding/json sorts map keys, so equal
// reports always produce identical bytes.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flat())
}

// UnmarshalJSON decodes the flat form.
func (r *Report) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	r.Scores = make(map[string]float64, len(m))
	r.order = nil
	for k, v := range m {
		if k == TotalKey {
			r.Total = v
			continue
		}
		r.Scores[k] = v
	}
	return nil
}
