package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProblemType selects the scoring rule applied to a problem.
type ProblemType string

const (
	ProblemTypeSingle ProblemType = "single"
	ProblemTypeMulti  ProblemType = "multi"
	ProblemTypeFill   ProblemType = "fill"
)

// Default allocations used when a problem does not declare one.
const (
	DefaultSingleAllocation  = 3.0
	DefaultFillAllocation    = 3.0
	DefaultMultiAllocation   = 5.0
	DefaultGenericAllocation = 5.0
)

// Exam is an exam definition: an ordered sequence of blocks.
type Exam struct {
	Blocks []Block
}

// Block is a titled group of problems.
type Block struct {
	Title    string
	Problems []Problem
}

// Option is one labelled choice of a single or multi problem.
type Option struct {
	Label       string `json:"label" yaml:"label"`
	Text        string `json:"text" yaml:"text"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation"`
	Percent     string `json:"percent,omitempty" yaml:"percent"`
}

// Problem is a single gradable question.
type Problem struct {
	ID          string
	Type        ProblemType
	Allocation  *float64
	Options     []Option
	Key         AnswerKey
	Question    string
	Explanation string
	Image       string
	Tags        []string
	Stats       map[string]any
}

// Max returns the declared allocation, or the type default when absent.
func (p *Problem) Max() float64 {
	if p.Allocation != nil {
		return *p.Allocation
	}
	switch p.Type {
	case ProblemTypeSingle:
		return DefaultSingleAllocation
	case ProblemTypeFill:
		return DefaultFillAllocation
	case ProblemTypeMulti:
		return DefaultMultiAllocation
	default:
		return DefaultGenericAllocation
	}
}

// Labels returns the declared option labels in document order.
func (p *Problem) Labels() []string {
	labels := make([]string, len(p.Options))
	for i, o := range p.Options {
		labels[i] = o.Label
	}
	return labels
}

// Problems returns every problem of the exam in document order.
func (e *Exam) Problems() []*Problem {
	var out []*Problem
	for bi := range e.Blocks {
		for pi := range e.Blocks[bi].Problems {
			out = append(out, &e.Blocks[bi].Problems[pi])
		}
	}
	return out
}

// Find looks a problem up by id.
func (e *Exam) Find(id string) (*Problem, bool) {
	for _, p := range e.Problems() {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// MaxTotal returns the sum of all allocations.
func (e *Exam) MaxTotal() float64 {
	var sum float64
	for _, p := range e.Problems() {
		sum += p.Max()
	}
	return sum
}

// ────────────────────────────────────────────────────────────────────────────
// Decoding
// ────────────────────────────────────────────────────────────────────────────

// ParseJSON decodes a JSON exam document.
func ParseJSON(data []byte) (*Exam, error) {
	var exam Exam
	if err := json.Unmarshal(data, &exam); err != nil {
		return nil, fmt.Errorf("decode exam json: %w", err)
	}
	return &exam, nil
}

// ParseYAML decodes a YAML exam document.
func ParseYAML(data []byte) (*Exam, error) {
	var exam Exam
	if err := yaml.Unmarshal(data, &exam); err != nil {
		return nil, fmt.Errorf("decode exam yaml: %w", err)
	}
	return &exam, nil
}

// UnmarshalJSON accepts either an array of blocks or an object whose values
// are blocks. Object key order is kept.
func (e *Exam) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var blocks []Block
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return err
			}
			var b Block
			if err := dec.Decode(&b); err != nil {
				return err
			}
			blocks = append(blocks, b)
		}
		e.Blocks = blocks
		return nil
	}

	var blocks []Block
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return err
	}
	e.Blocks = blocks
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (e *Exam) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var blocks []Block
		for i := 1; i < len(value.Content); i += 2 {
			var b Block
			if err := value.Content[i].Decode(&b); err != nil {
				return err
			}
			blocks = append(blocks, b)
		}
		e.Blocks = blocks
		return nil
	}

	var blocks []Block
	if err := value.Decode(&blocks); err != nil {
		return err
	}
	e.Blocks = blocks
	return nil
}

// UnmarshalJSON accepts both "title" and the older "blockTitle".
func (b *Block) UnmarshalJSON(data []byte) error {
	var aux struct {
		Title      string    `json:"title"`
		BlockTitle string    `json:"blockTitle"`
		Problems   []Problem `json:"problems"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.Title = firstNonEmpty(aux.Title, aux.BlockTitle)
	b.Problems = aux.Problems
	return nil
}

func (b *Block) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Title      string    `yaml:"title"`
		BlockTitle string    `yaml:"blockTitle"`
		Problems   []Problem `yaml:"problems"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	b.Title = firstNonEmpty(aux.Title, aux.BlockTitle)
	b.Problems = aux.Problems
	return nil
}

// UnmarshalJSON decodes a problem. "points" is an alias of "allocation" and
// "answer" an alias of "correctAnswer".
func (p *Problem) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID            json.RawMessage `json:"id"`
		Type          ProblemType     `json:"type"`
		Allocation    *float64        `json:"allocation"`
		Points        *float64        `json:"points"`
		Options       []Option        `json:"options"`
		CorrectAnswer json.RawMessage `json:"correctAnswer"`
		Answer        json.RawMessage `json:"answer"`
		Question      string          `json:"question"`
		Explanation   string          `json:"explanation"`
		Image         string          `json:"image"`
		Tags          []string        `json:"tags"`
		Stats         map[string]any  `json:"stats"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeJSONValue(aux.ID)
	if err != nil {
		return fmt.Errorf("problem id: %w", err)
	}
	rawKey := aux.CorrectAnswer
	if isJSONNull(rawKey) {
		rawKey = aux.Answer
	}
	key, err := decodeJSONValue(rawKey)
	if err != nil {
		return fmt.Errorf("problem %s answer key: %w", literalOrEmpty(id), err)
	}

	*p = Problem{
		ID:          literalOrEmpty(id),
		Type:        aux.Type,
		Allocation:  aux.Allocation,
		Options:     aux.Options,
		Question:    aux.Question,
		Explanation: aux.Explanation,
		Image:       aux.Image,
		Tags:        aux.Tags,
		Stats:       aux.Stats,
	}
	if p.Allocation == nil {
		p.Allocation = aux.Points
	}
	p.Key = newAnswerKey(p.Type, key)
	p.labelOptions()
	return nil
}

func (p *Problem) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		ID            yaml.Node      `yaml:"id"`
		Type          ProblemType    `yaml:"type"`
		Allocation    *float64       `yaml:"allocation"`
		Points        *float64       `yaml:"points"`
		Options       []Option       `yaml:"options"`
		CorrectAnswer yaml.Node      `yaml:"correctAnswer"`
		Answer        yaml.Node      `yaml:"answer"`
		Question      string         `yaml:"question"`
		Explanation   string         `yaml:"explanation"`
		Image         string         `yaml:"image"`
		Tags          []string       `yaml:"tags"`
		Stats         map[string]any `yaml:"stats"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	keyNode := &aux.CorrectAnswer
	if keyNode.Kind == 0 {
		keyNode = &aux.Answer
	}

	*p = Problem{
		ID:          literalOrEmpty(yamlValue(&aux.ID)),
		Type:        aux.Type,
		Allocation:  aux.Allocation,
		Options:     aux.Options,
		Question:    aux.Question,
		Explanation: aux.Explanation,
		Image:       aux.Image,
		Tags:        aux.Tags,
		Stats:       aux.Stats,
	}
	if p.Allocation == nil {
		p.Allocation = aux.Points
	}
	p.Key = newAnswerKey(p.Type, yamlValue(keyNode))
	p.labelOptions()
	return nil
}

// labelOptions gives unlabelled options the letter of their position.
func (p *Problem) labelOptions() {
	for i := range p.Options {
		if strings.TrimSpace(p.Options[i].Label) == "" && i < 26 {
			p.Options[i].Label = string(rune('A' + i))
		}
	}
}

// decodeJSONValue decodes raw JSON into a generic value, keeping numbers as
// their literal text.
func decodeJSONValue(raw json.RawMessage) (any, error) {
	if isJSONNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isJSONNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// yamlValue converts a node into a generic value. Scalars keep their literal
// text so "6.0" never turns into 6.
func yamlValue(n *yaml.Node) any {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return n.Value
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, yamlValue(c))
		}
		return out
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 1; i < len(n.Content); i += 2 {
			out[n.Content[i-1].Value] = yamlValue(n.Content[i])
		}
		return out
	case yaml.AliasNode:
		if n.Alias != nil {
			return yamlValue(n.Alias)
		}
	}
	return nil
}

func literalOrEmpty(v any) string {
	s, _ := literal(v)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
