package grading

import (
	"strconv"
)

// ReviewStatus classifies a problem result for display.
type ReviewStatus string

const (
	StatusCorrect ReviewStatus = "correct"
	StatusPartial ReviewStatus = "partial"
	StatusWrong   ReviewStatus = "wrong"
)

// Review is the merged view of an exam, a submission and its report.
type Review struct {
	Blocks []ReviewBlock `json:"blocks"`
	Total  float64       `json:"total"`
	Max    float64       `json:"max"`
}

// ReviewBlock groups reviewed problems under their block title.
type ReviewBlock struct {
	Title    string          `json:"title"`
	Problems []ReviewProblem `json:"problems"`
}

// ReviewProblem is one problem with the student's result attached.
type ReviewProblem struct {
	ID          string         `json:"id"`
	Type        ProblemType    `json:"type"`
	Question    string         `json:"question,omitempty"`
	Image       string         `json:"image,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Earned      float64        `json:"earned"`
	Max         float64        `json:"max"`
	Status      ReviewStatus   `json:"status"`
	Submitted   any            `json:"submitted"`
	Correct     any            `json:"correct"`
	Options     []ReviewOption `json:"options,omitempty"`
	Accuracy    string         `json:"accuracy,omitempty"`
}

// ReviewOption flags an option as selected and/or correct.
type ReviewOption struct {
	Label       string `json:"label"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
	Percent     string `json:"percent,omitempty"`
	Selected    bool   `json:"selected"`
	Correct     bool   `json:"correct"`
}

// ProblemStats aggregates how a cohort answered one problem.
type ProblemStats struct {
	Attempts   int
	FullCredit int
	Picks      map[string]int
}

// BuildReview merges the exam with a submission. Answers and scores are
// looked up by problem id, never by position.
func BuildReview(exam *Exam, answers RawAnswers, report *Report) *Review {
	rv := &Review{
		Blocks: make([]ReviewBlock, 0, len(exam.Blocks)),
		Total:  report.Total,
		Max:    Round2(exam.MaxTotal()),
	}

	for bi := range exam.Blocks {
		b := &exam.Blocks[bi]
		rb := ReviewBlock{Title: b.Title, Problems: make([]ReviewProblem, 0, len(b.Problems))}
		for pi := range b.Problems {
			rb.Problems = append(rb.Problems, reviewProblem(&b.Problems[pi], answers[b.Problems[pi].ID], report))
		}
		rv.Blocks = append(rv.Blocks, rb)
	}
	return rv
}

func reviewProblem(p *Problem, raw any, report *Report) ReviewProblem {
	resp := Normalize(p, raw)
	earned := report.Score(p.ID)
	maxPts := p.Max()

	rp := ReviewProblem{
		ID:          p.ID,
		Type:        p.Type,
		Question:    p.Question,
		Image:       p.Image,
		Tags:        p.Tags,
		Stats:       p.Stats,
		Explanation: p.Explanation,
		Earned:      earned,
		Max:         maxPts,
		Status:      statusOf(earned, maxPts),
		Submitted:   resp.Value(p.Type),
		Correct:     p.Key.Value(p.Type),
	}

	if len(p.Options) > 0 {
		picked := toSet(resp.Choices)
		correct := toSet(p.Key.Labels)
		rp.Options = make([]ReviewOption, len(p.Options))
		for i, o := range p.Options {
			_, sel := picked[o.Label]
			_, ok := correct[o.Label]
			rp.Options[i] = ReviewOption{
				Label:       o.Label,
				Text:        o.Text,
				Explanation: o.Explanation,
				Percent:     o.Percent,
				Selected:    sel,
				Correct:     ok,
			}
		}
	}
	return rp
}

func statusOf(earned, maxPts float64) ReviewStatus {
	switch {
	case earned <= 0:
		return StatusWrong
	case earned >= maxPts:
		return StatusCorrect
	default:
		return StatusPartial
	}
}

// ApplyStats replaces static option percentages with live ones. Problems
// without recorded attempts keep the values from the definition.
func (rv *Review) ApplyStats(stats map[string]ProblemStats) {
	for bi := range rv.Blocks {
		for pi := range rv.Blocks[bi].Problems {
			rp := &rv.Blocks[bi].Problems[pi]
			st, ok := stats[rp.ID]
			if !ok || st.Attempts == 0 {
				continue
			}
			rp.Accuracy = percent(st.FullCredit, st.Attempts)
			for oi := range rp.Options {
				rp.Options[oi].Percent = percent(st.Picks[rp.Options[oi].Label], st.Attempts)
			}
		}
	}
}

func percent(n, of int) string {
	if of == 0 {
		return "0%"
	}
	return strconv.Itoa(int(Round2(float64(n)*100/float64(of))+0.5)) + "%"
}

// Outcome is what one submission contributed to a problem's statistics.
type Outcome struct {
	ProblemID  string   `json:"problem_id"`
	Picked     []string `json:"picked,omitempty"`
	FullCredit bool     `json:"full_credit"`
}

// Outcomes lists, per problem, the labels picked and whether full credit was
// earned. Only declared option labels are reported.
func Outcomes(exam *Exam, answers RawAnswers, report *Report) []Outcome {
	problems := exam.Problems()
	out := make([]Outcome, 0, len(problems))
	for _, p := range problems {
		o := Outcome{ProblemID: p.ID}
		if len(p.Options) > 0 {
			resp := Normalize(p, answers[p.ID])
			picked := toSet(resp.Choices)
			for _, l := range p.Labels() {
				if _, ok := picked[l]; ok {
					o.Picked = append(o.Picked, l)
				}
			}
		}
		o.FullCredit = p.Max() > 0 && report.Score(p.ID) >= p.Max()
		out = append(out, o)
	}
	return out
}
