package grading

// Paper is the student-facing view of an exam: every problem with its
// options, but no answer keys or explanations.
type Paper struct {
	Blocks   []PaperBlock `json:"blocks"`
	MaxTotal float64      `json:"max_total"`
}

// PaperBlock is one titled block of a Paper.
type PaperBlock struct {
	Title    string         `json:"title"`
	Problems []PaperProblem `json:"problems"`
}

// PaperProblem is a problem without its key.
type PaperProblem struct {
	ID       string        `json:"id"`
	Type     ProblemType   `json:"type"`
	Max      float64       `json:"max"`
	Question string        `json:"question,omitempty"`
	Image    string        `json:"image,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Options  []PaperOption `json:"options,omitempty"`
	// Blanks lists the sub-keys of a multi-part fill problem.
	Blanks []string `json:"blanks,omitempty"`
}

// PaperOption is an option without its explanation or statistics.
type PaperOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// NewPaper strips every key and explanation from exam.
func NewPaper(exam *Exam) *Paper {
	p := &Paper{
		Blocks:   make([]PaperBlock, 0, len(exam.Blocks)),
		MaxTotal: Round2(exam.MaxTotal()),
	}
	for _, b := range exam.Blocks {
		pb := PaperBlock{Title: b.Title, Problems: make([]PaperProblem, 0, len(b.Problems))}
		for i := range b.Problems {
			pr := &b.Problems[i]
			pp := PaperProblem{
				ID:       pr.ID,
				Type:     pr.Type,
				Max:      pr.Max(),
				Question: pr.Question,
				Image:    pr.Image,
				Tags:     pr.Tags,
			}
			for _, o := range pr.Options {
				pp.Options = append(pp.Options, PaperOption{Label: o.Label, Text: o.Text})
			}
			if pr.Key.Kind == KeyParts {
				pp.Blanks = pr.Key.SubKeys()
			}
			pb.Problems = append(pb.Problems, pp)
		}
		p.Blocks = append(p.Blocks, pb)
	}
	return p
}
