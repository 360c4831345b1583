package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Rubric is the help text shown next to the rating grid.
type Rubric struct {
	Title        string         `yaml:"title"`
	Instructions string         `yaml:"instructions"`
	Scores       map[int]string `yaml:"scores"`
}

// ScoreHint is one line of the rubric legend.
type ScoreHint struct {
	Score   int
	Meaning string
}

func DefaultRubric() *Rubric {
	return &Rubric{
		Title:        "Description Eval Tool",
		Instructions: "Please read each description in full, then rate how well it describes the video.",
		Scores: map[int]string{
			1: "bad: wrong or unrelated to the video",
			2: "poor: mostly wrong, a few correct details",
			3: "fair: partly correct, misses important content",
			4: "good: correct, minor omissions",
			5: "excellent: accurate and complete",
		},
	}
}

// LoadRubric reads a YAML rubric from path. An empty path yields DefaultRubric.
// Fields missing from the file keep their default values.
func LoadRubric(path string) (*Rubric, error) {
	r := DefaultRubric()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return ParseRubric(data)
}

func ParseRubric(data []byte) (*Rubric, error) {
	r := DefaultRubric()
	var in Rubric
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	if in.Title != "" {
		r.Title = in.Title
	}
	if in.Instructions != "" {
		r.Instructions = in.Instructions
	}
	for score, meaning := range in.Scores {
		if score < 1 || score > 5 {
			return nil, fmt.Errorf("parse rubric: score %d out of range 1..5", score)
		}
		r.Scores[score] = meaning
	}
	return r, nil
}

// Legend returns the score meanings ordered by score.
func (r *Rubric) Legend() []ScoreHint {
	out := make([]ScoreHint, 0, len(r.Scores))
	for s, m := range r.Scores {
		out = append(out, ScoreHint{Score: s, Meaning: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}
