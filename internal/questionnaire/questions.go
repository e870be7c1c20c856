// Package questionnaire holds the intake question catalog and turns raw answers into answer records.
package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuestionType is the answer shape a question expects.
type QuestionType string

const (
	// TypeSingleChoice selects exactly one option.
	TypeSingleChoice QuestionType = "radio"
	// TypeMultiChoice selects any number of options.
	TypeMultiChoice QuestionType = "checkbox"
	// TypeFreeText is an unconstrained text answer.
	TypeFreeText QuestionType = "textarea"
	// TypeSelect is a drop-down; answers are passed through unresolved.
	TypeSelect QuestionType = "select"
)

// Option is a single answer option. Bare options carry only a label;
// keyed options store Value and display Label.
type Option struct {
	Value string
	Label string
	keyed bool
}

// Choice returns a bare option whose stored value is its label.
func Choice(label string) Option {
	return Option{Value: label, Label: label}
}

// Keyed returns a value/label option.
func Keyed(value, label string) Option {
	return Option{Value: value, Label: label, keyed: true}
}

// IsKeyed reports whether the option is a value/label pair.
func (o Option) IsKeyed() bool {
	return o.keyed
}

// MarshalJSON encodes bare options as strings and keyed options as {value, label}.
func (o Option) MarshalJSON() ([]byte, error) {
	if !o.keyed {
		return json.Marshal(o.Label)
	}
	return json.Marshal(struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}{o.Value, o.Label})
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*o = Choice(label)
		return nil
	}

	var pair struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("option must be a string or {value, label} object: %w", err)
	}
	*o = Keyed(pair.Value, pair.Label)
	return nil
}

// Question is one intake question.
type Question struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// hasKeyedOptions reports whether the question's options are value/label pairs.
// The first option decides for the whole list.
func (q Question) hasKeyedOptions() bool {
	return len(q.Options) > 0 && q.Options[0].IsKeyed()
}

var catalog = []Question{
	{
		ID:    "track",
		Title: "What's your primary focus?",
		Type:  TypeSingleChoice,
		Options: []Option{
			Keyed("faang", "DSA/FAANG Track - Algorithm-focused preparation"),
			Keyed("startup", "Startup/Project Track - Building real-world applications"),
			Keyed("both", "Both - Balanced approach"),
		},
	},
	{
		ID:    "skillLevel",
		Title: "What's your current skill level?",
		Type:  TypeSingleChoice,
		Options: []Option{
			Keyed("beginner", "Beginner - Just starting out"),
			Keyed("intermediate", "Intermediate - Some experience"),
			Keyed("advanced", "Advanced - Experienced developer"),
		},
	},
	{
		ID:    "technologies",
		Title: "What technologies do you already know?",
		Type:  TypeMultiChoice,
		Options: []Option{
			Choice("JavaScript"),
			Choice("Python"),
			Choice("Java"),
			Choice("C++"),
			Choice("React"),
			Choice("Node.js"),
			Choice("TypeScript"),
		},
	},
	{
		ID:    "experience",
		Title: "Do you have professional experience?",
		Type:  TypeSingleChoice,
		Options: []Option{
			Keyed("none", "No professional experience"),
			Keyed("internship", "Internship experience"),
			Keyed("1-2", "1-2 years experience"),
			Keyed("3+", "3+ years experience"),
		},
	},
	{
		ID:    "timeCommitment",
		Title: "How much time can you dedicate weekly?",
		Type:  TypeSingleChoice,
		Options: []Option{
			Keyed("5-10", "5-10 hours per week"),
			Keyed("10-20", "10-20 hours per week"),
			Keyed("20-30", "20-30 hours per week"),
			Keyed("30+", "30+ hours per week"),
		},
	},
}

// ListQuestions returns the intake catalog in presentation order.
// The returned slice is a copy; callers may modify it freely.
func ListQuestions() []Question {
	out := make([]Question, len(catalog))
	for i, q := range catalog {
		q.Options = append([]Option(nil), q.Options...)
		out[i] = q
	}
	return out
}

// FollowupQuestion is a personalised question produced by the analysis service.
type FollowupQuestion struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
}
