package questionnaire

import (
	"time"
)

// AnswerRecord is the structured form of one answered (or unanswered) question.
type AnswerRecord struct {
	QuestionID   string       `json:"questionId"`
	Question     string       `json:"question"`
	QuestionType QuestionType `json:"questionType"`
	// UserAnswer is the raw answer, or nil when absent or empty.
	UserAnswer any `json:"userAnswer"`
	// SelectedOptions is the resolved display value.
	SelectedOptions any `json:"selectedOptions"`
}

// Submission is a formatted phase-1 answer set.
type Submission struct {
	Timestamp           time.Time      `json:"timestamp"`
	QuestionsAndAnswers []AnswerRecord `json:"questionsAndAnswers"`
	RawAnswers          map[string]any `json:"rawAnswers"`
}

// FormatAnswers produces exactly one record per catalog question, in catalog order.
// Keys in raw that do not name a catalog question are ignored and missing keys are
// recorded as nil answers. Resolution never fails.
func FormatAnswers(questions []Question, raw map[string]any) []AnswerRecord {
	records := make([]AnswerRecord, 0, len(questions))
	for _, q := range questions {
		answer := raw[q.ID]
		records = append(records, AnswerRecord{
			QuestionID:      q.ID,
			Question:        q.Title,
			QuestionType:    q.Type,
			UserAnswer:      nilIfEmpty(answer),
			SelectedOptions: resolve(q, answer),
		})
	}
	return records
}

// Submit formats raw against questions and stamps the result.
func Submit(questions []Question, raw map[string]any, at time.Time) *Submission {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Submission{
		Timestamp:           at.UTC(),
		QuestionsAndAnswers: FormatAnswers(questions, raw),
		RawAnswers:          raw,
	}
}

func resolve(q Question, answer any) any {
	switch q.Type {
	case TypeSingleChoice:
		if !q.hasKeyedOptions() {
			return answer
		}
		if value, ok := answer.(string); ok {
			for _, opt := range q.Options {
				if opt.Value == value && opt.Label != "" {
					return opt.Label
				}
			}
		}
		return answer
	case TypeMultiChoice:
		// Non-sequence answers fall through unchanged.
		return answer
	default:
		return answer
	}
}

func nilIfEmpty(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
	case bool:
		if !t {
			return nil
		}
	case float64:
		if t == 0 {
			return nil
		}
	}
	return v
}
