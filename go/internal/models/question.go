package models

// Colors is the fixed vocabulary questions are built from.
var Colors = []string{
	"RED", "GREEN", "BLUE", "YELLOW", "PURPLE",
	"BLACK", "GRAY", "ORANGE", "PINK", "BROWN",
}

// OptionCount is the number of answer options offered per question.
const OptionCount = 5

// Question is a single Stroop prompt. Prompt is the word shown and
// CorrectAnswer is the ink it is drawn in.
type Question struct {
	ID            int64    `json:"question_id"`
	Prompt        string   `json:"text"`
	CorrectAnswer string   `json:"text_color"`
	Options       []string `json:"options"`
}

// HasOption reports whether answer is one of the offered options.
func (q *Question) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}
