package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

// QuestionGenerator builds random Stroop questions from models.Colors.
type QuestionGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewQuestionGenerator returns a generator seeded from the wall clock.
func NewQuestionGenerator() *QuestionGenerator {
	return NewSeededQuestionGenerator(uint64(time.Now().UnixNano()))
}

// NewSeededQuestionGenerator returns a deterministic generator.
func NewSeededQuestionGenerator(seed uint64) *QuestionGenerator {
	return &QuestionGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns a question with the given id. The prompt and the correct
// answer always differ and the options hold OptionCount distinct colors.
func (g *QuestionGenerator) Next(id int64) *models.Question {
	g.mu.Lock()
	defer g.mu.Unlock()

	colors := models.Colors
	prompt := colors[g.rng.IntN(len(colors))]

	correct := prompt
	for correct == prompt {
		correct = colors[g.rng.IntN(len(colors))]
	}

	wrong := make([]string, 0, len(colors)-1)
	for _, c := range colors {
		if c != correct {
			wrong = append(wrong, c)
		}
	}
	g.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })

	options := append(wrong[:models.OptionCount-1:models.OptionCount-1], correct)
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return &models.Question{
		ID:            id,
		Prompt:        prompt,
		CorrectAnswer: correct,
		Options:       options,
	}
}
