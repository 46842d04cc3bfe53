package validators

import (
	"strings"

	"github.com/evalops/deployverify/internal/models"
)

const (
	defaultNGramSize   = 3
	defaultRepeatCount = 4
)

// RepeatNGramValidator detects degenerate repetition: the response fails when
// any character n-gram occurs at least repeatCount times in the content.
type RepeatNGramValidator struct {
	n           int
	repeatCount int
}

// NewRepeatNGramValidator builds the validator; non-positive parameters fall
// back to the defaults (n=3, repeat_count=4).
func NewRepeatNGramValidator(n, repeatCount int) *RepeatNGramValidator {
	if n <= 0 {
		n = defaultNGramSize
	}
	if repeatCount <= 0 {
		repeatCount = defaultRepeatCount
	}
	return &RepeatNGramValidator{n: n, repeatCount: repeatCount}
}

func (v *RepeatNGramValidator) Name() string { return models.CheckRepeatNGram }

func (v *RepeatNGramValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{
		Validator: v.Name(),
		Detail: map[string]any{
			"n":            v.n,
			"repeat_count": v.repeatCount,
		},
	}
	if !in.OK {
		return verdict
	}
	content := models.ResponseContent(in.Response)
	if content == "" {
		return verdict
	}

	verdict.Triggered = true
	if gram, found := repeatedNGram(content, v.n, v.repeatCount); found {
		verdict.Detail["repeated"] = gram
		return verdict
	}
	verdict.Passed = true
	return verdict
}

// repeatedNGram returns the first n-gram of runes whose non-overlapping
// occurrence count reaches limit, if any. Counting is non-overlapping, so
// a run of a single repeated rune is one long occurrence chain rather than
// a window per position.
func repeatedNGram(text string, n, limit int) (string, bool) {
	runes := []rune(text)
	if len(runes) < n {
		return "", false
	}
	seen := make(map[string]bool)
	for i := 0; i+n <= len(runes); i++ {
		gram := string(runes[i : i+n])
		if seen[gram] {
			continue
		}
		seen[gram] = true
		if strings.Count(text, gram) >= limit {
			return gram, true
		}
	}
	return "", false
}
