package validators

import (
	"fmt"
	"unicode"

	"golang.org/x/text/language"

	"github.com/evalops/deployverify/internal/models"
)

// Detector identifies the primary script of a response text. Implementations
// must be deterministic for a given input.
type Detector interface {
	// DetectScript returns the dominant ISO 15924 script code of the text
	// and false when the text contains no letters to classify.
	DetectScript(text string) (string, bool)
}

// LanguageFollowingValidator checks that a response to a case tagged with a
// minor-language expectation is actually written in the instructed language.
// The comparison is script-based: the expected language tag's likely script
// must match the detected dominant script of the response.
type LanguageFollowingValidator struct {
	detector Detector
}

// NewLanguageFollowingValidator builds the validator. A nil detector selects
// the default Unicode script counter.
func NewLanguageFollowingValidator(d Detector) *LanguageFollowingValidator {
	if d == nil {
		d = ScriptDetector{}
	}
	return &LanguageFollowingValidator{detector: d}
}

func (v *LanguageFollowingValidator) Name() string { return models.CheckLanguageFollowing }

func (v *LanguageFollowingValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{Validator: v.Name()}
	if !in.OK || in.Case.ExpectLanguage == "" {
		return verdict
	}
	content := models.ResponseContent(in.Response)
	if content == "" {
		return verdict
	}

	tag, err := language.Parse(in.Case.ExpectLanguage)
	if err != nil {
		verdict.Err = fmt.Sprintf("unparseable expect_language %q: %v", in.Case.ExpectLanguage, err)
		return verdict
	}
	script, _ := tag.Script()
	expected := script.String()

	detected, ok := v.detector.DetectScript(content)
	if !ok {
		verdict.Err = "response contains no classifiable letters"
		return verdict
	}

	verdict.Triggered = true
	verdict.Passed = scriptMatches(expected, detected)
	verdict.Detail = map[string]any{
		"expected_language": in.Case.ExpectLanguage,
		"expected_script":   expected,
		"detected_script":   detected,
	}
	return verdict
}

// scriptMatches handles composite scripts: Japanese and Korean text mixes
// several Unicode scripts, and Han covers both Chinese variants.
func scriptMatches(expected, detected string) bool {
	if expected == detected {
		return true
	}
	switch expected {
	case "Jpan":
		return detected == "Hani" || detected == "Hira" || detected == "Kana"
	case "Kore":
		return detected == "Hang" || detected == "Hani"
	case "Hans", "Hant":
		return detected == "Hani"
	}
	return false
}

// RussianCharactersValidator is the legacy form of the language check: older
// suites tag cases with "contains_russian_characters_unicode" and carry no
// expect_language field. The response fails when its content contains any
// Cyrillic code point.
type RussianCharactersValidator struct{}

func NewRussianCharactersValidator() *RussianCharactersValidator {
	return &RussianCharactersValidator{}
}

func (v *RussianCharactersValidator) Name() string { return models.CheckLanguageFollowing }

func (v *RussianCharactersValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{Validator: v.Name()}
	if !in.OK {
		return verdict
	}
	content := models.ResponseContent(in.Response)
	if content == "" {
		return verdict
	}

	verdict.Triggered = true
	verdict.Passed = true
	for _, r := range content {
		if unicode.Is(unicode.Cyrillic, r) {
			verdict.Passed = false
			verdict.Detail = map[string]any{"cyrillic_rune": string(r)}
			break
		}
	}
	return verdict
}

// ScriptDetector classifies text by counting letters per Unicode script and
// picking the most frequent one. Ties break on a fixed script order, keeping
// the result deterministic.
type ScriptDetector struct{}

type scriptRange struct {
	code  string
	table *unicode.RangeTable
}

// Ordered; earlier entries win ties.
var knownScripts = []scriptRange{
	{"Latn", unicode.Latin},
	{"Cyrl", unicode.Cyrillic},
	{"Grek", unicode.Greek},
	{"Arab", unicode.Arabic},
	{"Hebr", unicode.Hebrew},
	{"Deva", unicode.Devanagari},
	{"Thai", unicode.Thai},
	{"Hani", unicode.Han},
	{"Hira", unicode.Hiragana},
	{"Kana", unicode.Katakana},
	{"Hang", unicode.Hangul},
}

func (ScriptDetector) DetectScript(text string) (string, bool) {
	counts := make(map[string]int, len(knownScripts))
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for _, s := range knownScripts {
			if unicode.Is(s.table, r) {
				counts[s.code]++
				break
			}
		}
	}

	best := ""
	bestCount := 0
	for _, s := range knownScripts {
		if counts[s.code] > bestCount {
			best = s.code
			bestCount = counts[s.code]
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
