// Package validators scores raw provider responses against each test case's
// expected behavior. Validators are stateless, independent, and additive:
// the dispatcher runs every applicable validator and stores every verdict.
package validators

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"

	"github.com/evalops/deployverify/internal/models"
)

// Input is everything a validator may look at for one case.
type Input struct {
	Case *models.TestCase
	// OK is false when the case never reached a scorable response.
	OK       bool
	Response map[string]any
}

// Validator scores one response against one test case.
type Validator interface {
	// Name identifies the validator in verdicts and summaries.
	Name() string
	// Score produces a verdict. Internal failures are reported via
	// Verdict.Err, never by panicking or aborting the run.
	Score(in Input) models.Verdict
}

// Registry maps check_type tags to validator instances and carries the
// always-run set. It is constructed explicitly and passed in, so tests can
// substitute fakes without touching process-wide state.
type Registry struct {
	byTag  map[string]Validator
	always []Validator
	log    logrus.FieldLogger
}

// NewRegistry returns an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		byTag: make(map[string]Validator),
		log:   log,
	}
}

// DefaultRegistry returns the standard validator set: tool-call schema
// checking, language following, and repetition detection selected by tag,
// with reasoning-only and trigger-similarity always applied.
func DefaultRegistry(log logrus.FieldLogger) *Registry {
	r := NewRegistry(log)
	r.Register(models.CheckToolCalls, NewToolCallValidator())
	r.Register(models.CheckLanguageFollowing, NewLanguageFollowingValidator(nil))
	// Legacy tag: these suites carry no expect_language field, so the check
	// is the fixed Cyrillic scan rather than tag-based script matching.
	r.Register("contains_russian_characters_unicode", NewRussianCharactersValidator())
	r.Register(models.CheckRepeatNGram, NewRepeatNGramValidator(0, 0))
	r.Always(NewReasoningOnlyValidator())
	r.Always(NewTriggerSimilarityValidator())
	return r
}

// Register binds a tag to a validator, replacing any previous binding.
func (r *Registry) Register(tag string, v Validator) {
	r.byTag[tag] = v
}

// Always adds a validator that runs for every case regardless of tags.
func (r *Registry) Always(v Validator) {
	r.always = append(r.always, v)
}

// For returns the validators applicable to a case: the always-run set plus
// one per declared check_type tag. Unknown tags are logged and skipped.
// Duplicates (same validator name reachable via several tags) run once.
func (r *Registry) For(tc *models.TestCase) []Validator {
	seen := make(map[string]bool, len(r.always)+len(tc.CheckTypes))
	out := make([]Validator, 0, len(r.always)+len(tc.CheckTypes))
	for _, v := range r.always {
		if !seen[v.Name()] {
			seen[v.Name()] = true
			out = append(out, v)
		}
	}
	for _, tag := range tc.CheckTypes {
		v, ok := r.byTag[tag]
		if !ok {
			if r.log != nil {
				r.log.WithField("check_type", tag).Warn("unknown check_type, skipping")
			}
			continue
		}
		if !seen[v.Name()] {
			seen[v.Name()] = true
			out = append(out, v)
		}
	}
	return out
}

// Create builds a validator from a tag and a parameter map, as declared in a
// run spec file. Tags without parameters accept an empty map.
func Create(tag string, params map[string]any) (Validator, error) {
	switch tag {
	case models.CheckToolCalls:
		return NewToolCallValidator(), nil
	case models.CheckReasoningOnly:
		return NewReasoningOnlyValidator(), nil
	case models.CheckTriggerSimilarity:
		return NewTriggerSimilarityValidator(), nil
	case models.CheckLanguageFollowing:
		return NewLanguageFollowingValidator(nil), nil
	case "contains_russian_characters_unicode":
		return NewRussianCharactersValidator(), nil
	case models.CheckRepeatNGram:
		var p struct {
			N           int `mapstructure:"n"`
			RepeatCount int `mapstructure:"repeat_count"`
		}
		if err := mapstructure.Decode(params, &p); err != nil {
			return nil, fmt.Errorf("validators: %s params: %w", tag, err)
		}
		return NewRepeatNGramValidator(p.N, p.RepeatCount), nil
	default:
		return nil, fmt.Errorf("validators: %q is not a known check_type", tag)
	}
}
