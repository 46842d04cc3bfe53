// Package metrics reduces a verified result set into provider-level
// statistics. Aggregation is a pure, order-independent function of the
// QueryResult set: every count is rebuilt from stored verdicts, so a summary
// can be recomputed after an incremental merge without re-scoring anything.
package metrics

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/evalops/deployverify/internal/models"
)

// Ratio is one guarded metric: the raw counts are always reported, and the
// value is null when the denominator is zero (not applicable, never a
// division by zero).
type Ratio struct {
	Numerator   int      `json:"numerator"`
	Denominator int      `json:"denominator"`
	Value       *float64 `json:"value"`
}

// Applicable reports whether the metric has a defined value.
func (r Ratio) Applicable() bool { return r.Value != nil }

// NewRatio builds a guarded ratio from raw counts.
func NewRatio(num, den int) Ratio {
	r := Ratio{Numerator: num, Denominator: den}
	if den > 0 {
		v := roundTo4(float64(num) / float64(den))
		r.Value = &v
	}
	return r
}

// TriggerSimilarity is the confusion-matrix reduction of the trigger
// comparisons against the reference deployment. The tally has no
// true-negative term, so precision and recall omit it and F1 is undefined
// (null) when TP+FP or TP+FN is zero.
type TriggerSimilarity struct {
	TP        int      `json:"true_positives"`
	FP        int      `json:"false_positives"`
	FN        int      `json:"false_negatives"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1        *float64 `json:"f1"`
}

// Summary is the provider-level report: raw counts plus the six guarded
// ratio metrics. It is never persisted independently of the results that
// produced it.
type Summary struct {
	Model string `json:"model"`

	TotalCases       int `json:"total_cases"`
	Succeeded        int `json:"succeeded"`
	ExhaustedRetries int `json:"exhausted_retries"`
	InternalErrors   int `json:"internal_errors"`
	TotalAttempts    int `json:"total_attempts"`

	QuerySuccessRate             Ratio             `json:"query_success_rate"`
	FinishToolCallsRate          Ratio             `json:"finish_tool_calls_rate"`
	TriggerSimilarity            TriggerSimilarity `json:"tool_calls_trigger_similarity"`
	ToolCallsAccuracy            Ratio             `json:"tool_calls_accuracy"`
	ResponseSuccessRate          Ratio             `json:"response_success_rate"`
	LanguageFollowingSuccessRate Ratio             `json:"language_following_success_rate"`

	FinishReasons  map[string]int `json:"finish_reasons,omitempty"`
	ToolCallCounts map[string]int `json:"tool_call_count_distribution,omitempty"`
}

// Compute reduces a result set into a Summary. The reduction is commutative
// and associative over the input: shuffling the results yields an identical
// summary.
func Compute(model string, results []*models.QueryResult) *Summary {
	s := &Summary{
		Model:          model,
		FinishReasons:  make(map[string]int),
		ToolCallCounts: make(map[string]int),
	}

	var (
		trigger                 TriggerSimilarity
		finishChecked, finished int
		accChecked, accPassed   int
		respChecked, respPassed int
		langChecked, langPassed int
	)

	for _, r := range results {
		s.TotalCases++
		s.TotalAttempts += r.Attempts
		switch r.Status {
		case models.StatusSucceeded:
			s.Succeeded++
		case models.StatusExhaustedRetries:
			s.ExhaustedRetries++
		case models.StatusInternalError:
			s.InternalErrors++
		}
		if r.FinishReason != "" {
			s.FinishReasons[r.FinishReason]++
		}

		if v, ok := r.Verdict(models.CheckToolCalls); ok && v.Err == "" && r.Succeeded() {
			finishChecked++
			if v.Triggered {
				finished++
				accChecked++
				if v.Passed {
					accPassed++
				}
				if n, ok := detailInt(v.Detail, "tool_call_count"); ok {
					s.ToolCallCounts[strconv.Itoa(n)]++
				}
			}
		}

		if v, ok := r.Verdict(models.CheckTriggerSimilarity); ok && v.Applicable() {
			expected, _ := v.Detail[models.DetailExpectedTrigger].(bool)
			actual, _ := v.Detail[models.DetailActualTrigger].(bool)
			switch {
			case expected && actual:
				trigger.TP++
			case !expected && actual:
				trigger.FP++
			case expected && !actual:
				trigger.FN++
			}
		}

		// Response quality: every applicable quality verdict must pass.
		applicable, allPassed := 0, true
		for _, name := range []string{models.CheckReasoningOnly, models.CheckRepeatNGram} {
			if v, ok := r.Verdict(name); ok && v.Applicable() {
				applicable++
				if !v.Passed {
					allPassed = false
				}
			}
		}
		if applicable > 0 {
			respChecked++
			if allPassed {
				respPassed++
			}
		}

		if v, ok := r.Verdict(models.CheckLanguageFollowing); ok && v.Applicable() {
			langChecked++
			if v.Passed {
				langPassed++
			}
		}
	}

	s.QuerySuccessRate = NewRatio(s.Succeeded, s.TotalCases)
	s.FinishToolCallsRate = NewRatio(finished, finishChecked)
	s.TriggerSimilarity = computeTriggerSimilarity(trigger)
	s.ToolCallsAccuracy = NewRatio(accPassed, accChecked)
	s.ResponseSuccessRate = NewRatio(respPassed, respChecked)
	s.LanguageFollowingSuccessRate = NewRatio(langPassed, langChecked)
	return s
}

// computeTriggerSimilarity fills in precision, recall, and F1 with their
// applicability guards.
func computeTriggerSimilarity(t TriggerSimilarity) TriggerSimilarity {
	if t.TP+t.FP > 0 {
		p := roundTo4(float64(t.TP) / float64(t.TP+t.FP))
		t.Precision = &p
	}
	if t.TP+t.FN > 0 {
		r := roundTo4(float64(t.TP) / float64(t.TP+t.FN))
		t.Recall = &r
	}
	if t.Precision != nil && t.Recall != nil && *t.Precision+*t.Recall > 0 {
		f1 := roundTo4(2 * *t.Precision * *t.Recall / (*t.Precision + *t.Recall))
		t.F1 = &f1
	}
	return t
}

func detailInt(detail map[string]any, key string) (int, bool) {
	switch v := detail[key].(type) {
	case int:
		return v, true
	case float64:
		// Verdicts read back from the detailed output decode numbers as
		// float64.
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func roundTo4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
