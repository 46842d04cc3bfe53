package validators

import "github.com/evalops/deployverify/internal/models"

// TriggerSimilarityValidator compares the provider's tool-call trigger
// decision with the reference deployment's label for the same case. It does
// not judge a response in isolation; its verdict records the expected/actual
// pair so the aggregator can rebuild the confusion matrix (TP/FP/FN, no TN)
// from stored results without re-scoring.
type TriggerSimilarityValidator struct{}

func NewTriggerSimilarityValidator() *TriggerSimilarityValidator {
	return &TriggerSimilarityValidator{}
}

func (v *TriggerSimilarityValidator) Name() string { return models.CheckTriggerSimilarity }

func (v *TriggerSimilarityValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{Validator: v.Name()}
	if !in.OK || in.Case.ExpectToolCall == nil {
		return verdict
	}

	expected := *in.Case.ExpectToolCall
	actual := len(models.ResponseToolCalls(in.Response)) > 0

	verdict.Triggered = true
	verdict.Passed = expected == actual
	verdict.Detail = map[string]any{
		models.DetailExpectedTrigger: expected,
		models.DetailActualTrigger:   actual,
	}
	return verdict
}
