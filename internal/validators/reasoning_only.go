package validators

import (
	"strings"

	"github.com/evalops/deployverify/internal/models"
)

// ReasoningOnlyValidator flags responses that degenerated into chain-of-
// thought text with no actionable output: reasoning present, content empty,
// no tool calls. This is a deployment defect, so the check applies to every
// scorable response.
type ReasoningOnlyValidator struct{}

func NewReasoningOnlyValidator() *ReasoningOnlyValidator { return &ReasoningOnlyValidator{} }

func (v *ReasoningOnlyValidator) Name() string { return models.CheckReasoningOnly }

func (v *ReasoningOnlyValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{Validator: v.Name()}
	if !in.OK || models.ResponseMessage(in.Response) == nil {
		return verdict
	}
	verdict.Triggered = true

	reasoning := models.ResponseReasoning(in.Response)
	content := strings.TrimSpace(models.ResponseContent(in.Response))
	hasToolCalls := len(models.ResponseToolCalls(in.Response)) > 0

	reasoningOnly := reasoning != "" && content == "" && !hasToolCalls
	verdict.Passed = !reasoningOnly
	verdict.Detail = map[string]any{
		"has_content":    content != "",
		"has_tool_calls": hasToolCalls,
		"has_reasoning":  reasoning != "",
	}
	return verdict
}
