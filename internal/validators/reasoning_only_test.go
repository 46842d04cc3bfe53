package validators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalops/deployverify/internal/models"
)

func assistantResponse(fields map[string]any) map[string]any {
	msg := map[string]any{"role": "assistant"}
	for k, v := range fields {
		msg[k] = v
	}
	return map[string]any{
		"choices": []any{
			map[string]any{"finish_reason": "stop", "message": msg},
		},
	}
}

func TestReasoningOnlyValidator(t *testing.T) {
	v := NewReasoningOnlyValidator()
	tc := &models.TestCase{ID: "case-1"}

	t.Run("reasoning only fails", func(t *testing.T) {
		verdict := v.Score(Input{
			Case: tc,
			OK:   true,
			Response: assistantResponse(map[string]any{
				"reasoning": "thinking about it...",
				"content":   "",
			}),
		})
		require.True(t, verdict.Triggered)
		require.False(t, verdict.Passed)
	})

	t.Run("reasoning plus content passes", func(t *testing.T) {
		verdict := v.Score(Input{
			Case: tc,
			OK:   true,
			Response: assistantResponse(map[string]any{
				"reasoning": "thinking...",
				"content":   "here is the answer",
			}),
		})
		require.True(t, verdict.Triggered)
		require.True(t, verdict.Passed)
	})

	t.Run("reasoning plus tool call passes", func(t *testing.T) {
		verdict := v.Score(Input{
			Case: tc,
			OK:   true,
			Response: assistantResponse(map[string]any{
				"reasoning": "thinking...",
				"tool_calls": []any{
					map[string]any{"function": map[string]any{"name": "search", "arguments": "{}"}},
				},
			}),
		})
		require.True(t, verdict.Triggered)
		require.True(t, verdict.Passed)
	})

	t.Run("plain content passes", func(t *testing.T) {
		verdict := v.Score(Input{
			Case:     tc,
			OK:       true,
			Response: assistantResponse(map[string]any{"content": "hello"}),
		})
		require.True(t, verdict.Triggered)
		require.True(t, verdict.Passed)
	})

	t.Run("whitespace content counts as empty", func(t *testing.T) {
		verdict := v.Score(Input{
			Case: tc,
			OK:   true,
			Response: assistantResponse(map[string]any{
				"reasoning": "hmm",
				"content":   "   \n",
			}),
		})
		require.True(t, verdict.Triggered)
		require.False(t, verdict.Passed)
	})

	t.Run("reasoning_content alias is recognized", func(t *testing.T) {
		verdict := v.Score(Input{
			Case: tc,
			OK:   true,
			Response: assistantResponse(map[string]any{
				"reasoning_content": "thinking",
			}),
		})
		require.True(t, verdict.Triggered)
		require.False(t, verdict.Passed)
	})

	t.Run("failed request is not applicable", func(t *testing.T) {
		verdict := v.Score(Input{Case: tc, OK: false})
		require.False(t, verdict.Triggered)
	})
}
