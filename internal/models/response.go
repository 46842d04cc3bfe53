package models

// Helpers for picking apart raw chat-completion payloads. Responses are kept
// as untyped maps so provider-specific extensions survive a round trip to the
// detailed output; these accessors absorb the missing-field cases.

// ResponseMessage returns the first choice's message object, or nil.
func ResponseMessage(resp map[string]any) map[string]any {
	if resp == nil {
		return nil
	}
	choices, ok := resp["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	msg, _ := choice["message"].(map[string]any)
	return msg
}

// ResponseFinishReason returns the first choice's finish_reason, or "".
func ResponseFinishReason(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	choices, ok := resp["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	reason, _ := choice["finish_reason"].(string)
	return reason
}

// ResponseContent returns the assistant message content, or "".
func ResponseContent(resp map[string]any) string {
	msg := ResponseMessage(resp)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return content
}

// ResponseReasoning returns the reasoning text some providers attach to the
// assistant message, or "".
func ResponseReasoning(resp map[string]any) string {
	msg := ResponseMessage(resp)
	if msg == nil {
		return ""
	}
	if s, ok := msg["reasoning"].(string); ok {
		return s
	}
	s, _ := msg["reasoning_content"].(string)
	return s
}

// ResponseToolCalls returns the assistant message's tool calls, if any.
func ResponseToolCalls(resp map[string]any) []map[string]any {
	msg := ResponseMessage(resp)
	if msg == nil {
		return nil
	}
	raw, ok := msg["tool_calls"].([]any)
	if !ok {
		return nil
	}
	calls := make([]map[string]any, 0, len(raw))
	for _, tc := range raw {
		if m, ok := tc.(map[string]any); ok {
			calls = append(calls, m)
		}
	}
	return calls
}

// ResponseProvider returns the provider identifier echoed by some gateways.
func ResponseProvider(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	p, _ := resp["provider"].(string)
	return p
}
