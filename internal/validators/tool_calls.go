package validators

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/evalops/deployverify/internal/models"
)

// ToolCallValidator checks that emitted tool calls name a declared tool and
// carry arguments satisfying that tool's parameter schema. Triggered means
// the model emitted at least one tool call; passed is only meaningful among
// triggered cases.
type ToolCallValidator struct{}

func NewToolCallValidator() *ToolCallValidator { return &ToolCallValidator{} }

func (v *ToolCallValidator) Name() string { return models.CheckToolCalls }

func (v *ToolCallValidator) Score(in Input) models.Verdict {
	verdict := models.Verdict{Validator: v.Name()}
	if !in.OK {
		return verdict
	}

	calls := models.ResponseToolCalls(in.Response)
	finishReason := models.ResponseFinishReason(in.Response)
	verdict.Detail = map[string]any{
		"finish_reason":   finishReason,
		"tool_call_count": len(calls),
	}
	if len(calls) == 0 {
		return verdict
	}
	verdict.Triggered = true

	tools := declaredTools(in.Case.Prepared)
	var failures []string
	for i, call := range calls {
		if err := validateToolCall(call, tools); err != nil {
			failures = append(failures, fmt.Sprintf("tool call %d: %v", i, err))
		}
	}
	if len(failures) > 0 {
		verdict.Detail["failures"] = failures
		return verdict
	}
	verdict.Passed = true
	return verdict
}

// declaredTools maps tool name to its parameters schema from the request.
func declaredTools(request map[string]any) map[string]any {
	out := make(map[string]any)
	tools, ok := request["tools"].([]any)
	if !ok {
		return out
	}
	for _, t := range tools {
		tool, ok := t.(map[string]any)
		if !ok {
			continue
		}
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		out[name] = fn["parameters"]
	}
	return out
}

// validateToolCall checks a single emitted call against the declared tools.
// Malformed arguments are a validation failure, never retried.
func validateToolCall(call map[string]any, tools map[string]any) error {
	fn, ok := call["function"].(map[string]any)
	if !ok {
		return fmt.Errorf("missing function object")
	}
	name, _ := fn["name"].(string)
	schema, declared := tools[name]
	if !declared {
		return fmt.Errorf("function %q is not a declared tool", name)
	}

	var args any
	switch raw := fn["arguments"].(type) {
	case string:
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Errorf("arguments are not valid JSON: %w", err)
		}
	case nil:
		args = map[string]any{}
	default:
		args = raw
	}

	if schema == nil {
		// Tool declared without a parameter schema; any arguments pass.
		return nil
	}
	return validateAgainstSchema(args, schema)
}

// validateAgainstSchema compiles the tool's parameter schema and validates
// the deserialized arguments against it.
func validateAgainstSchema(args any, schema any) error {
	// Round-trip the schema through JSON so compiler input uses the plain
	// any representation regardless of how the suite was decoded.
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("serializing schema: %w", err)
	}
	var schemaValue any
	if err := json.Unmarshal(data, &schemaValue); err != nil {
		return fmt.Errorf("parsing schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaValue); err != nil {
		return fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	if err := compiled.Validate(args); err != nil {
		return fmt.Errorf("arguments do not satisfy schema: %v", err)
	}
	return nil
}
