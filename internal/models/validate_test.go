package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{NewMessage(RoleUser, "Hello!")},
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ChatCompletionRequest)
		field  string
	}{
		{"valid", func(r *ChatCompletionRequest) {}, ""},
		{"missing model", func(r *ChatCompletionRequest) { r.Model = "" }, "model"},
		{"blank model", func(r *ChatCompletionRequest) { r.Model = "   " }, "model"},
		{"no messages", func(r *ChatCompletionRequest) { r.Messages = nil }, "messages"},
		{"blank content", func(r *ChatCompletionRequest) { r.Messages = append(r.Messages, NewMessage(RoleUser, " ")) }, "messages[1].content"},
		{"null content", func(r *ChatCompletionRequest) { r.Messages[0].Content = nil }, "messages[0].content"},
		{"bad role", func(r *ChatCompletionRequest) { r.Messages[0].Role = "tool" }, "messages[0].role"},
		{"temperature low", func(r *ChatCompletionRequest) { r.Temperature = floatPtr(-0.1) }, "temperature"},
		{"temperature high", func(r *ChatCompletionRequest) { r.Temperature = floatPtr(2.01) }, "temperature"},
		{"temperature bound", func(r *ChatCompletionRequest) { r.Temperature = floatPtr(2) }, ""},
		{"top_p high", func(r *ChatCompletionRequest) { r.TopP = floatPtr(1.5) }, "top_p"},
		{"top_p bound", func(r *ChatCompletionRequest) { r.TopP = floatPtr(0) }, ""},
		{"frequency penalty", func(r *ChatCompletionRequest) { r.FrequencyPenalty = floatPtr(-2.5) }, "frequency_penalty"},
		{"presence penalty", func(r *ChatCompletionRequest) { r.PresencePenalty = floatPtr(3) }, "presence_penalty"},
		{"max completion tokens", func(r *ChatCompletionRequest) { r.MaxCompletionTokens = intPtr(0) }, "max_completion_tokens"},
		{"legacy max tokens", func(r *ChatCompletionRequest) { r.MaxTokens = intPtr(-1) }, "max_tokens"},
		{"n", func(r *ChatCompletionRequest) { r.N = intPtr(0) }, "n"},
		{"logprobs", func(r *ChatCompletionRequest) { r.LogProbs = intPtr(0) }, "logprobs"},
		{"top logprobs", func(r *ChatCompletionRequest) { r.TopLogProbs = intPtr(21) }, "top_logprobs"},
		{"too many stops", func(r *ChatCompletionRequest) { r.Stop = StopSequences{"a", "b", "c", "d", "e"} }, "stop"},
		{"empty stop", func(r *ChatCompletionRequest) { r.Stop = StopSequences{"a", ""} }, "stop[1]"},
		{"service tier", func(r *ChatCompletionRequest) { r.ServiceTier = "turbo" }, "service_tier"},
		{"truncation", func(r *ChatCompletionRequest) { r.Truncation = "always" }, "truncation"},
		{"tool choice", func(r *ChatCompletionRequest) { r.ToolChoice = "sometimes" }, "tool_choice"},
		{"blank tool name", func(r *ChatCompletionRequest) {
			r.Tools = []Tool{{Type: ToolTypeFunction, Function: &FunctionTool{Name: " "}}}
		}, "tools[0].function.name"},
		{"missing parameters", func(r *ChatCompletionRequest) {
			r.Tools = []Tool{{Type: ToolTypeFunction, Function: &FunctionTool{Name: "f"}}}
		}, "tools[0].function.parameters"},
		{"null parameters", func(r *ChatCompletionRequest) {
			r.Tools = []Tool{{Type: ToolTypeFunction, Function: &FunctionTool{Name: "f", Parameters: json.RawMessage(`null`)}}}
		}, "tools[0].function.parameters"},
		{"non-object parameters", func(r *ChatCompletionRequest) {
			r.Tools = []Tool{{Type: ToolTypeFunction, Function: &FunctionTool{Name: "f", Parameters: json.RawMessage(`[1]`)}}}
		}, "tools[0].function.parameters"},
		{"custom tool", func(r *ChatCompletionRequest) { r.Tools = []Tool{{Type: ToolTypeCustom}} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := req.Validate(ValidationOptions{})
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Contains(t, validationErr.Error(), tt.field)
		})
	}
}

func TestValidate_AllowEmptyContent(t *testing.T) {
	req := validRequest()
	req.Messages = append(req.Messages, ChatMessage{Role: RoleAssistant})

	assert.Error(t, req.Validate(ValidationOptions{}))
	assert.NoError(t, req.Validate(ValidationOptions{AllowEmptyContent: true}))
}
