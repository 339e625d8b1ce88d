package models

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	maxStopSequences = 4
	maxTopLogProbs   = 20
)

// ValidationOptions relaxes individual checks of Validate.
type ValidationOptions struct {
	// AllowEmptyContent accepts null or blank message content so that the
	// translator can drop those messages instead of rejecting the request.
	AllowEmptyContent bool
}

// Validate checks the request invariants and returns the first violation as a *ValidationError.
func (r *ChatCompletionRequest) Validate(opts ValidationOptions) error {
	if strings.TrimSpace(r.Model) == "" {
		return &ValidationError{Field: "model", Message: "is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "must contain at least one message"}
	}
	for i, msg := range r.Messages {
		if !msg.Role.Valid() {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: fmt.Sprintf("unsupported role %q", msg.Role)}
		}
		if !opts.AllowEmptyContent && !msg.HasContent() {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Message: "must not be empty"}
		}
	}

	if err := checkRange("temperature", r.Temperature, 0, 2); err != nil {
		return err
	}
	if err := checkRange("top_p", r.TopP, 0, 1); err != nil {
		return err
	}
	if err := checkRange("frequency_penalty", r.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	if err := checkRange("presence_penalty", r.PresencePenalty, -2, 2); err != nil {
		return err
	}
	if err := checkPositive("max_completion_tokens", r.MaxCompletionTokens); err != nil {
		return err
	}
	if err := checkPositive("max_tokens", r.MaxTokens); err != nil {
		return err
	}
	if err := checkPositive("n", r.N); err != nil {
		return err
	}
	if err := checkPositive("logprobs", r.LogProbs); err != nil {
		return err
	}
	if r.TopLogProbs != nil && (*r.TopLogProbs < 0 || *r.TopLogProbs > maxTopLogProbs) {
		return &ValidationError{Field: "top_logprobs", Message: fmt.Sprintf("must be between 0 and %d", maxTopLogProbs)}
	}

	if len(r.Stop) > maxStopSequences {
		return &ValidationError{Field: "stop", Message: fmt.Sprintf("must contain at most %d sequences", maxStopSequences)}
	}
	for i, s := range r.Stop {
		if s == "" {
			return &ValidationError{Field: fmt.Sprintf("stop[%d]", i), Message: "must not be empty"}
		}
	}

	if r.ServiceTier != "" && !r.ServiceTier.Valid() {
		return &ValidationError{Field: "service_tier", Message: fmt.Sprintf("unsupported value %q", r.ServiceTier)}
	}
	if r.Truncation != "" && !r.Truncation.Valid() {
		return &ValidationError{Field: "truncation", Message: fmt.Sprintf("unsupported value %q", r.Truncation)}
	}
	if r.ToolChoice != "" && !r.ToolChoice.Valid() {
		return &ValidationError{Field: "tool_choice", Message: fmt.Sprintf("unsupported value %q", r.ToolChoice)}
	}

	for i, tool := range r.Tools {
		if err := tool.validate(); err != nil {
			return asValidationError(fmt.Sprintf("tools[%d]", i), err)
		}
	}
	return nil
}

func (t Tool) validate() error {
	switch t.Type {
	case ToolTypeFunction:
		if t.Function == nil || strings.TrimSpace(t.Function.Name) == "" {
			return &ValidationError{Field: "function.name", Message: "is required"}
		}
		params := gjson.ParseBytes(t.Function.Parameters)
		if !params.Exists() || params.Type == gjson.Null {
			return &ValidationError{Field: "function.parameters", Message: "is required"}
		}
		if !params.IsObject() {
			return &ValidationError{Field: "function.parameters", Message: "must be a JSON object"}
		}
		return nil
	case ToolTypeCustom:
		return nil
	}
	return &ValidationError{Field: "type", Message: fmt.Sprintf("unsupported tool type %q", t.Type)}
}

func checkRange(field string, v *float64, min, max float64) error {
	if v == nil {
		return nil
	}
	if *v < min || *v > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %g and %g", min, max)}
	}
	return nil
}

func checkPositive(field string, v *int) error {
	if v != nil && *v < 1 {
		return &ValidationError{Field: field, Message: "must be at least 1"}
	}
	return nil
}
