package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	CompletionIDPrefix        = "chatcmpl-"
)

// Role discriminates the ChatMessage union.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the accepted message roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleDeveloper, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ServiceTier is the requested processing tier. Accepted and validated, never forwarded.
type ServiceTier string

const (
	ServiceTierAuto     ServiceTier = "auto"
	ServiceTierDefault  ServiceTier = "default"
	ServiceTierFlex     ServiceTier = "flex"
	ServiceTierPriority ServiceTier = "priority"
)

func (t ServiceTier) Valid() bool {
	switch t {
	case ServiceTierAuto, ServiceTierDefault, ServiceTierFlex, ServiceTierPriority:
		return true
	}
	return false
}

// Truncation is the context truncation strategy.
type Truncation string

const (
	TruncationAuto     Truncation = "auto"
	TruncationDisabled Truncation = "disabled"
)

func (t Truncation) Valid() bool {
	return t == TruncationAuto || t == TruncationDisabled
}

// ToolChoice controls whether the model may call tools. Only the string form is supported.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

func (c ToolChoice) Valid() bool {
	switch c {
	case ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired:
		return true
	}
	return false
}

func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	v := gjson.ParseBytes(data)
	switch v.Type {
	case gjson.Null:
		*c = ""
		return nil
	case gjson.String:
		choice := ToolChoice(v.Str)
		if !choice.Valid() {
			return &ValidationError{Field: "tool_choice", Message: fmt.Sprintf("unsupported value %q", v.Str)}
		}
		*c = choice
		return nil
	case gjson.JSON:
		if v.IsObject() {
			return &ValidationError{Field: "tool_choice", Message: "named tool choice is not supported"}
		}
	}
	return &ValidationError{Field: "tool_choice", Message: "must be one of none, auto, required"}
}

// ChatMessage is one entry of the conversation. Role is the union discriminant;
// Content is nil when the wire value was null or absent.
type ChatMessage struct {
	Role    Role    `json:"role"`
	Content *string `json:"content"`
	Name    string  `json:"name,omitempty"`
}

// NewMessage builds a message with text content.
func NewMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: &content}
}

// Text returns the message content, or "" when it is null.
func (m ChatMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasContent reports whether the message carries non-blank text.
func (m ChatMessage) HasContent() bool {
	return strings.TrimSpace(m.Text()) != ""
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return &ValidationError{Field: "message", Message: "must be an object"}
	}

	role := msg.Get("role")
	if role.Type != gjson.String || strings.TrimSpace(role.Str) == "" {
		return &ValidationError{Field: "role", Message: "is required"}
	}
	if !Role(role.Str).Valid() {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("unsupported role %q", role.Str)}
	}

	content, err := decodeContent(msg.Get("content"))
	if err != nil {
		return err
	}

	*m = ChatMessage{
		Role:    Role(role.Str),
		Content: content,
		Name:    msg.Get("name").String(),
	}
	return nil
}

// decodeContent accepts a string, null, or an array of text parts.
func decodeContent(v gjson.Result) (*string, error) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil, nil
	case v.Type == gjson.String:
		s := v.Str
		return &s, nil
	case v.IsArray():
		var sb strings.Builder
		for i, part := range v.Array() {
			partType := part.Get("type").String()
			if partType != "text" {
				return nil, &ValidationError{
					Field:   fmt.Sprintf("content[%d].type", i),
					Message: fmt.Sprintf("unsupported content part type %q", partType),
				}
			}
			sb.WriteString(part.Get("text").String())
		}
		s := sb.String()
		return &s, nil
	}
	return nil, &ValidationError{Field: "content", Message: "must be a string or an array of text parts"}
}

// ToolType discriminates the Tool union.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
	// ToolTypeCustom is a known tool kind with no backend mapping.
	ToolTypeCustom ToolType = "custom"
)

// Tool is a tool offered to the model. Function is set only for ToolTypeFunction.
type Tool struct {
	Type     ToolType      `json:"type"`
	Function *FunctionTool `json:"function,omitempty"`
}

// FunctionTool describes a callable function. Parameters is an opaque JSON schema.
type FunctionTool struct {
	Name        string          `json:"name"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict"`
	Description string          `json:"description,omitempty"`
}

func (t *Tool) UnmarshalJSON(data []byte) error {
	tool := gjson.ParseBytes(data)
	if !tool.IsObject() {
		return &ValidationError{Field: "tool", Message: "must be an object"}
	}

	switch kind := ToolType(tool.Get("type").String()); kind {
	case ToolTypeFunction:
		// Both the nested {"function": {...}} and the flat form are accepted.
		body := tool
		if fn := tool.Get("function"); fn.IsObject() {
			body = fn
		}
		fn := &FunctionTool{
			Name:        body.Get("name").String(),
			Strict:      true,
			Description: body.Get("description").String(),
		}
		if strict := body.Get("strict"); strict.Exists() && strict.Type != gjson.Null {
			fn.Strict = strict.Bool()
		}
		if params := body.Get("parameters"); params.Exists() && params.Type != gjson.Null {
			fn.Parameters = json.RawMessage(params.Raw)
		}
		*t = Tool{Type: kind, Function: fn}
		return nil
	case ToolTypeCustom:
		*t = Tool{Type: kind}
		return nil
	case "":
		return &ValidationError{Field: "type", Message: "is required"}
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unsupported tool type %q", kind)}
	}
}

// StopSequences decodes either a single string or an array of strings.
type StopSequences []string

func (s *StopSequences) UnmarshalJSON(data []byte) error {
	v := gjson.ParseBytes(data)
	switch {
	case v.Type == gjson.Null:
		*s = nil
	case v.Type == gjson.String:
		*s = StopSequences{v.Str}
	case v.IsArray():
		out := make(StopSequences, 0, len(v.Array()))
		for _, item := range v.Array() {
			if item.Type != gjson.String {
				return &ValidationError{Field: "stop", Message: "must contain only strings"}
			}
			out = append(out, item.Str)
		}
		*s = out
	default:
		return &ValidationError{Field: "stop", Message: "must be a string or an array of strings"}
	}
	return nil
}

// StreamOptions tunes streamed responses.
type StreamOptions struct {
	IncludeUsage       bool  `json:"include_usage,omitempty"`
	IncludeObfuscation *bool `json:"include_obfuscation,omitempty"`
}

// ChatCompletionRequest is the client-facing request body.
type ChatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []ChatMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	FrequencyPenalty    *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64       `json:"presence_penalty,omitempty"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`
	N                   *int           `json:"n,omitempty"`
	LogProbs            *int           `json:"logprobs,omitempty"`
	TopLogProbs         *int           `json:"top_logprobs,omitempty"`
	Stop                StopSequences  `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	ServiceTier         ServiceTier    `json:"service_tier,omitempty"`
	Truncation          Truncation     `json:"truncation,omitempty"`
	ToolChoice          ToolChoice     `json:"tool_choice,omitempty"`
	Tools               []Tool         `json:"tools,omitempty"`
	Seed                *int64         `json:"seed,omitempty"`
	LogitBias           map[string]int `json:"logit_bias,omitempty"`
	User                string         `json:"user,omitempty"`
}

func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias ChatCompletionRequest
	aux := struct {
		*alias
		Messages []json.RawMessage `json:"messages"`
		Tools    []json.RawMessage `json:"tools"`
		LogProbs json.RawMessage   `json:"logprobs"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return asValidationError("", err)
	}

	r.Messages = nil
	if aux.Messages != nil {
		r.Messages = make([]ChatMessage, 0, len(aux.Messages))
	}
	for i, raw := range aux.Messages {
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return asValidationError(fmt.Sprintf("messages[%d]", i), err)
		}
		r.Messages = append(r.Messages, msg)
	}

	r.Tools = nil
	for i, raw := range aux.Tools {
		var tool Tool
		if err := json.Unmarshal(raw, &tool); err != nil {
			return asValidationError(fmt.Sprintf("tools[%d]", i), err)
		}
		r.Tools = append(r.Tools, tool)
	}

	return r.decodeLogProbs(aux.LogProbs)
}

// decodeLogProbs accepts the integer top-k form and the boolean form paired with top_logprobs.
func (r *ChatCompletionRequest) decodeLogProbs(raw json.RawMessage) error {
	r.LogProbs = nil
	if len(raw) == 0 {
		return nil
	}
	v := gjson.ParseBytes(raw)
	switch v.Type {
	case gjson.Null, gjson.False:
		return nil
	case gjson.True:
		k := 1
		if r.TopLogProbs != nil && *r.TopLogProbs > 1 {
			k = *r.TopLogProbs
		}
		r.LogProbs = &k
		return nil
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return &ValidationError{Field: "logprobs", Message: "must be an integer"}
		}
		k := int(v.Int())
		r.LogProbs = &k
		return nil
	}
	return &ValidationError{Field: "logprobs", Message: "must be an integer or a boolean"}
}

// ApplyDefaults fills the documented defaults for omitted optional fields.
func (r *ChatCompletionRequest) ApplyDefaults() {
	if r.TopP == nil {
		topP := 1.0
		r.TopP = &topP
	}
	if r.N == nil {
		n := 1
		r.N = &n
	}
	if r.ServiceTier == "" {
		r.ServiceTier = ServiceTierAuto
	}
	if r.Truncation == "" {
		r.Truncation = TruncationDisabled
	}
}

// TokenLimit returns max_completion_tokens, falling back to the legacy max_tokens.
func (r *ChatCompletionRequest) TokenLimit() *int {
	if r.MaxCompletionTokens != nil {
		return r.MaxCompletionTokens
	}
	return r.MaxTokens
}

// IncludeUsage reports whether a usage chunk was requested for a stream.
func (r *ChatCompletionRequest) IncludeUsage() bool {
	return r.StreamOptions != nil && r.StreamOptions.IncludeUsage
}

// FinishReason is why a choice stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonFunctionCall  FinishReason = "function_call"
)

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason FinishReason     `json:"finish_reason"`
	LogProbs     *ChoiceLogProbs  `json:"logprobs"`
}

type AssistantMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Refusal   *string    `json:"refusal,omitempty"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     ToolType         `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ChoiceLogProbs struct {
	Content []TokenLogProb `json:"content"`
}

type TokenLogProb struct {
	Token       string       `json:"token"`
	LogProb     float64      `json:"logprob"`
	Bytes       []int        `json:"bytes"`
	TopLogProbs []TopLogProb `json:"top_logprobs"`
}

type TopLogProb struct {
	Token   string  `json:"token"`
	LogProb float64 `json:"logprob"`
	Bytes   []int   `json:"bytes"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streamed event.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int           `json:"index"`
	Delta        Delta         `json:"delta"`
	FinishReason *FinishReason `json:"finish_reason"`
}

// Delta is the partial assistant message carried by a chunk.
type Delta struct {
	Role    Role    `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ModelList is the GET /models response.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// NewModelList lists names in the given order.
func NewModelList(names []string, ownedBy string) ModelList {
	list := ModelList{Object: "list", Data: make([]ModelCard, 0, len(names))}
	for _, name := range names {
		list.Data = append(list.Data, ModelCard{ID: name, Object: "model", OwnedBy: ownedBy})
	}
	return list
}
