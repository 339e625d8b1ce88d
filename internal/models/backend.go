package models

import (
	"encoding/json"
	"strings"
)

// APIFormatGeneric marks a backend request in the generic chat format.
const APIFormatGeneric = "GENERIC"

// BackendRole is the role of a backend message. There is no developer role.
type BackendRole string

const (
	BackendRoleSystem    BackendRole = "SYSTEM"
	BackendRoleUser      BackendRole = "USER"
	BackendRoleAssistant BackendRole = "ASSISTANT"
)

type BackendContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type BackendMessage struct {
	Role    BackendRole      `json:"role"`
	Content []BackendContent `json:"content"`
}

// NewBackendMessage builds a message with a single text part.
func NewBackendMessage(role BackendRole, text string) BackendMessage {
	return BackendMessage{
		Role:    role,
		Content: []BackendContent{{Type: "TEXT", Text: text}},
	}
}

// Text concatenates the text parts of the message.
func (m BackendMessage) Text() string {
	var sb strings.Builder
	for _, c := range m.Content {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

type BackendToolChoiceType string

const (
	BackendToolChoiceNone     BackendToolChoiceType = "NONE"
	BackendToolChoiceAuto     BackendToolChoiceType = "AUTO"
	BackendToolChoiceRequired BackendToolChoiceType = "REQUIRED"
)

type BackendToolChoice struct {
	Type BackendToolChoiceType `json:"type"`
}

type BackendToolDefinition struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Description string          `json:"description,omitempty"`
}

// BackendChatRequest is the request sent to the backend. Seed, IsEcho, TopK and
// LogitBias exist in the backend schema but are never populated from client input.
type BackendChatRequest struct {
	APIFormat        string                  `json:"apiFormat"`
	ModelID          string                  `json:"modelId"`
	Messages         []BackendMessage        `json:"messages"`
	MaxTokens        *int                    `json:"maxTokens,omitempty"`
	IsStream         bool                    `json:"isStream"`
	NumGenerations   *int                    `json:"numGenerations,omitempty"`
	LogProbs         *int                    `json:"logProbs,omitempty"`
	Temperature      *float64                `json:"temperature,omitempty"`
	TopP             *float64                `json:"topP,omitempty"`
	FrequencyPenalty *float64                `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64                `json:"presencePenalty,omitempty"`
	Stop             []string                `json:"stop,omitempty"`
	ToolChoice       *BackendToolChoice      `json:"toolChoice,omitempty"`
	Tools            []BackendToolDefinition `json:"tools,omitempty"`
	Seed             *int64                  `json:"seed,omitempty"`
	IsEcho           *bool                   `json:"isEcho,omitempty"`
	TopK             *int                    `json:"topK,omitempty"`
	LogitBias        map[string]int          `json:"logitBias,omitempty"`

	// ClientModel is the name echoed back to the caller.
	ClientModel string `json:"-"`
}

// BackendFinishReason is the backend's finish condition.
type BackendFinishReason string

const (
	BackendFinishComplete        BackendFinishReason = "COMPLETE"
	BackendFinishMaxTokens       BackendFinishReason = "MAX_TOKENS"
	BackendFinishContentFiltered BackendFinishReason = "CONTENT_FILTERED"
	BackendFinishToolCalls       BackendFinishReason = "TOOL_CALLS"
	BackendFinishFunctionCall    BackendFinishReason = "FUNCTION_CALL"
)

// ToClient maps the backend finish condition to the client enum. OpenAI spellings
// pass through; empty or unknown values map to stop.
func (r BackendFinishReason) ToClient() FinishReason {
	switch strings.ToUpper(string(r)) {
	case string(BackendFinishMaxTokens), "LENGTH":
		return FinishReasonLength
	case string(BackendFinishContentFiltered), "CONTENT_FILTER":
		return FinishReasonContentFilter
	case string(BackendFinishToolCalls):
		return FinishReasonToolCalls
	case string(BackendFinishFunctionCall):
		return FinishReasonFunctionCall
	default:
		return FinishReasonStop
	}
}

type BackendToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type BackendLogProbs struct {
	Tokens        []string             `json:"tokens"`
	TokenLogProbs []float64            `json:"tokenLogProbs"`
	TopLogProbs   []map[string]float64 `json:"topLogProbs,omitempty"`
}

type BackendCandidate struct {
	Index        int                 `json:"index"`
	Text         string              `json:"text"`
	FinishReason BackendFinishReason `json:"finishReason"`
	ToolCalls    []BackendToolCall   `json:"toolCalls,omitempty"`
	Refusal      string              `json:"refusal,omitempty"`
	LogProbs     *BackendLogProbs    `json:"logProbs,omitempty"`
}

type BackendUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// BackendResult is a complete backend completion.
type BackendResult struct {
	ModelID    string             `json:"modelId"`
	Candidates []BackendCandidate `json:"candidates"`
	Usage      *BackendUsage      `json:"usage,omitempty"`
}

// BackendEvent is one unit of a backend stream. A non-empty FinishReason closes
// the candidate at Index. Err terminates the stream.
type BackendEvent struct {
	Index        int                 `json:"index"`
	Text         string              `json:"text,omitempty"`
	FinishReason BackendFinishReason `json:"finishReason,omitempty"`
	Usage        *BackendUsage       `json:"usage,omitempty"`
	Err          error               `json:"-"`
}
