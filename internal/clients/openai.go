package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sleepstars/chatgate/internal/models"
)

// OpenAIClient implements Backend for OpenAI-compatible upstreams.
type OpenAIClient struct {
	config BackendConfig
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible backend client
func NewOpenAIClient(config BackendConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.APIBase, "/")
	if !strings.HasPrefix(clientConfig.BaseURL, "http://") && !strings.HasPrefix(clientConfig.BaseURL, "https://") {
		clientConfig.BaseURL = "http://" + clientConfig.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &OpenAIClient{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *OpenAIClient) Invoke(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error) {
	openaiReq, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	// Call OpenAI API
	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}

	result := &models.BackendResult{
		ModelID:    resp.Model,
		Candidates: make([]models.BackendCandidate, 0, len(resp.Choices)),
		Usage: &models.BackendUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, choice := range resp.Choices {
		cand := models.BackendCandidate{
			Index:        choice.Index,
			Text:         choice.Message.Content,
			FinishReason: models.BackendFinishReason(choice.FinishReason),
			Refusal:      choice.Message.Refusal,
			LogProbs:     convertOpenAILogProbs(choice.LogProbs),
		}
		for _, call := range choice.Message.ToolCalls {
			cand.ToolCalls = append(cand.ToolCalls, models.BackendToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		result.Candidates = append(result.Candidates, cand)
	}
	return result, nil
}

func (c *OpenAIClient) InvokeStream(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error) {
	openaiReq, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}

	// Create stream
	stream, err := c.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}

	resultChan := make(chan *models.BackendEvent)

	// Start goroutine to read streaming response
	go func() {
		defer close(resultChan)
		defer stream.Close()

		send := func(ev *models.BackendEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case resultChan <- ev:
				return true
			}
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(&models.BackendEvent{Err: fmt.Errorf("receive stream: %w", err)})
				}
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" && choice.FinishReason == "" {
					continue
				}
				if !send(&models.BackendEvent{
					Index:        choice.Index,
					Text:         choice.Delta.Content,
					FinishReason: models.BackendFinishReason(choice.FinishReason),
				}) {
					return
				}
			}
			if resp.Usage != nil {
				if !send(&models.BackendEvent{Usage: &models.BackendUsage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}}) {
					return
				}
			}
		}
	}()

	return resultChan, nil
}

// buildRequest converts the backend request to the OpenAI schema and applies the
// configured parameter filters.
// explicitFloat keeps a requested zero on the wire. go-openai omits zero
// temperature and top_p, and upstreams then apply their default of 1.
func explicitFloat(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (c *OpenAIClient) buildRequest(req *models.BackendChatRequest, stream bool) (openai.ChatCompletionRequest, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    req.ModelID,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Stream:   stream,
		Stop:     req.Stop,
	}
	if c.config.Model != "" {
		openaiReq.Model = c.config.Model
	}

	// Convert messages
	for _, msg := range req.Messages {
		openaiReq.Messages = append(openaiReq.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Text(),
		})
	}

	if req.MaxTokens != nil {
		openaiReq.MaxTokens = *req.MaxTokens
	}
	if req.NumGenerations != nil {
		openaiReq.N = *req.NumGenerations
	}
	if req.LogProbs != nil {
		openaiReq.LogProbs = true
		openaiReq.TopLogProbs = *req.LogProbs
	}
	if req.Temperature != nil {
		openaiReq.Temperature = explicitFloat(*req.Temperature)
	}
	if req.TopP != nil {
		openaiReq.TopP = explicitFloat(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		openaiReq.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		openaiReq.PresencePenalty = float32(*req.PresencePenalty)
	}
	if req.ToolChoice != nil {
		openaiReq.ToolChoice = strings.ToLower(string(req.ToolChoice.Type))
	}
	for _, tool := range req.Tools {
		def := &openai.FunctionDefinition{Name: tool.Name, Description: tool.Description}
		if len(tool.Parameters) > 0 {
			def.Parameters = tool.Parameters
		}
		openaiReq.Tools = append(openaiReq.Tools, openai.Tool{Type: openai.ToolTypeFunction, Function: def})
	}
	if stream {
		openaiReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	if len(c.config.DisabledParams) == 0 && len(c.config.DefaultParams) == 0 {
		return openaiReq, nil
	}

	// Remove unsupported parameters and fill defaults on the wire form
	data, err := json.Marshal(openaiReq)
	if err != nil {
		return openaiReq, fmt.Errorf("marshal request: %w", err)
	}
	if data, err = applyParams(data, c.config.DisabledParams, c.config.DefaultParams); err != nil {
		return openaiReq, err
	}
	var filtered openai.ChatCompletionRequest
	if err := json.Unmarshal(data, &filtered); err != nil {
		return openaiReq, fmt.Errorf("unmarshal filtered request: %w", err)
	}
	filtered.Stream = stream
	return filtered, nil
}

func openAIRole(role models.BackendRole) string {
	switch role {
	case models.BackendRoleSystem:
		return openai.ChatMessageRoleSystem
	case models.BackendRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func convertOpenAILogProbs(lp *openai.LogProbs) *models.BackendLogProbs {
	if lp == nil || len(lp.Content) == 0 {
		return nil
	}
	out := &models.BackendLogProbs{}
	for _, token := range lp.Content {
		out.Tokens = append(out.Tokens, token.Token)
		out.TokenLogProbs = append(out.TokenLogProbs, token.LogProb)
		top := make(map[string]float64, len(token.TopLogProbs))
		for _, alt := range token.TopLogProbs {
			top[alt.Token] = alt.LogProb
		}
		out.TopLogProbs = append(out.TopLogProbs, top)
	}
	return out
}
