package clients

import (
	"context"

	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/synthesizer"
)

// DefaultMockContent is returned by the in-memory backend when none is configured.
const DefaultMockContent = "This is a mock response from the gateway"

// MockClient is an in-memory backend that answers every request with fixed text.
type MockClient struct {
	config BackendConfig
}

func NewMockClient(config BackendConfig) *MockClient {
	if config.MockContent == "" {
		config.MockContent = DefaultMockContent
	}
	return &MockClient{config: config}
}

func (c *MockClient) Invoke(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := 1
	if req.NumGenerations != nil && *req.NumGenerations > 1 {
		n = *req.NumGenerations
	}
	result := &models.BackendResult{
		ModelID:    req.ModelID,
		Candidates: make([]models.BackendCandidate, 0, n),
		Usage:      &models.BackendUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	for i := 0; i < n; i++ {
		result.Candidates = append(result.Candidates, models.BackendCandidate{
			Index:        i,
			Text:         c.config.MockContent,
			FinishReason: models.BackendFinishComplete,
		})
	}
	return result, nil
}

// InvokeStream replays the Invoke result word by word, ChunkDelay apart.
func (c *MockClient) InvokeStream(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error) {
	result, err := c.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return synthesizer.TextEvents(ctx, result, c.config.ChunkDelay), nil
}
