package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/sleepstars/chatgate/internal/models"
)

// perMessageOverhead approximates the role and framing tokens of a chat message.
const perMessageOverhead = 3

// Counter estimates token counts when the backend does not report usage.
type Counter interface {
	Count(text string) int
}

// Estimator counts with the o200k_base encoding and falls back to len/4.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.O200kBase)
		if err == nil {
			e.codec = codec
		}
	})
	if e.codec == nil {
		return fallback(text)
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return fallback(text)
	}
	return len(ids)
}

// PromptTokens estimates the prompt size of a backend request.
func PromptTokens(c Counter, req *models.BackendChatRequest) int {
	if req == nil {
		return 0
	}
	total := 0
	for _, msg := range req.Messages {
		total += perMessageOverhead + c.Count(msg.Text())
	}
	return total + perMessageOverhead
}

func fallback(text string) int {
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}
