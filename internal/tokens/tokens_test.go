package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sleepstars/chatgate/internal/models"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator()

	assert.Equal(t, 0, e.Count(""))
	assert.Greater(t, e.Count("Hello!"), 0)
	assert.Greater(t, e.Count("This is a much longer sentence with many more words in it"), e.Count("short"))
}

type fixedCounter int

func (f fixedCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return int(f)
}

func TestPromptTokens(t *testing.T) {
	req := &models.BackendChatRequest{
		Messages: []models.BackendMessage{
			models.NewBackendMessage(models.BackendRoleSystem, "be brief"),
			models.NewBackendMessage(models.BackendRoleUser, "Hello!"),
		},
	}

	assert.Equal(t, 2*(perMessageOverhead+5)+perMessageOverhead, PromptTokens(fixedCounter(5), req))
	assert.Equal(t, perMessageOverhead, PromptTokens(fixedCounter(5), &models.BackendChatRequest{}))
	assert.Equal(t, 0, PromptTokens(fixedCounter(5), nil))
}

func TestFallback(t *testing.T) {
	assert.Equal(t, 1, fallback("abc"))
	assert.Equal(t, 2, fallback("abcdefgh"))
}
