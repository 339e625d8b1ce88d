package synthesizer

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/tokens"
)

// Options overrides the synthesizer's sources of ids, time and token counts.
type Options struct {
	NewID   func() string
	Now     func() time.Time
	Counter tokens.Counter
}

// Synthesizer builds client-facing responses from backend results.
type Synthesizer struct {
	newID   func() string
	now     func() time.Time
	counter tokens.Counter
}

func New(opts Options) *Synthesizer {
	s := &Synthesizer{newID: opts.NewID, now: opts.Now, counter: opts.Counter}
	if s.newID == nil {
		s.newID = NewCompletionID
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.counter == nil {
		s.counter = tokens.NewEstimator()
	}
	return s
}

// NewCompletionID returns "chatcmpl-" followed by a random UUID in hex.
func NewCompletionID() string {
	return models.CompletionIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Response builds the non-streaming response. Candidates become choices in backend
// order. A result with no candidates is a backend error.
func (s *Synthesizer) Response(req *models.BackendChatRequest, res *models.BackendResult) (*models.ChatCompletionResponse, error) {
	if res == nil || len(res.Candidates) == 0 {
		return nil, &models.BackendError{Err: errors.New("backend returned no candidates")}
	}

	choices := make([]models.Choice, 0, len(res.Candidates))
	var completion strings.Builder
	for i, cand := range res.Candidates {
		completion.WriteString(cand.Text)
		choices = append(choices, buildChoice(i, cand))
	}

	return &models.ChatCompletionResponse{
		ID:      s.newID(),
		Object:  models.ObjectChatCompletion,
		Created: s.now().Unix(),
		Model:   clientModel(req, res),
		Choices: choices,
		Usage:   s.usage(req, res.Usage, completion.String()),
	}, nil
}

func buildChoice(index int, cand models.BackendCandidate) models.Choice {
	msg := models.AssistantMessage{
		Role:    models.RoleAssistant,
		Content: cand.Text,
	}
	for _, call := range cand.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:       call.ID,
			Type:     models.ToolTypeFunction,
			Function: models.ToolCallFunction{Name: call.Name, Arguments: call.Arguments},
		})
	}
	if cand.Refusal != "" {
		refusal := cand.Refusal
		msg.Refusal = &refusal
	}

	finish := cand.FinishReason.ToClient()
	if cand.FinishReason == "" && len(msg.ToolCalls) > 0 {
		finish = models.FinishReasonToolCalls
	}

	return models.Choice{
		Index:        index,
		Message:      msg,
		FinishReason: finish,
		LogProbs:     convertLogProbs(cand.LogProbs),
	}
}

func convertLogProbs(lp *models.BackendLogProbs) *models.ChoiceLogProbs {
	if lp == nil || len(lp.Tokens) == 0 {
		return nil
	}
	out := &models.ChoiceLogProbs{Content: make([]models.TokenLogProb, 0, len(lp.Tokens))}
	for i, token := range lp.Tokens {
		entry := models.TokenLogProb{
			Token:       token,
			Bytes:       tokenBytes(token),
			TopLogProbs: []models.TopLogProb{},
		}
		if i < len(lp.TokenLogProbs) {
			entry.LogProb = lp.TokenLogProbs[i]
		}
		if i < len(lp.TopLogProbs) {
			for alt, prob := range lp.TopLogProbs[i] {
				entry.TopLogProbs = append(entry.TopLogProbs, models.TopLogProb{Token: alt, LogProb: prob, Bytes: tokenBytes(alt)})
			}
			sortTopLogProbs(entry.TopLogProbs)
		}
		out.Content = append(out.Content, entry)
	}
	return out
}

// sortTopLogProbs orders alternatives by descending probability, then token.
func sortTopLogProbs(alts []models.TopLogProb) {
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].LogProb != alts[j].LogProb {
			return alts[i].LogProb > alts[j].LogProb
		}
		return alts[i].Token < alts[j].Token
	})
}

func tokenBytes(token string) []int {
	out := make([]int, len(token))
	for i := 0; i < len(token); i++ {
		out[i] = int(token[i])
	}
	return out
}

// usage echoes backend counts when present and estimates them otherwise.
// Total is always prompt + completion.
func (s *Synthesizer) usage(req *models.BackendChatRequest, u *models.BackendUsage, completion string) models.Usage {
	var prompt, completionTokens int
	if u != nil {
		prompt, completionTokens = u.PromptTokens, u.CompletionTokens
	} else {
		prompt = tokens.PromptTokens(s.counter, req)
		completionTokens = s.counter.Count(completion)
	}
	return models.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}

func clientModel(req *models.BackendChatRequest, res *models.BackendResult) string {
	switch {
	case req != nil && req.ClientModel != "":
		return req.ClientModel
	case req != nil && req.ModelID != "":
		return req.ModelID
	case res != nil:
		return res.ModelID
	}
	return ""
}
