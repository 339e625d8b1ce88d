package translator

import (
	"fmt"
	"strings"

	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/resolver"
)

// EmptyContentPolicy decides what happens to messages with null or blank content.
type EmptyContentPolicy string

const (
	// EmptyContentReject fails validation.
	EmptyContentReject EmptyContentPolicy = "reject"
	// EmptyContentDrop removes the message from the backend request with a warning.
	EmptyContentDrop EmptyContentPolicy = "drop"
)

// ParseEmptyContentPolicy defaults to drop.
func ParseEmptyContentPolicy(s string) (EmptyContentPolicy, error) {
	switch EmptyContentPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmptyContentDrop:
		return EmptyContentDrop, nil
	case EmptyContentReject:
		return EmptyContentReject, nil
	}
	return "", fmt.Errorf("unknown empty content policy %q", s)
}

// Translator converts client requests into backend requests.
type Translator struct {
	resolver     resolver.Resolver
	emptyContent EmptyContentPolicy
	logger       *logger.Logger
}

func New(r resolver.Resolver, policy EmptyContentPolicy, log *logger.Logger) *Translator {
	if policy == "" {
		policy = EmptyContentDrop
	}
	return &Translator{
		resolver:     r,
		emptyContent: policy,
		logger:       log.WithComponent("translator"),
	}
}

// Translate validates req, resolves its model and maps it onto the backend schema.
// req is normalized in place with its defaults.
func (t *Translator) Translate(req *models.ChatCompletionRequest) (*models.BackendChatRequest, error) {
	req.ApplyDefaults()
	if err := req.Validate(models.ValidationOptions{AllowEmptyContent: t.emptyContent == EmptyContentDrop}); err != nil {
		return nil, err
	}

	resolution, err := t.resolver.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	out := &models.BackendChatRequest{
		APIFormat:        models.APIFormatGeneric,
		ModelID:          resolution.Backend,
		ClientModel:      resolution.Client,
		Messages:         t.translateMessages(req.Messages),
		MaxTokens:        req.TokenLimit(),
		IsStream:         req.Stream,
		NumGenerations:   req.N,
		LogProbs:         req.LogProbs,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		ToolChoice:       translateToolChoice(req.ToolChoice),
		Tools:            t.translateTools(req.Tools),
	}
	if len(req.Stop) > 0 {
		out.Stop = append([]string(nil), req.Stop...)
	}

	t.logDroppedFields(req)
	t.logger.Debug("Translated request: model=%s backend=%s messages=%d stream=%v",
		req.Model, out.ModelID, len(out.Messages), out.IsStream)
	return out, nil
}

func (t *Translator) translateMessages(msgs []models.ChatMessage) []models.BackendMessage {
	out := make([]models.BackendMessage, 0, len(msgs))
	for i, msg := range msgs {
		if !msg.HasContent() {
			t.logger.Warn("Skipping message %d with empty content (role=%s)", i, msg.Role)
			continue
		}

		var role models.BackendRole
		switch msg.Role {
		case models.RoleSystem, models.RoleDeveloper:
			role = models.BackendRoleSystem
		case models.RoleUser:
			role = models.BackendRoleUser
		case models.RoleAssistant:
			role = models.BackendRoleAssistant
		default:
			// Unreachable after validation.
			t.logger.WithError(&models.UnsupportedFeatureError{Feature: "role", Detail: string(msg.Role)}).
				Warn("Skipping message %d", i)
			continue
		}
		out = append(out, models.NewBackendMessage(role, msg.Text()))
	}
	return out
}

func translateToolChoice(choice models.ToolChoice) *models.BackendToolChoice {
	switch choice {
	case models.ToolChoiceNone:
		return &models.BackendToolChoice{Type: models.BackendToolChoiceNone}
	case models.ToolChoiceAuto:
		return &models.BackendToolChoice{Type: models.BackendToolChoiceAuto}
	case models.ToolChoiceRequired:
		return &models.BackendToolChoice{Type: models.BackendToolChoiceRequired}
	default:
		return nil
	}
}

func (t *Translator) translateTools(tools []models.Tool) []models.BackendToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]models.BackendToolDefinition, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != models.ToolTypeFunction || tool.Function == nil {
			t.logger.WithError(&models.UnsupportedFeatureError{Feature: "tool type", Detail: string(tool.Type)}).
				Warn("Skipping tool %d", i)
			continue
		}
		def := models.BackendToolDefinition{
			Type:       "FUNCTION",
			Name:       tool.Function.Name,
			Parameters: tool.Function.Parameters,
		}
		if strings.TrimSpace(tool.Function.Description) != "" {
			def.Description = tool.Function.Description
		}
		out = append(out, def)
	}
	return out
}

// logDroppedFields records client fields with no backend equivalent.
func (t *Translator) logDroppedFields(req *models.ChatCompletionRequest) {
	var dropped []string
	if req.Seed != nil {
		dropped = append(dropped, "seed")
	}
	if len(req.LogitBias) > 0 {
		dropped = append(dropped, "logit_bias")
	}
	if req.TopLogProbs != nil {
		dropped = append(dropped, "top_logprobs")
	}
	if req.ServiceTier != models.ServiceTierAuto {
		dropped = append(dropped, "service_tier")
	}
	if req.Truncation != models.TruncationDisabled {
		dropped = append(dropped, "truncation")
	}
	if req.User != "" {
		dropped = append(dropped, "user")
	}
	if len(dropped) > 0 {
		t.logger.Debug("Fields without backend equivalent ignored: %s", strings.Join(dropped, ", "))
	}
}
