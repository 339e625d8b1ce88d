package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sleepstars/chatgate/internal/models"
)

const (
	TypeMock   = "mock"
	TypeHTTP   = "http"
	TypeOpenAI = "openai"
)

// Backend defines the interface for backend chat APIs
type Backend interface {
	// Invoke sends a completion request and waits for the full result
	Invoke(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error)

	// InvokeStream sends a streaming request. The channel is closed when the
	// backend finishes or ctx is cancelled; a failure arrives as an event with Err set.
	InvokeStream(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error)
}

// BackendConfig contains configuration for backend clients
type BackendConfig struct {
	Type           string
	APIBase        string
	APIKey         string
	Model          string // overrides the resolved model id when set
	Timeout        time.Duration
	DisabledParams []string
	DefaultParams  map[string]interface{}

	MockContent string
	ChunkDelay  time.Duration
}

// New creates the backend named by cfg.Type.
func New(cfg BackendConfig) (Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeMock:
		return NewMockClient(cfg), nil
	case TypeHTTP:
		if cfg.APIBase == "" {
			return nil, fmt.Errorf("backend %q requires api_base", cfg.Type)
		}
		return NewGenericClient(cfg), nil
	case TypeOpenAI:
		if cfg.APIBase == "" {
			return nil, fmt.Errorf("backend %q requires api_base", cfg.Type)
		}
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

// applyParams removes disabled parameters from a JSON body and fills defaults
// for parameters the body does not already set.
func applyParams(body []byte, disabled []string, defaults map[string]interface{}) ([]byte, error) {
	var err error
	for _, param := range disabled {
		if body, err = sjson.DeleteBytes(body, param); err != nil {
			return nil, fmt.Errorf("remove %s: %w", param, err)
		}
	}
	for param, value := range defaults {
		if gjson.GetBytes(body, param).Exists() {
			continue
		}
		if body, err = sjson.SetBytes(body, param, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", param, err)
		}
	}
	return body, nil
}
