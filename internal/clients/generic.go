package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/sleepstars/chatgate/internal/models"
)

const maxErrorBody = 512

// GenericClient implements Backend for HTTP services speaking the generic
// backend format. Streams are newline-delimited BackendEvent objects.
type GenericClient struct {
	config BackendConfig
	client *http.Client
}

// NewGenericClient creates a new generic HTTP backend client
func NewGenericClient(config BackendConfig) *GenericClient {
	return &GenericClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (c *GenericClient) Invoke(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Parse response
	var result models.BackendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

func (c *GenericClient) InvokeStream(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan *models.BackendEvent)

	// Start goroutine to read streaming response
	go func() {
		defer close(resultChan)
		defer resp.Body.Close()

		send := func(ev *models.BackendEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case resultChan <- ev:
				return true
			}
		}

		decoder := json.NewDecoder(resp.Body)
		for {
			var raw json.RawMessage
			if err := decoder.Decode(&raw); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					send(&models.BackendEvent{Err: fmt.Errorf("decode stream: %w", err)})
				}
				return
			}

			if msg := gjson.GetBytes(raw, "error"); msg.Exists() {
				send(&models.BackendEvent{Err: fmt.Errorf("backend stream error: %s", msg.String())})
				return
			}

			var ev models.BackendEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				send(&models.BackendEvent{Err: fmt.Errorf("decode event: %w", err)})
				return
			}
			if !send(&ev) {
				return
			}
		}
	}()

	return resultChan, nil
}

func (c *GenericClient) post(ctx context.Context, req *models.BackendChatRequest, stream bool) (*http.Response, error) {
	out := *req
	out.IsStream = stream
	if c.config.Model != "" {
		out.ModelID = c.config.Model
	}

	// Prepare request body
	body, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if body, err = applyParams(body, c.config.DisabledParams, c.config.DefaultParams); err != nil {
		return nil, err
	}

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	// Send request
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	// Check response status
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return resp, nil
}
