package modelbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sleepstars/chatgate/internal/clients"
	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/models"
)

// ModelBridge wraps a backend with logging, panic recovery and stream filtering.
// Every failure it returns is a *models.BackendError.
type ModelBridge struct {
	backend clients.Backend
	logger  *logger.Logger
}

// NewModelBridge creates a new model bridge instance
func NewModelBridge(backend clients.Backend, log *logger.Logger) *ModelBridge {
	return &ModelBridge{
		backend: backend,
		logger:  log.WithComponent("model_bridge"),
	}
}

// Invoke sends a request to the backend and waits for the complete result
func (b *ModelBridge) Invoke(ctx context.Context, req *models.BackendChatRequest) (res *models.BackendResult, err error) {
	defer b.recoverPanic("invoke", &err)

	b.logger.Debug("Calling backend model %s with %d messages", req.ModelID, len(req.Messages))

	res, err = b.backend.Invoke(ctx, req)
	if err != nil {
		b.logger.WithError(err).Error("Backend call failed")
		return nil, wrapBackendError(err)
	}

	b.logger.Debug("Backend call completed with %d candidates", len(res.Candidates))
	return res, nil
}

// InvokeStream starts a streaming call. Empty events are dropped before they
// reach the caller.
func (b *ModelBridge) InvokeStream(ctx context.Context, req *models.BackendChatRequest) (out <-chan *models.BackendEvent, err error) {
	defer b.recoverPanic("invoke stream", &err)

	b.logger.Debug("Starting streaming call to backend model %s with %d messages", req.ModelID, len(req.Messages))
	eventChan, err := b.backend.InvokeStream(ctx, req)
	if err != nil {
		b.logger.WithError(err).Error("Failed to start backend streaming")
		return nil, wrapBackendError(fmt.Errorf("start stream: %w", err))
	}

	// Create a new channel for filtered events
	filteredChan := make(chan *models.BackendEvent)

	// Start goroutine to process events
	go func() {
		defer close(filteredChan)
		eventCount := 0
		textCount := 0

		for ev := range eventChan {
			eventCount++
			if ev == nil || (ev.Text == "" && ev.FinishReason == "" && ev.Usage == nil && ev.Err == nil) {
				continue
			}
			if ev.Text != "" {
				textCount++
			}
			if ev.Err != nil {
				b.logger.WithError(ev.Err).Error("Backend stream failed")
			}

			select {
			case <-ctx.Done():
				b.logger.Debug("Streaming cancelled after %d events", eventCount)
				// Drain so the producer can observe cancellation and exit.
				for range eventChan {
				}
				return
			case filteredChan <- ev:
			}
		}

		b.logger.Debug("Streaming completed: total=%d, text=%d", eventCount, textCount)
	}()

	return filteredChan, nil
}

func (b *ModelBridge) recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		b.logger.Error("Backend %s panicked: %v", op, r)
		*err = &models.BackendError{Err: fmt.Errorf("runtime error: %v", r)}
	}
}

func wrapBackendError(err error) error {
	var backendErr *models.BackendError
	if errors.As(err, &backendErr) {
		return err
	}
	return &models.BackendError{Err: err}
}
