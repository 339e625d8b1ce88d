package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/modelbridge"
	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/synthesizer"
	"github.com/sleepstars/chatgate/internal/translator"
)

// Payload represents the data passed between pipeline stages
type Payload struct {
	RequestID      string
	Request        *models.ChatCompletionRequest
	BackendRequest *models.BackendChatRequest
	Result         *models.BackendResult
	Response       *models.ChatCompletionResponse
}

// PipelineStage defines the interface for a stage in the processing pipeline
type PipelineStage interface {
	Execute(ctx context.Context, data *Payload) error
	Name() string
}

// Options wires the pipeline to its collaborators.
type Options struct {
	Translator  *translator.Translator
	Bridge      *modelbridge.ModelBridge
	Synthesizer *synthesizer.Synthesizer
	// SimulateStream serves streaming requests with a blocking backend call
	// replayed word by word, ChunkDelay apart.
	SimulateStream bool
	ChunkDelay     time.Duration
	Logger         *logger.Logger
}

// Pipeline runs a chat completion request through translation, the backend
// and response synthesis.
type Pipeline struct {
	stages []PipelineStage
	opts   Options
	logger *logger.Logger
}

// NewPipeline creates a new pipeline with the specified collaborators
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.WithComponent("pipeline")
	log.Debug("Creating pipeline: simulate_stream=%v, chunk_delay=%s", opts.SimulateStream, opts.ChunkDelay)

	return &Pipeline{
		opts:   opts,
		logger: log,
		stages: []PipelineStage{
			newRequestTranslator(opts.Translator),
			newBackendInvoker(opts.Bridge),
			newResponseSynthesizer(opts.Synthesizer),
		},
	}
}

// Execute runs the pipeline stages in sequence
func (p *Pipeline) Execute(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	payload := newPayload(req)
	p.logger.Info("Starting pipeline execution for request id: %s", payload.RequestID)

	if err := p.run(ctx, payload, p.stages); err != nil {
		return nil, err
	}

	p.logger.Info("Pipeline execution completed successfully for request id: %s", payload.RequestID)
	return payload.Response, nil
}

// ExecuteStream translates req and opens a chunk stream over the backend.
// Closing the returned stream cancels the backend call.
func (p *Pipeline) ExecuteStream(ctx context.Context, req *models.ChatCompletionRequest) (*synthesizer.ChunkStream, error) {
	payload := newPayload(req)
	p.logger.Info("Starting streaming pipeline for request id: %s", payload.RequestID)

	if err := p.run(ctx, payload, p.stages[:1]); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := p.openStream(streamCtx, payload)
	if err != nil {
		cancel()
		p.logger.WithError(err).Error("Failed to open stream for request id: %s", payload.RequestID)
		return nil, err
	}

	return p.opts.Synthesizer.Stream(payload.BackendRequest, events, cancel, req.IncludeUsage()), nil
}

func (p *Pipeline) openStream(ctx context.Context, payload *Payload) (<-chan *models.BackendEvent, error) {
	if !p.opts.SimulateStream {
		payload.BackendRequest.IsStream = true
		return p.opts.Bridge.InvokeStream(ctx, payload.BackendRequest)
	}

	payload.BackendRequest.IsStream = false
	res, err := p.opts.Bridge.Invoke(ctx, payload.BackendRequest)
	if err != nil {
		return nil, err
	}
	return synthesizer.TextEvents(ctx, res, p.opts.ChunkDelay), nil
}

func (p *Pipeline) run(ctx context.Context, payload *Payload, stages []PipelineStage) error {
	for _, stage := range stages {
		stageName := stage.Name()
		p.logger.Debug("Executing stage: %s", stageName)

		select {
		case <-ctx.Done():
			p.logger.Warn("Pipeline execution cancelled for request id: %s", payload.RequestID)
			return ctx.Err()
		default:
			if err := stage.Execute(ctx, payload); err != nil {
				p.logger.WithError(err).Warn("Stage %s failed for request id: %s", stageName, payload.RequestID)
				return fmt.Errorf("stage %s failed: %w", stageName, err)
			}
			p.logger.Debug("Stage %s completed successfully", stageName)
		}
	}
	return nil
}

func newPayload(req *models.ChatCompletionRequest) *Payload {
	return &Payload{
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		Request:   req,
	}
}
