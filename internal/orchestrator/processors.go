package orchestrator

import (
	"context"

	"github.com/sleepstars/chatgate/internal/modelbridge"
	"github.com/sleepstars/chatgate/internal/synthesizer"
	"github.com/sleepstars/chatgate/internal/translator"
)

// RequestTranslator validates the client request and maps it onto the backend schema
type RequestTranslator struct {
	translator *translator.Translator
}

func newRequestTranslator(t *translator.Translator) *RequestTranslator {
	return &RequestTranslator{translator: t}
}

func (p *RequestTranslator) Name() string {
	return "request_translator"
}

func (p *RequestTranslator) Execute(ctx context.Context, data *Payload) error {
	backendReq, err := p.translator.Translate(data.Request)
	if err != nil {
		return err
	}
	data.BackendRequest = backendReq
	return nil
}

// BackendInvoker makes the blocking backend call
type BackendInvoker struct {
	bridge *modelbridge.ModelBridge
}

func newBackendInvoker(bridge *modelbridge.ModelBridge) *BackendInvoker {
	return &BackendInvoker{bridge: bridge}
}

func (p *BackendInvoker) Name() string {
	return "backend_invoker"
}

func (p *BackendInvoker) Execute(ctx context.Context, data *Payload) error {
	data.BackendRequest.IsStream = false
	res, err := p.bridge.Invoke(ctx, data.BackendRequest)
	if err != nil {
		return err
	}
	data.Result = res
	return nil
}

// ResponseSynthesizer builds the client response from the backend result
type ResponseSynthesizer struct {
	synthesizer *synthesizer.Synthesizer
}

func newResponseSynthesizer(s *synthesizer.Synthesizer) *ResponseSynthesizer {
	return &ResponseSynthesizer{synthesizer: s}
}

func (p *ResponseSynthesizer) Name() string {
	return "response_synthesizer"
}

func (p *ResponseSynthesizer) Execute(ctx context.Context, data *Payload) error {
	resp, err := p.synthesizer.Response(data.BackendRequest, data.Result)
	if err != nil {
		return err
	}
	data.Response = resp
	return nil
}
