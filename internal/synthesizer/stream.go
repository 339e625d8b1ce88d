package synthesizer

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/tokens"
)

// ChunkStream lazily turns backend events into client chunks. It is forward-only
// and not safe for concurrent use by multiple readers.
type ChunkStream struct {
	id      string
	model   string
	created int64

	events       <-chan *models.BackendEvent
	cancel       context.CancelFunc
	closeOnce    sync.Once
	includeUsage bool

	req        *models.BackendChatRequest
	counter    tokens.Counter
	usage      *models.BackendUsage
	completion strings.Builder

	pending  []*models.ChatCompletionChunk
	started  map[int]bool
	finished map[int]bool
	order    []int
	done     bool
}

// Stream wraps a backend event channel. cancel is invoked by Close to stop the
// backend; it may be nil.
func (s *Synthesizer) Stream(req *models.BackendChatRequest, events <-chan *models.BackendEvent, cancel context.CancelFunc, includeUsage bool) *ChunkStream {
	if cancel == nil {
		cancel = func() {}
	}
	return &ChunkStream{
		id:           s.newID(),
		model:        clientModel(req, nil),
		created:      s.now().Unix(),
		events:       events,
		cancel:       cancel,
		includeUsage: includeUsage,
		req:          req,
		counter:      s.counter,
		started:      make(map[int]bool),
		finished:     make(map[int]bool),
	}
}

// ID is shared by every chunk of the stream.
func (cs *ChunkStream) ID() string {
	return cs.id
}

// Next returns the next chunk, io.EOF after the last one, a *models.BackendError
// if the backend failed, or ctx.Err() once ctx is done.
func (cs *ChunkStream) Next(ctx context.Context) (*models.ChatCompletionChunk, error) {
	for {
		if ctx.Err() != nil {
			cs.Close()
			return nil, ctx.Err()
		}
		if len(cs.pending) > 0 {
			chunk := cs.pending[0]
			cs.pending = cs.pending[1:]
			return chunk, nil
		}
		if cs.done {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			cs.Close()
			return nil, ctx.Err()
		case ev, ok := <-cs.events:
			if !ok {
				cs.finish()
				continue
			}
			if ev == nil {
				continue
			}
			if ev.Err != nil {
				cs.Close()
				return nil, &models.BackendError{Err: ev.Err}
			}
			cs.handle(ev)
		}
	}
}

// Close stops the backend and ends the stream. It is idempotent.
func (cs *ChunkStream) Close() {
	cs.closeOnce.Do(func() {
		cs.done = true
		cs.pending = nil
		cs.cancel()
	})
}

func (cs *ChunkStream) handle(ev *models.BackendEvent) {
	if ev.Usage != nil {
		cs.usage = ev.Usage
	}
	if cs.finished[ev.Index] {
		return
	}
	if ev.Text == "" && ev.FinishReason == "" {
		return
	}

	cs.start(ev.Index)
	if ev.Text != "" {
		cs.completion.WriteString(ev.Text)
		text := ev.Text
		cs.push(ev.Index, models.Delta{Content: &text}, nil)
	}
	if ev.FinishReason != "" {
		cs.terminate(ev.Index, ev.FinishReason.ToClient())
	}
}

// finish closes every open choice with "stop" and appends the optional usage chunk.
func (cs *ChunkStream) finish() {
	if len(cs.order) == 0 {
		cs.start(0)
	}
	for _, index := range cs.order {
		if !cs.finished[index] {
			cs.terminate(index, models.FinishReasonStop)
		}
	}
	if cs.includeUsage {
		cs.pending = append(cs.pending, &models.ChatCompletionChunk{
			ID:      cs.id,
			Object:  models.ObjectChatCompletionChunk,
			Created: cs.created,
			Model:   cs.model,
			Choices: []models.ChunkChoice{},
			Usage:   cs.streamUsage(),
		})
	}
	cs.done = true
}

func (cs *ChunkStream) start(index int) {
	if cs.started[index] {
		return
	}
	cs.started[index] = true
	cs.order = append(cs.order, index)
	empty := ""
	cs.push(index, models.Delta{Role: models.RoleAssistant, Content: &empty}, nil)
}

func (cs *ChunkStream) terminate(index int, reason models.FinishReason) {
	cs.finished[index] = true
	cs.push(index, models.Delta{}, &reason)
}

func (cs *ChunkStream) push(index int, delta models.Delta, finish *models.FinishReason) {
	cs.pending = append(cs.pending, &models.ChatCompletionChunk{
		ID:      cs.id,
		Object:  models.ObjectChatCompletionChunk,
		Created: cs.created,
		Model:   cs.model,
		Choices: []models.ChunkChoice{{Index: index, Delta: delta, FinishReason: finish}},
	})
}

func (cs *ChunkStream) streamUsage() *models.Usage {
	var prompt, completion int
	if cs.usage != nil {
		prompt, completion = cs.usage.PromptTokens, cs.usage.CompletionTokens
	} else {
		prompt = tokens.PromptTokens(cs.counter, cs.req)
		completion = cs.counter.Count(cs.completion.String())
	}
	return &models.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}
