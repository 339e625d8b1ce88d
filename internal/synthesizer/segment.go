package synthesizer

import (
	"context"
	"time"
	"unicode"

	"github.com/sleepstars/chatgate/internal/models"
)

// Segment splits text into word fragments. Every fragment after the first keeps
// its leading whitespace, so joining the fragments reproduces text exactly.
func Segment(text string) []string {
	if text == "" {
		return nil
	}

	var (
		out       []string
		start     int
		prevSpace = true
	)
	for i, r := range text {
		space := unicode.IsSpace(r)
		if space && !prevSpace && i > start {
			out = append(out, text[start:i])
			start = i
		}
		prevSpace = space
	}
	return append(out, text[start:])
}

// TextEvents replays a complete result as a paced event stream: one event per
// word fragment per candidate, then the candidate's finish event, then usage.
// The channel is closed when done or when ctx is cancelled.
func TextEvents(ctx context.Context, res *models.BackendResult, delay time.Duration) <-chan *models.BackendEvent {
	ch := make(chan *models.BackendEvent)

	go func() {
		defer close(ch)
		if res == nil {
			return
		}

		send := func(ev *models.BackendEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- ev:
				return true
			}
		}
		wait := func() bool {
			if delay <= 0 {
				return ctx.Err() == nil
			}
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return false
			case <-timer.C:
				return true
			}
		}

		for i, cand := range res.Candidates {
			for j, fragment := range Segment(cand.Text) {
				if j > 0 && !wait() {
					return
				}
				if !send(&models.BackendEvent{Index: i, Text: fragment}) {
					return
				}
			}
			finish := cand.FinishReason
			if finish == "" {
				finish = models.BackendFinishComplete
			}
			if !send(&models.BackendEvent{Index: i, FinishReason: finish}) {
				return
			}
		}
		if res.Usage != nil {
			send(&models.BackendEvent{Usage: res.Usage})
		}
	}()

	return ch
}
