package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sleepstars/chatgate/internal/auth"
	"github.com/sleepstars/chatgate/internal/models"
	"github.com/sleepstars/chatgate/internal/synthesizer"
)

func (s *Server) handleChatCompletions(c *gin.Context) {
	var req models.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}

	if caller, ok := c.Get(callerKey); ok {
		cc := caller.(auth.CallerContext)
		s.logger.Debug("Chat completion: model=%s stream=%v org=%s project=%s",
			req.Model, req.Stream, cc.Organization, cc.Project)
	}

	ctx := c.Request.Context()
	if req.Stream {
		stream, err := s.opts.Pipeline.ExecuteStream(ctx, &req)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.writeStream(c, stream)
		return
	}

	resp, err := s.opts.Pipeline.Execute(ctx, &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListModels(c *gin.Context) {
	var names []string
	if s.opts.Resolver != nil {
		names = s.opts.Resolver.Models()
	}
	c.JSON(http.StatusOK, models.NewModelList(names, OwnedBy))
}

// writeStream sends chunks as server-sent events and ends with [DONE]. The first
// chunk is pulled before any header is written, so a backend that fails
// immediately still gets a JSON error status. A failure after that is reported
// as a single error event without [DONE].
func (s *Server) writeStream(c *gin.Context, stream *synthesizer.ChunkStream) {
	defer stream.Close()
	ctx := c.Request.Context()

	first, firstErr := stream.Next(ctx)
	if firstErr != nil && !errors.Is(firstErr, io.EOF) {
		if ctx.Err() != nil {
			s.logger.Debug("Stream %s: client disconnected before the first chunk", stream.ID())
			return
		}
		s.fail(c, firstErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	sent, pending := 0, true
	c.Stream(func(w io.Writer) bool {
		chunk, err := first, firstErr
		if pending {
			pending = false
		} else {
			chunk, err = stream.Next(ctx)
		}
		switch {
		case err == nil:
			if werr := writeEvent(w, chunk); werr != nil {
				s.logger.WithError(werr).Debug("Stream %s: write failed", stream.ID())
				return false
			}
			sent++
			return true
		case errors.Is(err, io.EOF):
			fmt.Fprint(w, "data: [DONE]\n\n")
			s.logger.Debug("Stream %s completed with %d chunks", stream.ID(), sent)
			return false
		case ctx.Err() != nil:
			s.logger.Debug("Stream %s: client disconnected after %d chunks", stream.ID(), sent)
			return false
		default:
			s.logFailure(err)
			_, body := models.ToAPIError(err)
			_ = writeEvent(w, body)
			return false
		}
	})
}

func writeEvent(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logFailure(err)
	abortWithError(c, err)
}

func (s *Server) logFailure(err error) {
	var backendErr *models.BackendError
	if errors.As(err, &backendErr) {
		s.logger.WithError(backendErr.Err).Error("Backend failure")
		return
	}
	s.logger.WithError(err).Debug("Request rejected")
}

// bindError keeps decode-time validation errors and reports anything else as
// a malformed body.
func bindError(err error) error {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return &models.ValidationError{Field: "body", Message: "malformed JSON"}
}
