package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sleepstars/chatgate/internal/auth"
	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/orchestrator"
	"github.com/sleepstars/chatgate/internal/resolver"
)

// OwnedBy is reported for every model listed by GET /models.
const OwnedBy = "chatgate"

// Options wires the HTTP layer to the gateway.
type Options struct {
	Addr       string
	PathPrefix string
	Pipeline   *orchestrator.Pipeline
	Validator  *auth.Validator
	Resolver   resolver.Resolver
	Logger     *logger.Logger
}

// Server exposes the OpenAI-compatible HTTP surface.
type Server struct {
	opts   Options
	router *gin.Engine
	logger *logger.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Validator == nil {
		opts.Validator = auth.NewValidator(nil)
	}
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/v1"
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.WithComponent("server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group(s.opts.PathPrefix)
	api.Use(authMiddleware(s.opts.Validator))
	api.POST("/chat/completions", s.handleChatCompletions)
	api.GET("/models", s.handleListModels)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s (prefix %s)", s.opts.Addr, s.opts.PathPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
