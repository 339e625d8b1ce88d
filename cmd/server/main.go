package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sleepstars/chatgate/internal/auth"
	"github.com/sleepstars/chatgate/internal/config"
	"github.com/sleepstars/chatgate/internal/server"
)

var configPath string

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatgate",
		Short:        "OpenAI-compatible chat completions gateway",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/app/config.yaml", "Path to the configuration file")

	root.AddCommand(newServeCommand(), newCheckTokenCommand(), newResolveModelCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := server.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			if cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			srv, err := server.Build(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func newCheckTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-token <token>",
		Short: "Report whether an API key has an accepted format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, ok := auth.NewValidator(nil).Validate(args[0], nil)
			if !ok {
				return errors.New("invalid API key format")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: subject=%s organization=%s project=%s\n",
				caller.Subject, caller.Organization, caller.Project)
			return nil
		},
	}
}

func newResolveModelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-model <model>",
		Short: "Show the backend model a client model name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			r, err := server.NewResolver(cfg.Models)
			if err != nil {
				return err
			}
			resolution, err := r.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", resolution.Client, resolution.Backend)
			return nil
		},
	}
}
