package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/config"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/httpapi"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/providers"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/server"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/service"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	auth := service.NewAuth(cfg.AuthUsername, cfg.AuthPasswordHash, cfg.SessionTTL, logger)
	settings := store.NewSettings(cfg.DataDir, logger)

	scripts, err := store.NewScripts(cfg.DataDir, cfg.ScriptMaxBytes, logger)
	if err != nil {
		logger.Error("failed to open script library", slog.Any("error", err))
		os.Exit(1)
	}

	registry := providers.NewRegistry()
	registry.Register("openai", providers.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	registry.Register("echo", providers.EchoClient{})

	handler := httpapi.NewRouter(cfg, auth, settings, scripts, registry, logger)
	srv := server.New(cfg, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go auth.Run(ctx)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
