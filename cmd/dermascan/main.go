package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/pkg/client"
	"dermascan-be/pkg/media"
	"dermascan-be/pkg/session"
	"dermascan-be/pkg/storage"

	"github.com/fatih/color"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}

	log := logger.NewIsolatedLogger(cfg.LogFilePath)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := buildController(cfg, log)
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	controller.SignIn(session.UserContext{UserID: cfg.UserID, Token: cfg.Token})

	color.Cyan("DermaScan. Type /help for commands.")
	repl := &REPL{controller: controller, out: os.Stdout}
	if err := repl.Run(ctx, bufio.NewScanner(os.Stdin)); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func buildController(cfg *Config, log logger.ILogger) (*session.Controller, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	opts := []client.Option{client.WithHTTPClient(httpClient), client.WithLogger(log)}

	var resolver client.ReferenceResolver = client.InlineResolver{}
	if cfg.UsesBlobStorage() {
		blobs, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageKey, cfg.StorageContainer)
		if err != nil {
			return nil, fmt.Errorf("blob storage: %w", err)
		}
		resolver = client.NewUploadResolver(blobs, cfg.SignedURLTTL)
	}

	var store client.SessionStore = client.NewRemoteStore(cfg.ServerURL, opts...)
	if cfg.Offline {
		store = client.NewMemoryStore()
	}

	// Chat streams are bounded by the server, not the request timeout.
	chatOpts := []client.Option{client.WithHTTPClient(&http.Client{}), client.WithLogger(log)}

	sessionOpts := []session.Option{
		session.WithNotifier(session.NotifierFunc(printNotification)),
		session.WithLogger(log),
	}
	if cfg.CameraFrame != "" {
		sessionOpts = append(sessionOpts, session.WithDevice(media.FileDevice{Path: cfg.CameraFrame}))
	}

	return session.NewController(
		client.NewAnalysisClient(cfg.ServerURL, resolver, store, opts...),
		session.ChatClientAdapter{Client: client.NewChatClient(cfg.ServerURL, chatOpts...)},
		sessionOpts...,
	), nil
}

func printNotification(n session.Notification) {
	switch n.Level {
	case session.LevelError:
		color.Red("%s: %s", n.Title, n.Message)
	default:
		color.Green("%s: %s", n.Title, n.Message)
	}
}
