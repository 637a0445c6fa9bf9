package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"studio-live/api"
	"studio-live/auth"
	"studio-live/internal"
	"studio-live/moderation"
	"studio-live/observability"
	"studio-live/payments"
	"studio-live/relay"
	"studio-live/repositories"
	"studio-live/runtime"
	"studio-live/runtime/workers"
	"studio-live/search"
	"studio-live/services"
	"studio-live/storage"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting so every defer executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	maskingChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open message index: %w", err)
	}
	defer func() {
		logger.Info("Closing message index...")
		_ = index.Close()
	}()

	monitor := observability.NewMonitor(logger)

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		endpoint := "/inspect"
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(db, config.DebugPort, endpoint, storeMapper, func() map[string]any {
			stats := monitor.Snapshot()
			return map[string]any{
				"messages_stored": stats.MessagesStored,
				"signals_relayed": stats.SignalsRelayed,
				"peers_connected": stats.PeersConnected,
				"active_rooms":    stats.ActiveRooms,
			}
		})
	}

	// 3. Setup Supervision & Orchestration
	sup := workers.NewSupervisor(logger)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	conversationRepository := repositories.NewConversationRepository(db, logger)
	accountRepository := repositories.NewAccountRepository(db, logger)

	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry, monitor,
		messageRepository, conversationRepository, index,
		config.BufferSize, config.SinkTimeout, config.MetricInterval,
	)

	moderator, err := buildModerator(config, maskingChar, logger)
	if err != nil {
		return exitConfig, err
	}

	chatService := services.NewChatService(
		logger, conversationRepository, messageRepository,
		moderator, orchestrator, monitor,
	)

	issuer := auth.NewTokenIssuer([]byte(config.AuthTokenKey), config.AuthTokenDuration)
	authService := auth.NewService(logger, accountRepository, issuer)

	paymentsClient := payments.NewClient(
		config.PaymentBaseURL, config.PaymentSecretKey, config.PaymentTimeout, logger,
	)

	attachments, err := storage.NewAttachmentStore(config.AttachmentsDir, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("attachment store init failed: %w", err)
	}

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 5. Start the Engine (Workers and Fanout)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. Signaling Hub & HTTP Server
	metrics := relay.NewMetrics()
	hub := relay.NewHub(logger, metrics, monitor)
	go hub.Run()

	mux := http.NewServeMux()
	mux.Handle("/ws", relay.NewHandler(logger, hub, config.Origins()))
	mux.Handle("GET /metrics", metrics.Handler())

	apiServer := api.NewServer(
		logger, chatService, authService, paymentsClient,
		index, attachments, monitor, config.Origins(),
	)
	apiServer.Register(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Active websocket clients get a close frame, workers drain their channels.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "err", err)
	}
	hub.Close()
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// buildModerator loads the banned word list when configured. Without a list
// the chat runs uncensored.
func buildModerator(config internal.Config, maskingChar rune, logger *slog.Logger) (*moderation.Moderator, error) {
	if config.BannedWordsFile == "" {
		logger.Info("No banned words file configured, moderation disabled")
		return nil, nil
	}
	raw, err := os.ReadFile(config.BannedWordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read banned words: %w", err)
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	moderator, err := moderation.NewModerator(words, maskingChar)
	if err != nil {
		return nil, err
	}
	logger.Info("Moderation enabled", "words", len(words))
	return &moderator, nil
}

// storeMapper renders chat keys in the debug inspector.
func storeMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		var stored struct {
			SenderID string `json:"sender_id"`
			Content  string `json:"content"`
			At       int64  `json:"at"`
			Read     bool   `json:"read"`
		}
		if err := json.Unmarshal(val, &stored); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Timestamp = time.Unix(0, stored.At).Format("15:04:05")
		row.Detail = fmt.Sprintf("[%s] %s (read=%v)", stored.SenderID, stored.Content, stored.Read)

	case strings.HasPrefix(key, "conv:"):
		var stored struct {
			Participants []string `json:"participants"`
			LastMessage  string   `json:"last_message"`
		}
		if err := json.Unmarshal(val, &stored); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "CONVERSATION"
		row.Detail = fmt.Sprintf("%v | last: %s", stored.Participants, stored.LastMessage)
	}

	return row
}
