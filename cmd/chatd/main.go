package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/it-era/chat-gateway/internal/ai"
	"github.com/it-era/chat-gateway/internal/cache"
	"github.com/it-era/chat-gateway/internal/chat"
	"github.com/it-era/chat-gateway/internal/config"
	"github.com/it-era/chat-gateway/internal/escalate"
	"github.com/it-era/chat-gateway/internal/fallback"
	"github.com/it-era/chat-gateway/internal/frontdoor"
	"github.com/it-era/chat-gateway/internal/intent"
	"github.com/it-era/chat-gateway/internal/knowledge"
	"github.com/it-era/chat-gateway/internal/orchestrator"
	"github.com/it-era/chat-gateway/internal/resolver"
	"github.com/it-era/chat-gateway/internal/retry"
	"github.com/it-era/chat-gateway/internal/server"
	"github.com/it-era/chat-gateway/internal/session"
	"github.com/it-era/chat-gateway/internal/telemetry"
	"github.com/it-era/chat-gateway/internal/transcript"

	relay "github.com/it-era/chat-gateway/internal/mail"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("it-era-chat-gateway", nil, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Session store: memory by default, redis when configured.
	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		store = session.NewRedisStore(client, sessionTTL)
		logger.Info("session store", slog.String("driver", "redis"), slog.String("addr", cfg.Session.Redis.Addr))
	default:
		store = session.NewMemoryStore(sessionTTL)
		logger.Info("session store", slog.String("driver", "memory"))
	}
	defer store.Close()

	sessions := session.NewManager(store, session.ManagerConfig{
		RateWindow:    time.Duration(cfg.Session.RateWindowMinutes) * time.Minute,
		RateThreshold: cfg.Session.RateThreshold,
	})

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.MaxEntries = cfg.Cache.MaxEntries
	}
	if cfg.Cache.DefaultTTLMinutes > 0 {
		cacheCfg.DefaultTTL = time.Duration(cfg.Cache.DefaultTTLMinutes) * time.Minute
	}
	for name, minutes := range cfg.Cache.TTLOverrideMinutes {
		cacheCfg.TTLOverride[chat.Intent(name)] = time.Duration(minutes) * time.Minute
	}
	responseCache := cache.New(cacheCfg)

	var orch resolver.Orchestrator
	if cfg.Orchestrator.URL != "" {
		orch = orchestrator.New(cfg.Orchestrator.URL)
	}

	var completer resolver.Completer
	if cfg.AI.APIKey != "" {
		kb, err := knowledge.New(context.Background(), knowledge.DefaultSnippets(), cfg.AI.APIKey)
		if err != nil {
			log.Fatalf("Failed to build knowledge base: %v", err)
		}

		var clientOpts []ai.ClientOption
		if cfg.AI.BaseURL != "" {
			clientOpts = append(clientOpts, ai.WithBaseURL(cfg.AI.BaseURL))
		}
		client := ai.NewClient(cfg.AI.APIKey, clientOpts...)

		gen, err := ai.NewGenerator(client, ai.GeneratorConfig{
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			CostLimit: cfg.AI.CostLimit,
		}, kb, logger)
		if err != nil {
			log.Fatalf("Failed to build AI generator: %v", err)
		}
		completer = gen
	}

	res := resolver.New(responseCache, orch, completer, fallback.New(), resolver.Config{
		OrchestratorTimeout: time.Duration(cfg.Orchestrator.TimeoutMS) * time.Millisecond,
		AITimeout:           time.Duration(cfg.AI.TimeoutMS) * time.Millisecond,
	}, logger)

	escalator := escalate.New(escalate.Config{
		WebhookURL:     cfg.Escalation.WebhookURL,
		ScoreThreshold: cfg.Escalation.ScoreThreshold,
	}, retry.New(retry.PresetByName(cfg.Escalation.RetryPreset), logger), logger)

	var transcripts transcript.Recorder = transcript.Noop{}
	if cfg.Transcript.Path != "" {
		rec, err := transcript.NewSQLite(cfg.Transcript.Path)
		if err != nil {
			log.Fatalf("Failed to open transcript store: %v", err)
		}
		defer rec.Close()
		transcripts = rec
	}

	chatHandler := frontdoor.NewChatHandler(logger, sessions, intent.New(nil), res, escalator, transcripts)
	healthHandler := frontdoor.NewHealthHandler(responseCache, orch != nil, completer != nil)

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
	}, logger)
	srv.Router.Post("/api/chat", chatHandler.ServeHTTP)
	srv.Router.Get("/health", healthHandler.ServeHTTP)

	if cfg.Mail.APIKey != "" {
		contactHandler := frontdoor.NewContactHandler(
			logger,
			relay.NewClient(cfg.Mail.APIKey),
			retry.New(retry.PresetByName(cfg.Mail.RetryPreset), logger),
			frontdoor.ContactConfig{
				FromAddress:  cfg.Mail.FromAddress,
				AdminAddress: cfg.Mail.AdminAddress,
				MaxPerWindow: cfg.Mail.MaxPerWindow,
				Window:       time.Duration(cfg.Mail.WindowMinutes) * time.Minute,
			},
		)
		srv.Router.Post("/api/contact", contactHandler.ServeHTTP)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigChan:
	}

	logger.Info("shutdown signal received")

	// Let in-flight escalation posts drain before exiting.
	escalator.Flush()

	logger.Info("shutdown complete")
}
