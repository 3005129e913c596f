package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/salesbot/internal/api"
	"github.com/MikeSquared-Agency/salesbot/internal/archive"
	"github.com/MikeSquared-Agency/salesbot/internal/config"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
	"github.com/MikeSquared-Agency/salesbot/internal/hermes"
	"github.com/MikeSquared-Agency/salesbot/internal/llm"
	"github.com/MikeSquared-Agency/salesbot/internal/manus"
	"github.com/MikeSquared-Agency/salesbot/internal/processor"
	"github.com/MikeSquared-Agency/salesbot/internal/prompt"
	"github.com/MikeSquared-Agency/salesbot/internal/session"
	"github.com/MikeSquared-Agency/salesbot/internal/slack"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
	"github.com/MikeSquared-Agency/salesbot/internal/teams"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("salesbot starting", "port", cfg.Port, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// Language model
	apiKey, model := cfg.LLMCredentials()
	completer, err := llm.NewProvider(cfg.LLMProvider, apiKey, model)
	if err != nil {
		slog.Error("invalid llm configuration", "error", err)
		os.Exit(1)
	}
	if apiKey == "" {
		slog.Warn("no llm api key, free-text briefings cannot be extracted", "provider", cfg.LLMProvider)
	}
	ext := extractor.New(completer, cfg.LLMTimeout, slog.Default())
	slog.Info("extractor ready", "provider", cfg.LLMProvider, "model", model)

	tpl := prompt.Template{}
	if cfg.PromptTemplateFile != "" {
		tpl, err = prompt.LoadTemplate(cfg.PromptTemplateFile)
		if err != nil {
			slog.Error("failed to load prompt template", "error", err)
			os.Exit(1)
		}
	}

	// Conversation state
	var sessions session.Store
	if cfg.RedisURL != "" {
		r, err := session.NewRedis(cfg.RedisURL, session.DefaultTTL)
		if err != nil {
			slog.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		if err := r.Ping(ctx); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer r.Close()
		sessions = r
		slog.Info("redis connected")
	} else {
		sessions = session.NewMemory(session.DefaultTTL)
		slog.Warn("REDIS_URL not set, pending questions are kept in memory")
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	manusClient := manus.NewClient(cfg.ManusAPIKey, cfg.ManusBaseURL, cfg.ManusProjectID, slog.Default())
	if cfg.ManusAPIKey == "" {
		slog.Warn("MANUS_API_KEY not set, task submission will fail")
	}

	deps := processor.Deps{
		Store:     db,
		Extractor: ext,
		Manus:     manusClient,
		Prompts:   prompt.NewBuilder(tpl),
		Sessions:  sessions,
		Events:    hermesClient,
	}

	// Slack (optional)
	var slackPoster *slack.Poster
	if cfg.SlackBotToken != "" {
		slackPoster = slack.NewPoster(cfg.SlackBotToken, slog.Default())
		deps.Slack = slackPoster
		slog.Info("slack ready")
	} else {
		slog.Warn("slack not configured")
	}

	// Teams (optional)
	var teamsConnector *teams.Connector
	if cfg.MicrosoftAppID != "" {
		teamsConnector, err = teams.NewConnector(cfg.MicrosoftAppID, cfg.MicrosoftAppPassword, cfg.MicrosoftTenantID, slog.Default())
		if err != nil {
			slog.Error("failed to create teams connector", "error", err)
			os.Exit(1)
		}
		deps.Teams = teamsConnector
		slog.Info("teams ready", "app_id", cfg.MicrosoftAppID)
	} else {
		slog.Warn("teams not configured")
	}

	// Artifact archive (optional)
	if cfg.AzureStorageConnectionString != "" {
		arch, err := archive.New(cfg.AzureStorageConnectionString, cfg.ArtifactContainer, slog.Default())
		if err != nil {
			slog.Error("failed to create artifact archive", "error", err)
			os.Exit(1)
		}
		if err := arch.EnsureContainer(ctx); err != nil {
			slog.Warn("artifact archive unavailable", "error", err)
		} else {
			deps.Archive = arch
		}
	}

	// Processor
	proc := processor.New(deps, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectTaskCompleted, proc.HandleTaskCompleted); err != nil {
		slog.Error("failed to subscribe to completed tasks", "error", err)
		os.Exit(1)
	}
	if err := hermesClient.Subscribe(hermes.SubjectTaskFailed, proc.HandleTaskFailed); err != nil {
		slog.Error("failed to subscribe to failed tasks", "error", err)
		os.Exit(1)
	}

	// HTTP API
	opts := api.Options{
		Port:          cfg.Port,
		Environment:   cfg.Environment,
		Briefings:     proc,
		Tasks:         db,
		BriefingRate:  cfg.BriefingRateLimit,
		BriefingBurst: cfg.BriefingBurst,
		Logger:        slog.Default(),
	}
	if cfg.ManusAPIKey != "" {
		opts.Manus = manusClient
	}
	if slackPoster != nil {
		opts.SlackEvents = slack.NewEventsHandler(cfg.SlackSigningSecret, proc, slackPoster, slog.Default())
		if cfg.SlackSigningSecret == "" {
			slog.Warn("SLACK_SIGNING_SECRET not set, slack requests are not verified")
		}
	}
	if teamsConnector != nil {
		auth := teams.NewAuthenticator(ctx, cfg.MicrosoftAppID)
		opts.TeamsMessages = teams.NewHandler(auth, teamsConnector, proc, slog.Default())
	}
	srv := api.NewServer(opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := hermesClient.Drain(); err != nil {
			slog.Warn("failed to drain NATS", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("salesbot ready", "port", cfg.Port)

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("salesbot stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
