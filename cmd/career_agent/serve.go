package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/analysis"
	"github.com/ujjwalparashar30/github-assisstance/internal/assessment"
	"github.com/ujjwalparashar30/github-assisstance/internal/config"
	"github.com/ujjwalparashar30/github-assisstance/internal/db"
	"github.com/ujjwalparashar30/github-assisstance/internal/github"
	"github.com/ujjwalparashar30/github-assisstance/internal/ingestion"
	"github.com/ujjwalparashar30/github-assisstance/internal/llm"
	"github.com/ujjwalparashar30/github-assisstance/internal/server"
	"github.com/ujjwalparashar30/github-assisstance/internal/server/ratelimit"
	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the career assessment endpoints under /api/profile.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.Session.RequireSecret(); err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("an LLM API key is required (GEMINI_API_KEY, OPENAI_API_KEY or LLM_API_KEY)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	model, err := llm.NewClient(ctx, llmConfig(cfg.LLM), cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = model.Close() }()

	orch := assessment.New(
		store,
		ingestion.NewExtractor(cfg.Upload.Dir, cfg.Upload.MaxBytes, log),
		analysis.NewService(model, analysis.Options{MaxConcurrent: cfg.LLM.MaxConcurrent, Logger: log}),
		newGitHubClient(cfg.GitHub, log),
		assessment.Options{
			MaxUploadBytes: cfg.Upload.MaxBytes,
			CallTimeout:    cfg.LLM.Timeout,
			Logger:         log,
		},
	)

	srv, err := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigin:   cfg.Server.AllowedOrigin,
		SessionSecret:   cfg.Session.Secret,
		SessionTTL:      cfg.Session.TTL,
		CookieName:      cfg.Session.CookieName,
		SecureCookie:    cfg.Session.SecureCookie,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
		RateLimit:       ratelimit.NewConfig(cfg.RateLimit.Enabled, cfg.RateLimit.DefaultLimit, cfg.RateLimit.Window),
	}, orch, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("configuration loaded",
		zap.String("session_store", cfg.Session.Store),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model_standard", model.Model(llm.TierStandard)),
		zap.String("llm_model_advanced", model.Model(llm.TierAdvanced)),
		zap.Bool("github_token", cfg.GitHub.Token != ""))

	return srv.Start(ctx)
}

// openStore connects the configured session store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		store := session.NewRedisStore(session.NewRedisClient(session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.KeyPrefix, cfg.Session.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("using redis session store", zap.String("addr", cfg.Redis.Addr))
		return store, func() { _ = store.Close() }, nil

	case config.StorePostgres:
		database, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("using postgres session store")
		return db.NewSessionStore(database, cfg.Session.TTL), database.Close, nil

	default:
		log.Warn("using in-memory session store; sessions are lost on restart")
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}
}

// llmConfig applies the configured model and endpoint to the provider defaults.
func llmConfig(c config.LLMConfig) *llm.Config {
	out := llm.DefaultConfigFor(llm.Provider(c.Provider))
	if c.Model != "" {
		out = out.WithModel(llm.TierStandard, c.Model).WithModel(llm.TierAdvanced, c.Model)
	}
	out.BaseURL = c.BaseURL
	return out
}

func newGitHubClient(c config.GitHubConfig, log *zap.Logger) *github.Client {
	return github.NewClient(github.Config{
		BaseURL: c.BaseURL,
		Token:   c.Token,
		Timeout: c.Timeout,
		Logger:  log,
	})
}
