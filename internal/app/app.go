// Package app wires configuration, the language layer, the record store and
// the coordinator into one runnable unit shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/config"
	"github.com/zhouzirui/z-intake/backend/internal/handler"
	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
	"github.com/zhouzirui/z-intake/backend/internal/service/intake"
	"github.com/zhouzirui/z-intake/backend/internal/service/persist"
)

// Interpreter backends.
const (
	BackendArk      = "ark"
	BackendGemini   = "gemini"
	BackendKeyValue = "keyvalue"
)

// App holds the wired service.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Backend     string
	Store       persist.Store
	Coordinator *intake.Coordinator

	closers []func() error
}

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	store, closeStore, err := NewStore(cfg.Intake, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	interpreter, summarizer, backend := NewLanguageLayer(ctx, cfg, logger)
	a.Backend = backend

	persister := persist.WithRetry(store, persist.RetryConfig{
		Attempts:  cfg.Intake.PersistAttempts,
		BaseDelay: persist.DefaultRetryConfig().BaseDelay,
	}, logger)

	coordCfg := intake.DefaultConfig()
	coordCfg.SessionTTL = cfg.Intake.SessionTTL
	coordCfg.InterpretTimeout = cfg.Intake.InterpretTimeout
	coordCfg.InterpretAttempts = cfg.Intake.InterpretAttempts

	a.Coordinator = intake.New(interpreter, persister, coordCfg, logger, intake.WithSummarizer(summarizer))

	logger.Info("intake service ready",
		zap.String("interpreter", backend),
		zap.String("store", cfg.Intake.Store),
		zap.Duration("session_ttl", cfg.Intake.SessionTTL),
	)
	return a, nil
}

// Router returns the HTTP handler for the API server.
func (a *App) Router() http.Handler {
	return handler.NewRouter(a.Coordinator, a.Config.Server.AllowedOrigins, a.Logger)
}

// Close releases the store.
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewStore opens the configured record store. The returned close function
// may be nil.
func NewStore(cfg config.IntakeConfig, logger *zap.Logger) (persist.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := persist.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case config.StoreFile, "":
		store, err := persist.NewFileStore(cfg.RecordDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// NewLanguageLayer picks the interpreter: Ark when configured, then Gemini,
// then the offline key-value interpreter. Model failures at start-up fall
// through to the next backend.
func NewLanguageLayer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ai.Interpreter, ai.Summarizer, string) {
	if cfg.AI.Enabled() {
		interpreter, summarizer, err := newArkLayer(ctx, cfg.AI, logger)
		if err == nil {
			return interpreter, summarizer, BackendArk
		}
		logger.Warn("failed to initialize Ark interpreter, trying next backend", zap.Error(err))
	}

	if cfg.Gemini.Enabled() {
		gemini, err := ai.NewGeminiInterpreter(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err == nil {
			var summarizer ai.Summarizer = ai.TemplateSummarizer{}
			if cfg.AI.Summaries {
				summarizer = gemini
			}
			return gemini, summarizer, BackendGemini
		}
		logger.Warn("failed to initialize Gemini interpreter, falling back to key-value input", zap.Error(err))
	}

	logger.Info("no language model configured, using key-value interpreter")
	return ai.KeyValueInterpreter{}, ai.TemplateSummarizer{}, BackendKeyValue
}

func newArkLayer(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (ai.Interpreter, ai.Summarizer, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, nil, err
	}
	interpreter, err := ai.NewChainInterpreter(ctx, chatModel, logger)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Summaries {
		return interpreter, ai.TemplateSummarizer{}, nil
	}
	summarizer, err := ai.NewChainSummarizer(ctx, chatModel, logger)
	if err != nil {
		logger.Warn("failed to initialize summary chain, using template summaries", zap.Error(err))
		return interpreter, ai.TemplateSummarizer{}, nil
	}
	return interpreter, summarizer, nil
}
