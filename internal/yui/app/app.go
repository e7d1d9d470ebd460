// Package app provides the main Yui application
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdobrica/yui/common/trace"
	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/backend/generator"
	"github.com/bdobrica/yui/internal/yui/backend/pattern"
	"github.com/bdobrica/yui/internal/yui/backend/remote"
	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/commands"
	"github.com/bdobrica/yui/internal/yui/config"
	"github.com/bdobrica/yui/internal/yui/dispatch"
	"github.com/bdobrica/yui/internal/yui/observability"
	"github.com/bdobrica/yui/internal/yui/session"
	"github.com/bdobrica/yui/internal/yui/store"
)

// Transport is a chat platform connection.
type Transport interface {
	chat.Sender
	Identity(ctx context.Context) (chat.Identity, error)
	Start(ctx context.Context, handler chat.Handler) error
	Stop()
}

// finite is implemented by transports whose input can run out (the console).
type finite interface {
	Done() <-chan struct{}
}

// Option customises an App.
type Option func(*App)

// WithConcurrentTurns handles every inbound message on its own goroutine so
// slow backends do not hold up other users.
func WithConcurrentTurns() Option {
	return func(a *App) { a.concurrent = true }
}

// WithStore hands the app a store it closes on Stop.
func WithStore(st *store.Store) Option {
	return func(a *App) { a.store = st }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// App is the running bot.
type App struct {
	config     *config.Config
	transport  Transport
	identity   chat.Identity
	logger     *slog.Logger
	concurrent bool

	store    *store.Store
	pattern  *pattern.Responder
	sessions *session.Store
	router   *dispatch.Router
	commands *commands.Router

	healthServer *HealthServer

	runCtx   context.Context
	turns    sync.WaitGroup
	stopOnce sync.Once
}

// New builds every backend, trains the local ones and wires them to
// transport. It fetches the bot identity from the transport.
func New(ctx context.Context, cfg *config.Config, transport Transport, opts ...Option) (*App, error) {
	a := &App{
		config:    cfg,
		transport: transport,
		logger:    slog.Default(),
		sessions:  session.NewStore(),
		runCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}

	corpus, err := pattern.LoadCorpus(cfg.PatternCorpus)
	if err != nil {
		return nil, err
	}
	a.pattern, err = pattern.Open(ctx, corpus, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to train pattern responder: %w", err)
	}

	local, err := a.newGenerator(ctx)
	if err != nil {
		a.pattern.Close()
		return nil, err
	}

	remoteCfg := func(key, baseURL, model string) remote.Config {
		return remote.Config{
			APIKey:      key,
			BaseURL:     baseURL,
			Model:       model,
			MaxTokens:   cfg.RemoteMaxTokens,
			Timeout:     cfg.RemoteTimeout,
			MaxAttempts: cfg.RemoteMaxAttempts,
		}
	}
	backends := map[session.Mode]backend.Responder{
		session.ModeLocal:      local,
		session.ModeOpenRouter: remote.NewOpenRouterResponder(remoteCfg(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel), a.logger),
		session.ModeGroq:       remote.NewGroqResponder(remoteCfg(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel), a.logger),
	}

	a.identity, err = transport.Identity(ctx)
	if err != nil {
		a.pattern.Close()
		return nil, fmt.Errorf("failed to resolve bot identity: %w", err)
	}

	a.router, err = dispatch.New(dispatch.Config{
		BotID:            a.identity.UserID,
		AddressingTokens: append([]string{a.identity.UserID}, a.identity.Names...),
		MaxMessageLength: cfg.MaxMessageLength,
		RateLimit:        cfg.RateLimit,
	}, a.pattern, backends, a.sessions, transport, a.logger)
	if err != nil {
		a.pattern.Close()
		return nil, err
	}

	a.commands = commands.NewRouter(commands.DefaultPrefix)
	commands.NewHandlers(a.sessions).Register(a.commands)

	if cfg.HTTPAddr != "" {
		a.healthServer = NewHealthServer(cfg.HTTPAddr, a.sessions, a.logger)
	}

	return a, nil
}

// newGenerator trains the Markov model on the pattern corpus dialogues plus
// the optional extra corpus file.
func (a *App) newGenerator(ctx context.Context) (*generator.Generator, error) {
	cfg := a.config
	tok, err := generator.NewTokenizer(cfg.GeneratorEncoding)
	if err != nil {
		return nil, err
	}

	dialogues, err := a.pattern.Store().Conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read training dialogues: %w", err)
	}
	if cfg.GeneratorCorpus != "" {
		extra, err := generator.LoadDialogues(cfg.GeneratorCorpus)
		if err != nil {
			return nil, err
		}
		dialogues = append(dialogues, extra...)
	}

	model := generator.NewMarkov(uint64(cfg.GeneratorSeed))
	if err := model.Train(tok, dialogues); err != nil {
		return nil, fmt.Errorf("failed to train local model: %w", err)
	}
	a.logger.Info("local model trained", "dialogues", len(dialogues), "tokens", model.Size())

	return generator.New(tok, model, generator.Config{
		Window:       cfg.GeneratorWindow,
		MaxLength:    cfg.GeneratorMaxLength,
		MinNewTokens: cfg.GeneratorMinNewTokens,
		TopK:         cfg.GeneratorTopK,
		TopP:         cfg.GeneratorTopP,
	}, a.logger), nil
}

// Run starts the transport and blocks until ctx is cancelled or the
// transport's input ends.
func (a *App) Run(ctx context.Context) error {
	a.runCtx = ctx

	// Start health/status HTTP server if configured.
	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			a.logger.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	if err := a.transport.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	a.logger.Info("Yui is running", "bot", a.identity.UserID)

	var done <-chan struct{}
	if f, ok := a.transport.(finite); ok {
		done = f.Done()
	}
	select {
	case <-ctx.Done():
	case <-done:
	}

	a.logger.Info("shutting down")
	return nil
}

// Stop stops the transport, waits for running turns and releases resources.
func (a *App) Stop() {
	a.stopOnce.Do(a.stop)
}

func (a *App) stop() {
	a.transport.Stop()
	a.turns.Wait()

	if a.healthServer != nil {
		a.healthServer.Stop()
	}
	if err := a.pattern.Close(); err != nil {
		a.logger.Warn("failed to close pattern store", "err", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", "err", err)
		}
	}
}

// Sessions exposes the session store.
func (a *App) Sessions() *session.Store { return a.sessions }

// handleMessage is the transport callback.
func (a *App) handleMessage(_ context.Context, msg chat.Message) {
	if !a.concurrent {
		a.handle(a.runCtx, msg)
		return
	}
	a.turns.Add(1)
	go func() {
		defer a.turns.Done()
		a.handle(a.runCtx, msg)
	}()
}

// handle runs one inbound message: commands first, then the mention router.
func (a *App) handle(ctx context.Context, msg chat.Message) {
	if msg.Author == a.identity.UserID {
		return
	}
	ctx, _ = trace.New(ctx)
	logger := observability.FromLogger(ctx, a.logger)

	response, err := a.commands.Route(ctx, msg.Content, msg)
	switch {
	case errors.Is(err, commands.ErrNotACommand):
		if err := a.router.HandleMention(ctx, msg); err != nil {
			logger.Error("failed to deliver reply", "channel", msg.Channel, "err", err)
		}
		return
	case err != nil:
		response = fmt.Sprintf("❌ Error: %s", err)
	}

	if response == "" {
		return
	}
	logger.Debug("command handled", "user", msg.Author)
	if err := a.transport.SendText(ctx, msg.Channel, response); err != nil {
		logger.Error("failed to send response", "channel", msg.Channel, "err", err)
	}
}
