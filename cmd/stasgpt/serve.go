package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/st4s1k/stas-gpt/internal/bot"
	"github.com/st4s1k/stas-gpt/internal/chat"
	"github.com/st4s1k/stas-gpt/internal/config"
	"github.com/st4s1k/stas-gpt/internal/db"
	"github.com/st4s1k/stas-gpt/internal/handlers"
	"github.com/st4s1k/stas-gpt/internal/history"
	"github.com/st4s1k/stas-gpt/internal/logger"
	"github.com/st4s1k/stas-gpt/internal/server"
	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideStore,
			provideVKClient,
			provideBotIdentity,
			provideHistoryResolver,
			provideChatClient,
			provideExtractor,
			provideBotService,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideCallbackHandler),
			fx.Annotate(provideServer, fx.ParamTags("", "", `group:"server_handlers"`)),
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, err
	}
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideStore(log *slog.Logger, pool *pgxpool.Pool) store.KV {
	return store.NewPostgres(log, pool)
}

func provideVKClient(log *slog.Logger, cfg config.Config) (*vk.Client, error) {
	return vk.NewClient(log, cfg.VK)
}

func provideBotIdentity(log *slog.Logger, cfg config.Config, client *vk.Client) (vk.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	identity, err := vk.ResolveIdentity(ctx, log, client, cfg.VK.GroupID)
	if err != nil {
		return vk.Identity{}, fmt.Errorf("resolve bot identity: %w", err)
	}
	return identity, nil
}

func provideHistoryResolver(log *slog.Logger, cfg config.Config, client *vk.Client) *history.Resolver {
	return history.NewResolver(log, client, cfg.VK.HistoryLimit)
}

func provideChatClient(log *slog.Logger, cfg config.Config) *chat.Client {
	return chat.NewClient(log, cfg.OpenAI)
}

func provideExtractor(cfg config.Config) chat.Extractor {
	return chat.Extractor{
		Marker:       cfg.OpenAI.ResponseMarker,
		ErrorMessage: cfg.OpenAI.ErrorMessage,
	}
}

func provideBotService(
	log *slog.Logger,
	cfg config.Config,
	client *vk.Client,
	resolver *history.Resolver,
	chatClient *chat.Client,
	extractor chat.Extractor,
	kv store.KV,
	identity vk.Identity,
) *bot.Service {
	return bot.NewService(log, client, resolver, chatClient, extractor, kv, identity, cfg.VK.Mention)
}

func provideCallbackHandler(log *slog.Logger, cfg config.Config, botService *bot.Service) *handlers.CallbackHandler {
	return handlers.NewCallbackHandler(log, botService, cfg.VK.ConfirmationCode)
}

func provideServer(cfg config.Config, log *slog.Logger, serverHandlers []server.Handler) *server.Server {
	return server.New(cfg.Server.Addr, log, serverHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
