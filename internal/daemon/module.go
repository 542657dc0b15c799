// Package daemon composes the server process: store, services, bus,
// dispatcher and the HTTP surface, wired through fx with lifecycle
// hooks for startup and graceful shutdown.
package daemon

import (
	"context"

	"github.com/huddle-im/huddle/internal/auth"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/chat"
	"github.com/huddle-im/huddle/internal/config"
	"github.com/huddle-im/huddle/internal/dispatch"
	"github.com/huddle-im/huddle/internal/home"
	"github.com/huddle-im/huddle/internal/httpapi"
	"github.com/huddle-im/huddle/internal/lock"
	"github.com/huddle-im/huddle/internal/logging"
	"github.com/huddle-im/huddle/internal/presence"
	"github.com/huddle-im/huddle/internal/registry"
	"github.com/huddle-im/huddle/internal/social"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRegistry,
			provideDispatcher,
			provideForwarder,
			provideVerifier,
			provideSocialService,
			provideChatService,
			providePresenceService,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(home.DaemonLogPath(), "huddled")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := home.EnsureDirs(); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("dir", home.DataDir()))
	l, err := lock.Acquire(home.DataDir())
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(logger *zap.Logger) (*store.DB, error) {
	dbPath := home.DBPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry() *registry.Registry {
	return registry.New()
}

func provideDispatcher(reg *registry.Registry, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(reg, logger)
}

func provideForwarder(b *bus.Bus, d *dispatch.Dispatcher, logger *zap.Logger) *dispatch.Forwarder {
	return dispatch.NewForwarder(b, d, logger)
}

func provideVerifier(p Params, db *store.DB, logger *zap.Logger) *auth.Verifier {
	return auth.NewVerifier(p.Config.TokenSecret, db, logger)
}

func provideSocialService(db *store.DB, b *bus.Bus, logger *zap.Logger) *social.Service {
	return social.NewService(db, b, nil, logger)
}

func provideChatService(db *store.DB, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, b, logger)
}

func providePresenceService(db *store.DB, b *bus.Bus, logger *zap.Logger) *presence.Service {
	return presence.NewService(db, b, logger)
}

func provideServer(
	verifier *auth.Verifier,
	socialSvc *social.Service,
	chatSvc *chat.Service,
	presenceSvc *presence.Service,
	reg *registry.Registry,
	logger *zap.Logger,
) *httpapi.Server {
	return httpapi.New(verifier, socialSvc, chatSvc, presenceSvc, reg, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	p Params,
	srv *httpapi.Server,
	fwd *dispatch.Forwarder,
	lk *lock.Lock,
	db *store.DB,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Forwarder first, so no push notice is lost while the
			// server comes up.
			fwd.Start(context.Background())

			go func() {
				if err := srv.Listen(p.Config.ListenAddr); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(); err != nil {
				logger.Warn("http server shutdown", zap.Error(err))
			}
			fwd.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("store close", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
