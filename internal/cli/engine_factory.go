package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/adapters/file"
	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/adapters/redis"
	"github.com/aretw0/dialogic/pkg/adapters/sqlite"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/observability"
	"github.com/aretw0/dialogic/pkg/persistence/middleware"
	"github.com/aretw0/dialogic/pkg/ports"
	"github.com/aretw0/dialogic/pkg/registry"
)

// PluginsFile is picked up from the template directory when --plugins is not set.
const PluginsFile = "plugins.yaml"

// EngineOptions carries the flags shared by every command that builds an engine.
type EngineOptions struct {
	Dir     string
	Debug   bool
	Plugins string
	// Store selects the session store: "memory", "file", "sqlite" or
	// "redis". A "kind:target" form overrides the default location.
	Store    string
	RedisURL string
	Mask     []string
	Metrics  bool
}

// App is an engine together with the resources it owns.
type App struct {
	Engine  *dialogic.Engine
	Store   ports.SessionStore
	Metrics *observability.Metrics
	closers []func() error
}

// Close releases the session store.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewApp initializes an engine with standard CLI conventions.
func NewApp(opts EngineOptions, logger *slog.Logger) (*App, error) {
	app := &App{}

	reg, err := loadRegistry(opts)
	if err != nil {
		return nil, err
	}

	store, closer, err := OpenStore(opts)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	var locker ports.DistributedLocker
	if rs, ok := store.(*redis.Store); ok {
		locker = redis.NewLocker(rs.Client(), redis.DefaultPrefix)
	}
	store, err = WrapStore(store, opts.Mask)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	hooks := []domain.RenderHooks{observability.LoggingHooks(logger)}
	if opts.Metrics {
		m, err := observability.NewMetrics(nil)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Metrics = m
		hooks = append(hooks, m.Hooks())
	}

	engineOpts := []dialogic.Option{
		dialogic.WithLogger(logger),
		dialogic.WithRegistry(reg),
		dialogic.WithSessionStore(store),
		dialogic.WithRenderHooks(observability.Combine(hooks...)),
	}
	if locker != nil {
		engineOpts = append(engineOpts, dialogic.WithLocker(locker))
	}

	engine, err := dialogic.New(opts.Dir, engineOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

func loadRegistry(opts EngineOptions) (*registry.Registry, error) {
	path := opts.Plugins
	if path == "" {
		candidate := filepath.Join(opts.Dir, PluginsFile)
		if _, err := os.Stat(candidate); err != nil {
			return registry.Default(), nil
		}
		path = candidate
	}
	cfg, err := registry.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return registry.FromConfig(cfg)
}

// OpenStore builds the session store named by opts.Store. Relative
// locations are resolved inside opts.Dir.
func OpenStore(opts EngineOptions) (ports.SessionStore, func() error, error) {
	kind, target, _ := strings.Cut(opts.Store, ":")
	if opts.RedisURL != "" && kind == "" {
		kind = "redis"
	}

	switch kind {
	case "", "memory":
		return memory.NewStore(), nil, nil
	case "file":
		if target == "" {
			target = filepath.Join(opts.Dir, ".dialogic", "sessions")
		}
		return file.NewStore(target), nil, nil
	case "sqlite":
		if target == "" {
			target = filepath.Join(opts.Dir, ".dialogic", "sessions.db")
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		s, err := sqlite.NewStore(target)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		url := opts.RedisURL
		if target != "" {
			url = opts.Store
		}
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		s, err := redis.NewFromURL(url)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q (memory, file, sqlite, redis)", kind)
}

// WrapStore applies masking and, when DIALOGIC_KEY is set, encryption.
func WrapStore(store ports.SessionStore, mask []string) (ports.SessionStore, error) {
	var mws []middleware.Middleware
	if len(mask) > 0 {
		m, err := middleware.NewMaskingMiddleware(mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, m)
	}
	if raw := os.Getenv(middleware.KeyEnv); raw != "" {
		key, err := middleware.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", middleware.KeyEnv, err)
		}
		m, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, m)
	}
	return middleware.Chain(store, mws...), nil
}
