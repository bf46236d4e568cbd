package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/AgentOS/shell/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/shell/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/shell/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/plugin"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/relay"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/modules"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and the wired core
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	clock     clockwork.Clock
	metrics   *monitoring.Metrics
	relay     *relay.Relay
	registry  *registry.Manager
	persister *registry.Persister
	apps      *app.Manager
	plugins   *plugin.Manager
	system    *modules.System
	bridge    *ws.Bridge
	router    *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithLogger replaces the logger built from config
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the time source shared by every component
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New wires the core in dependency order: relay, registry, orchestrator,
// plugins, builtins, then the HTTP surface. Nothing is started.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{config: cfg, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, err
		}
		s.logger = logger
	}
	logger := s.logger

	logger.Info("Initializing shell",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("registry", cfg.Registry.Path),
		zap.String("plugins", cfg.Plugins.Dir),
	)

	s.metrics = monitoring.NewMetrics()

	s.relay = relay.New(
		relay.WithLogger(logger.Component("relay")),
		relay.WithClock(s.clock),
		relay.WithMetrics(s.metrics),
	)

	s.registry = registry.NewManager(
		registry.NewFileStore(cfg.Registry.Path, registry.WithStoreClock(s.clock)),
		registry.WithLogger(logger.Component("registry")),
		registry.WithClock(s.clock),
		registry.WithMetrics(s.metrics),
	)
	s.persister = registry.NewPersister(s.registry, cfg.Registry.PersistInterval, s.clock, logger.Component("persister"))

	s.apps = app.NewManager(s.relay, s.registry,
		app.WithLogger(logger.Component("apps")),
		app.WithClock(s.clock),
		app.WithMetrics(s.metrics),
	)
	s.plugins = plugin.NewManager(s.apps, s.registry, s.relay,
		plugin.WithLogger(logger.Component("plugins")),
		plugin.WithClock(s.clock),
		plugin.WithMetrics(s.metrics),
	)

	system, err := modules.Install(s.apps, s.plugins, s.relay, s.clock, logger.Component("modules"))
	if err != nil {
		return nil, err
	}
	s.system = system

	if cfg.Registry.SeedDir != "" {
		result, err := registry.NewSeeder(s.registry, cfg.Registry.SeedDir, logger.Component("seeder")).SeedApps()
		if err != nil {
			logger.Warn("App seeding incomplete", zap.Error(err))
		}
		logger.Info("Apps seeded",
			zap.Int("loaded", result.Loaded),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed))
	}

	if cfg.Plugins.Discover {
		n, err := s.plugins.Discover(cfg.Plugins.Dir)
		if err != nil {
			logger.Warn("Plugin discovery incomplete", zap.Error(err))
		}
		logger.Info("Plugins discovered", zap.Int("loaded", n))
	}

	s.bridge = ws.NewBridge(s.relay, logger.Component("stream"), s.metrics)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(s.logger.Component("http")))
	router.Use(monitoring.Middleware(s.metrics))
	cors := middleware.DefaultCORSConfig()
	if len(s.config.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = s.config.Server.AllowedOrigins
	}
	router.Use(middleware.CORS(cors))

	if rl := s.config.RateLimit; rl.Enabled {
		limiter := middleware.NewLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		}, s.clock)
		router.Use(limiter.Handler())
	}

	handlers := apihttp.NewHandlers(s.relay, s.registry, s.apps, s.plugins, s.logger.Component("api"))
	handlers.Register(router)

	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/stream", s.bridge.HandleConnection)
	return router
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Relay returns the signal relay
func (s *Server) Relay() *relay.Relay {
	return s.relay
}

// Apps returns the orchestrator
func (s *Server) Apps() *app.Manager {
	return s.apps
}

// Plugins returns the plugin manager
func (s *Server) Plugins() *plugin.Manager {
	return s.plugins
}

// Registry returns the app registry
func (s *Server) Registry() *registry.Manager {
	return s.registry
}

// Boot starts autostart apps and plugins when enabled. Failures are
// logged; the server keeps running with whatever did start.
func (s *Server) Boot() {
	if !s.config.Boot.AutoStart {
		return
	}
	if err := s.apps.StartAutoStartApps(); err != nil {
		s.logger.Warn("Some autostart apps failed", zap.Error(err))
	}
	if err := s.plugins.StartAutoStart(); err != nil {
		s.logger.Warn("Some autostart plugins failed", zap.Error(err))
	}
	s.logger.Info("Boot complete", zap.Strings("running", s.apps.RunningApps()))
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve boots the core and serves on ln until ctx is done, then shuts
// down: HTTP first, then stream connections, then every module, and the
// registry is flushed last.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Boot()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := s.persister.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		s.bridge.Close()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close stops every running module and flushes the registry
func (s *Server) Close() {
	if err := s.apps.StopAll(); err != nil {
		s.logger.Warn("Some modules failed to stop", zap.Error(err))
	}
	if err := s.registry.Flush(); err != nil {
		s.logger.Error("Registry flush failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}
