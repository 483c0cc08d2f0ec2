package daemon

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsefit/pulse/internal/api"
	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/health"
	"github.com/pulsefit/pulse/internal/infra/clock"
	"github.com/pulsefit/pulse/internal/infra/healing"
	"github.com/pulsefit/pulse/internal/infra/redisstore"
	"github.com/pulsefit/pulse/internal/infra/sqlite"
	"github.com/pulsefit/pulse/internal/logger"
	"github.com/pulsefit/pulse/internal/mcp"
)

// Store is what the daemon needs from a persistence backend.
type Store = healing.Backend

// Daemon is the pulse runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Log     *logger.Logger
	Store   Store
	Tracker *engagement.Tracker
	Health  *health.Checker
	Server  *api.Server
	MCP     *mcp.Transport
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon from the config file.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration and
// rehydrates engagement state.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	store := healing.Guard(backend, healing.NewBreaker("store", healing.DefaultBreakerConfig(), clock.System{}))

	catalog := engagement.DefaultCatalog()
	tracker := engagement.NewTracker(engagement.TrackerOptions{
		UserKey:          cfg.User.Key,
		Store:            store,
		Clock:            clock.System{},
		Catalog:          catalog,
		StreakMilestones: cfg.Engagement.StreakMilestones,
		Nudge: engagement.NudgeConfig{
			CompletionWindowDays: cfg.Engagement.CompletionWindowDays,
			TrendWindowDays:      cfg.Engagement.TrendWindowDays,
			HistoryLimit:         cfg.Engagement.NudgeHistory,
		},
		Rand:   seededRand(cfg.Engagement.RandomSeed),
		Logger: log.With("component", "tracker"),
	})
	tracker.Load(ctx)

	dataDir := ""
	if cfg.Store.Backend == BackendSQLite {
		dataDir = cfg.Store.Dir
	}
	checker := health.NewChecker(store, tracker, dataDir)

	mcpTransport := mcp.NewTransport(mcp.NewGateway(tracker, log))

	srv := api.NewServer(tracker, log)
	srv.SetHealth(checker)
	srv.SetMCPHandler(mcpTransport)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	log.Info("pulse initialized",
		"backend", cfg.Store.Backend,
		"user", cfg.User.Key,
		"achievements", catalog.Len())

	return &Daemon{
		Config:  cfg,
		Log:     log,
		Store:   store,
		Tracker: tracker,
		Health:  checker,
		Server:  srv,
		MCP:     mcpTransport,
	}, nil
}

// OpenStore opens the configured persistence backend.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		db, err := sqlite.Open(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

// seededRand returns a deterministic source for a non-zero seed, or nil
// to let the nudge engine seed itself.
func seededRand(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Closed once the server has drained and state is flushed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		d.shutdown(httpServer)
	}()

	d.Log.Info("pulse serving", "addr", "http://"+addr)
	if d.Config.Telemetry.Prometheus {
		d.Log.Info("metrics enabled", "url", "http://"+addr+"/metrics")
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}

// shutdown drains srv and writes the final state.
func (d *Daemon) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if err := d.Tracker.Flush(ctx); err != nil {
		d.Log.Error("final flush failed", "error", err)
		return
	}
	d.Log.Info("state flushed")
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.Log != nil {
		d.Log.Sync()
	}
}
