package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Shugur-Network/relay-pool/internal/config"
	"github.com/Shugur-Network/relay-pool/internal/identity"
	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/Shugur-Network/relay-pool/internal/pool"
	"github.com/Shugur-Network/relay-pool/internal/transport"
	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App ties together the pool, its supervisor and the metrics endpoint.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config      *config.Config
	keys        *identity.Keys
	pool        *pool.Pool
	reconnector *pool.Reconnector

	metricsServer *http.Server
	startTime     time.Time
}

// New assembles the application from configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithCancel(ctx)

	keys, err := identity.GetOrCreate()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed loading identity: %w", err)
	}
	logger.Info("Client identity loaded", zap.String("public_key", keys.PublicKey))

	dialer := &transport.WebSocketDialer{
		WriteTimeout:    cfg.Pool.WriteTimeout,
		FrameBufferSize: cfg.Pool.EventBufferSize,
	}

	p := pool.New(dialer, pool.Options{
		KeepAliveInterval:      cfg.Pool.KeepAliveInterval,
		CommandBufferSize:      cfg.Pool.CommandBufferSize,
		EventBufferSize:        cfg.Pool.EventBufferSize,
		NotificationBufferSize: cfg.Pool.NotificationBufferSize,
		DedupEstimatedEvents:   cfg.Pool.DedupEstimatedEvents,
		DedupFalsePositiveRate: cfg.Pool.DedupFalsePositiveRate,
	})

	for _, u := range cfg.Pool.Relays {
		if err := p.AddRelay(u); err != nil {
			logger.Warn("Skipping configured relay", zap.String("relay", u), zap.Error(err))
		}
	}

	app := &App{
		ctx:       appCtx,
		cancel:    cancel,
		config:    cfg,
		keys:      keys,
		pool:      p,
		startTime: time.Now(),
	}

	if cfg.Pool.Reconnect.Enabled {
		app.reconnector = pool.NewReconnector(p, pool.ReconnectOptions{
			ScanInterval:      cfg.Pool.Reconnect.ScanInterval,
			AttemptsPerMinute: cfg.Pool.Reconnect.AttemptsPerMinute,
			Burst:             cfg.Pool.Reconnect.Burst,
			Workers:           cfg.Pool.Reconnect.Workers,
		})
	}

	return app, nil
}

// Pool exposes the relay pool.
func (a *App) Pool() *pool.Pool {
	return a.pool
}

// Keys exposes the client signing identity.
func (a *App) Keys() *identity.Keys {
	return a.keys
}

// Start connects the pool and launches the metrics endpoint, the
// reconnect supervisor and the notification drain loop.
func (a *App) Start(ctx context.Context) error {
	if a.config.Metrics.Enabled {
		a.startMetricsServer()
	}

	a.pool.ConnectAll(ctx)

	if kinds := a.config.Pool.SubscribeKinds; len(kinds) > 0 {
		a.pool.StartSubscription(nostr.Filters{{Kinds: kinds}})
		logger.Info("Subscription started", zap.Ints("kinds", kinds))
	}

	if a.reconnector != nil {
		a.reconnector.Start(a.ctx)
		logger.Info("Reconnect supervisor started")
	}

	go a.drainNotifications()

	logger.Debug("Application started")
	return nil
}

// Shutdown stops the supervisor, closes the pool and tears down the
// metrics endpoint.
func (a *App) Shutdown() {
	logger.Info("Initiating graceful shutdown...")
	shutdownTimeout := 30 * time.Second

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.reconnector != nil {
		logger.Debug("Stopping reconnect supervisor...")
		a.reconnector.Stop()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.pool.Close()
	}()

	select {
	case <-done:
		logger.Debug("Pool closed")
	case <-shutdownCtx.Done():
		logger.Warn("Pool shutdown timed out", zap.Duration("timeout", shutdownTimeout))
	}

	if a.metricsServer != nil {
		logger.Debug("Stopping metrics server...")
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	logger.Info("Application shutdown completed",
		zap.Duration("uptime", time.Since(a.startTime)))
}

// startMetricsServer serves Prometheus metrics on the configured port.
func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.Int("port", a.config.Metrics.Port))
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
}

// drainNotifications consumes the pool's notification stream until it
// closes, logging what arrives.
func (a *App) drainNotifications() {
	for n := range a.pool.Notifications() {
		switch n := n.(type) {
		case pool.EventNotification:
			logger.Info("Event received",
				zap.String("relay", n.RelayURL),
				zap.String("event_id", n.Event.ID),
				zap.String("author", n.Event.PubKey),
				zap.Int("kind", n.Event.Kind))
		case pool.DisconnectNotification:
			logger.Warn("Relay disconnected", zap.String("relay", n.RelayURL))
		}
	}
	logger.Debug("Notification stream closed")
}
