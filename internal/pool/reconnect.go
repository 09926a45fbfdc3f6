package pool

import (
	"context"
	"sync"
	"time"

	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/Shugur-Network/relay-pool/internal/metrics"
	"github.com/Shugur-Network/relay-pool/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReconnectOptions tunes the reconnect supervisor.
type ReconnectOptions struct {
	// ScanInterval is the gap between scans for disconnected relays.
	ScanInterval time.Duration
	// AttemptsPerMinute throttles reconnect attempts across all relays.
	AttemptsPerMinute int
	// Burst allows short bursts above the steady rate.
	Burst int
	// Workers sets how many reconnect attempts may run concurrently.
	Workers int
}

func (o ReconnectOptions) withDefaults() ReconnectOptions {
	if o.ScanInterval == 0 {
		o.ScanInterval = 30 * time.Second
	}
	if o.AttemptsPerMinute == 0 {
		o.AttemptsPerMinute = 12
	}
	if o.Burst == 0 {
		o.Burst = 3
	}
	if o.Workers == 0 {
		o.Workers = 4
	}
	return o
}

// Reconnector is an opt-in supervisor that redials disconnected relays.
// The pool itself never reconnects; a relay stays down until the host
// asks for it or this supervisor runs.
type Reconnector struct {
	pool    *Pool
	limiter *rate.Limiter
	jobs    *workers.WorkerPool
	opts    ReconnectOptions
	log     *zap.Logger

	stopOnce sync.Once
	quit     chan struct{}
}

// NewReconnector builds a supervisor for the pool. Call Start to run it.
func NewReconnector(p *Pool, opts ReconnectOptions) *Reconnector {
	opts = opts.withDefaults()
	return &Reconnector{
		pool:    p,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.AttemptsPerMinute)/60.0), opts.Burst),
		jobs:    workers.NewWorkerPool(opts.Workers, opts.Workers*2),
		opts:    opts,
		log:     logger.New("reconnector"),
		quit:    make(chan struct{}),
	}
}

// Start runs the scan loop until Stop is called or the context ends.
func (rc *Reconnector) Start(ctx context.Context) {
	go rc.loop(ctx)
}

// Stop halts the scan loop and waits for in-flight attempts.
func (rc *Reconnector) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.quit)
		rc.jobs.Stop()
	})
}

func (rc *Reconnector) loop(ctx context.Context) {
	ticker := time.NewTicker(rc.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.quit:
			return
		case <-ticker.C:
			rc.scan(ctx)
		}
	}
}

// scan redials every disconnected relay, throttled by the limiter.
// Relays that are connecting or connected are left alone.
func (rc *Reconnector) scan(ctx context.Context) {
	for _, url := range rc.pool.Relays() {
		status, err := rc.pool.Status(url)
		if err != nil || status != StatusDisconnected {
			continue
		}

		if !rc.limiter.Allow() {
			metrics.ReconnectAttempts.WithLabelValues("throttled").Inc()
			rc.log.Debug("Reconnect throttled", zap.String("relay", url))
			continue
		}

		url := url
		ok := rc.jobs.AddJob(func() {
			if err := rc.pool.ConnectRelay(ctx, url); err != nil {
				metrics.ReconnectAttempts.WithLabelValues("failure").Inc()
				rc.log.Debug("Reconnect failed",
					zap.String("relay", url),
					zap.Error(err))
				return
			}
			metrics.ReconnectAttempts.WithLabelValues("success").Inc()
			rc.log.Info("Relay reconnected", zap.String("relay", url))
		})
		if !ok {
			rc.log.Debug("Reconnect job queue full", zap.String("relay", url))
		}
	}
}
