package balancer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/litch/lndbalancer/bdb"
	"github.com/litch/lndbalancer/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Node is the part of the lightning node the balancer talks to
type Node interface {
	Channels(ctx context.Context, activeOnly bool) ([]*bdb.Channel, error)
	UpdateChannelPolicy(ctx context.Context, update *bdb.PolicyUpdate) error
	Close() error
}

// ConnectFunc opens a connection to the node described by source
type ConnectFunc func(ctx context.Context, source *config.Source) (Node, error)

// ConfigSource hands out the config snapshot that is current at call time
type ConfigSource interface {
	Current() *config.AppConfig
}

type Balancer struct {
	logger  logrus.FieldLogger
	connect ConnectFunc
	store   ConfigSource
	metrics *Metrics
	after   func(time.Duration) <-chan time.Time

	done     chan struct{}
	stopOnce sync.Once

	reportMu   sync.RWMutex
	lastReport *TickReport
}

type Config struct {
	Logger  logrus.FieldLogger
	Connect ConnectFunc
	Store   ConfigSource
	Metrics *Metrics
	// After creates the timer between ticks, time.After if nil
	After func(time.Duration) <-chan time.Time
}

func NewBalancer(config *Config) (*Balancer, error) {
	if config.Connect == nil {
		return nil, errors.New("Connect is required")
	}
	if config.Store == nil {
		return nil, errors.New("Store is required")
	}

	balancer := &Balancer{
		connect: config.Connect,
		store:   config.Store,
		metrics: config.Metrics,
		after:   config.After,
		done:    make(chan struct{}),
	}

	if config.Logger != nil {
		balancer.logger = config.Logger
	} else {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		balancer.logger = logger
	}

	if balancer.metrics == nil {
		balancer.metrics = NewMetrics(nil)
	}

	if balancer.after == nil {
		balancer.after = time.After
	}

	return balancer, nil
}

// Run ticks right away and then once per update interval until ctx is
// cancelled or Stop is called. The first tick does not wait an interval, so
// policies are in place as soon as the daemon starts. Failed ticks are logged
// and retried on the next interval.
func (b *Balancer) Run(ctx context.Context) error {
	b.logger.Info("Starting balancer...")

	for {
		if _, err := b.Tick(ctx); err != nil {
			b.logger.WithError(err).Error("Tick failed")
		}

		interval := b.store.Current().UpdateInterval()
		b.logger.Debugf("Next tick in %v", interval)

		select {
		case <-ctx.Done():
			b.logger.Info("Stopping balancer...")
			return nil
		case <-b.done:
			b.logger.Info("Stopping balancer...")
			return nil
		case <-b.after(interval):
		}
	}
}

func (b *Balancer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}

// Tick re-evaluates and applies the policy of every active channel once. All
// channels of a tick are evaluated against the same config snapshot.
func (b *Balancer) Tick(ctx context.Context) (*TickReport, error) {
	cfg := b.store.Current()
	report := &TickReport{Started: time.Now()}

	defer func() {
		report.Duration = time.Since(report.Started)
		b.metrics.observeTick(report)
		b.setLastReport(report)
	}()

	b.logger.Info("Starting tick")

	if !cfg.DynamicFees {
		report.Skipped = true
		b.logger.Info("Dynamic fees disabled, leaving channel policies untouched")
		return report, nil
	}

	node, err := b.connectFirstSource(ctx, cfg)
	if err != nil {
		report.Error = err.Error()
		b.metrics.tickFailed("connect")
		return report, err
	}
	defer func() {
		if err := node.Close(); err != nil {
			b.logger.WithError(err).Warn("Could not close node connection")
		}
	}()

	listCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeoutDuration())
	channels, err := node.Channels(listCtx, true)
	cancel()
	if err != nil {
		err = bdb.ChannelFetchError{Err: err}
		report.Error = err.Error()
		b.metrics.tickFailed("list_channels")
		return report, err
	}

	b.logger.Infof("Found %v active channels", len(channels))

	report.Results = b.reconcile(ctx, cfg, node, channels)
	for _, result := range report.Results {
		if result.Err != nil {
			report.Failed++
		} else {
			report.Updated++
		}
	}

	b.logger.WithFields(logrus.Fields{
		"channels": len(channels),
		"updated":  report.Updated,
		"failed":   report.Failed,
		"duration": time.Since(report.Started),
	}).Info("Tick complete")

	return report, nil
}

func (b *Balancer) connectFirstSource(ctx context.Context, cfg *config.AppConfig) (Node, error) {
	if len(cfg.Sources) == 0 {
		return nil, bdb.ConnectionError{Err: errors.New("no node source configured")}
	}
	source := cfg.Sources[0]

	connectCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeoutDuration())
	defer cancel()

	node, err := b.connect(connectCtx, &source)
	if err != nil {
		return nil, bdb.ConnectionError{Endpoint: source.Endpoint, Err: err}
	}

	return node, nil
}

// reconcile fans out one task per channel and waits for all of them. A
// failing channel never affects its siblings.
func (b *Balancer) reconcile(ctx context.Context, cfg *config.AppConfig, node Node,
	channels []*bdb.Channel) []ChannelResult {

	d := newDispatcher(node, cfg, b.logger, b.metrics)
	results := make([]ChannelResult, len(channels))

	limit := cfg.MaxConcurrentUpdates
	if limit < 1 {
		limit = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, channel := range channels {
		i, channel := i, channel
		g.Go(func() error {
			results[i] = d.dispatch(ctx, channel)
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (b *Balancer) setLastReport(report *TickReport) {
	b.reportMu.Lock()
	defer b.reportMu.Unlock()
	b.lastReport = report
}

// LastReport returns the report of the most recent tick, nil before the first
func (b *Balancer) LastReport() *TickReport {
	b.reportMu.RLock()
	defer b.reportMu.RUnlock()
	return b.lastReport
}
