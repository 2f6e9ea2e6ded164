// Package poller keeps the status cache current. A Poller probes every
// configured server, applies the outcome to the cache, saves each server's
// favicon once, sleeps for the polling interval and starts over.
//
// Only one iteration runs at a time. Within an iteration every server gets
// its own goroutine; the probe client's semaphore bounds how many of them
// actually hold a connection.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mcstatus/internal/favicon"
	"mcstatus/internal/metrics"
	"mcstatus/internal/probe"
	"mcstatus/internal/status"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 60 * time.Second

// Prober queries one server. *probe.Client satisfies it.
type Prober interface {
	Ping(ctx context.Context, address string, edition probe.Edition) (*probe.Result, error)
}

// Options holds the parameters for the poller.
type Options struct {
	Interval time.Duration

	// Favicons is nil when favicon saving is disabled.
	Favicons *favicon.Store
}

// Poller periodically probes every cache entry and updates its state.
type Poller struct {
	cache  *status.Cache
	prober Prober
	opts   Options
	logger *slog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// New creates a Poller but does not start it; call Run or Start.
func New(cache *status.Cache, prober Prober, opts Options, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics.ServersConfigured.Set(float64(cache.Len()))
	return &Poller{
		cache:  cache,
		prober: prober,
		opts:   opts,
		logger: logger.With("component", "poller"),
		done:   make(chan struct{}),
	}
}

// Run polls immediately, then once per interval, until ctx is done or an
// iteration hits a fatal error. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.PollOnce(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(p.opts.Interval):
		case <-ctx.Done():
			return nil
		}
	}
}

// Start runs the poller in a background goroutine. The result of Run is
// available from Err once Done is closed. Only the first call has any
// effect.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.cancel = cancel
		p.mu.Unlock()

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer close(p.done)

			err := p.Run(ctx)
			if err != nil {
				p.logger.Error("poller stopped", "error", err)
			}
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
		}()
	})
}

// Stop cancels the background goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Done is closed when a started poller has returned.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Err returns the error that ended a started poller.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// PollOnce probes every server concurrently and returns once all of them
// are accounted for. Per-server failures only affect that server's state;
// the returned error is non-nil only for conditions the process cannot
// serve, such as an unsupported edition.
func (p *Poller) PollOnce(ctx context.Context) error {
	start := time.Now()
	entries := p.cache.Entries()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		fatals []error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e *status.Entry) {
			defer wg.Done()
			if err := p.update(ctx, e); err != nil {
				mu.Lock()
				fatals = append(fatals, err)
				mu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	metrics.RecordIteration(time.Since(start))
	p.logger.Debug("poll iteration complete",
		"servers", len(entries),
		"duration", time.Since(start),
	)
	return errors.Join(fatals...)
}

// update probes one server and applies the result. A panic anywhere in it
// is logged and leaves the entry as it was.
func (p *Poller) update(ctx context.Context, e *status.Entry) (fatal error) {
	id := e.Server.ID
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller: panic while updating server",
				"server", id,
				"panic", r,
			)
		}
	}()

	edition, err := probe.ParseEdition(e.Server.Edition)
	if err != nil {
		return fmt.Errorf("poller: server %q: %w", id, err)
	}

	started := time.Now()
	res, err := p.prober.Ping(ctx, e.Address, edition)
	elapsed := time.Since(started)

	if err != nil {
		if errors.Is(err, probe.ErrUnsupportedEdition) {
			metrics.RecordProbe(id, metrics.ResultFatal, elapsed)
			p.logger.Error("poller: server uses an unsupported edition",
				"server", id,
				"edition", edition.String(),
				"error", err,
			)
			return fmt.Errorf("poller: server %q: %w", id, err)
		}
		if ctx.Err() != nil {
			// Shutting down; the failure says nothing about the server.
			return nil
		}
		p.markUnreachable(e, err)
		metrics.RecordProbe(id, metrics.ResultUnreachable, elapsed)
		return nil
	}

	next := status.OfflineState()
	result := metrics.ResultOffline
	if res.Online && res.Players != nil {
		next = status.OnlineState(res.Players.Online, res.Players.Max)
		result = metrics.ResultOnline
	}
	metrics.RecordProbe(id, result, elapsed)
	metrics.RecordLatency(id, res.Latency)

	if prev := e.State(); prev != next {
		e.SetState(next)
		metrics.SetServerState(id, next)
		metrics.RecordStateChange(id, next)
		p.logger.Info("server state changed",
			"server", id,
			"from", prev.String(),
			"to", next.String(),
		)
	}

	p.saveFavicon(e, res.Favicon)
	return nil
}

func (p *Poller) markUnreachable(e *status.Entry, cause error) {
	id := e.Server.ID
	next := status.UnreachableState()
	prev := e.SwapState(next)

	p.logger.Debug("probe failed", "server", id, "error", cause)
	if prev != next {
		metrics.SetServerState(id, next)
		metrics.RecordStateChange(id, next)
		p.logger.Info("server state changed",
			"server", id,
			"from", prev.String(),
			"to", next.String(),
		)
	}
}

// saveFavicon persists data as the server's favicon unless one was already
// saved. A failed save leaves the path absent so the next iteration retries.
func (p *Poller) saveFavicon(e *status.Entry, data string) {
	if p.opts.Favicons == nil || data == "" {
		return
	}
	if _, ok := e.FaviconPath(); ok {
		return
	}

	id := e.Server.ID
	path, err := p.opts.Favicons.Save(id, data)
	metrics.RecordFaviconSave(id, err)
	if err != nil {
		p.logger.Warn("favicon save failed", "server", id, "error", err)
		return
	}
	if e.SetFaviconPathIfAbsent(path) {
		p.logger.Info("favicon saved", "server", id, "path", path)
	}
}
