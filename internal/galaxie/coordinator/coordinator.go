package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/store"
)

// Polling intervals.
const (
	FastInterval    = 15 * time.Second
	SlowInterval    = 15 * time.Minute
	BackendInterval = time.Hour
	WeatherInterval = 10 * time.Minute
)

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Fetcher is the upstream feed client.
type Fetcher interface {
	Fetch(ctx context.Context, kind feed.Kind) (feed.Payload, error)
	FetchWeather(ctx context.Context, runID string) (feed.Record, error)
	Close()
}

// Metrics receives poll telemetry. Implementations must not block.
type Metrics interface {
	RecordFetch(feed, outcome string, duration time.Duration)
	RecordLiveRuns(count int)
}

// Streamer follows the push stream of a single live run.
type Streamer interface {
	Follow(runID string)
	Stop()
	Connected() bool
}

// StreamHandlers are the callbacks a Streamer delivers stream data to.
type StreamHandlers struct {
	OnRunDetail func(runID string, detail feed.Record)
	OnVehicles  func(runID string, vehicles []model.Vehicle)
	OnState     func(runID string, connected bool)
}

// Subscriber receives every published snapshot. The snapshot must be
// treated as read-only.
type Subscriber func(snap *model.Snapshot) error

// Options configures a Coordinator.
type Options struct {
	// Fetcher is required.
	Fetcher Fetcher

	// Store holds the last successful payloads. A new Store is used if nil.
	Store *store.Store

	// NewStreamer builds the push streamer. Streaming is disabled if nil.
	NewStreamer func(StreamHandlers) (Streamer, error)

	// Stream enables following the first live run when the backend
	// advertises websockets.
	Stream bool

	Metrics Metrics
	Logger  Logger
}

type subscriber struct {
	id int
	fn Subscriber
}

// Coordinator owns the polling loops and the merged snapshot.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Coordinator struct {
	fetcher       Fetcher
	store         *store.Store
	streamer      Streamer
	streamEnabled bool
	metrics       Metrics
	logger        Logger
	now           func() time.Time

	fastInterval    time.Duration
	slowInterval    time.Duration
	backendInterval time.Duration
	weatherInterval time.Duration

	snap atomic.Pointer[model.Snapshot]

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub int

	fastTrigger chan struct{}
	slowTrigger chan struct{}

	// Owned by the slow loop.
	lastBackend time.Time

	// Owned by the fast loop.
	weatherAttempt map[string]time.Time
	weather        map[string]model.Weather
	following      string

	overlayMu sync.Mutex
	overlay   map[string]*overlay
	polled    map[string]feed.Record

	statsMu sync.Mutex
	stats   map[string]*FeedStats

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
	stopping atomic.Bool
}

// New creates a Coordinator. Call Start to begin polling.
//
// Parameters:
//   - opts: Fetcher is required; zero intervals take their defaults
//
// Returns:
//   - *Coordinator: Idle coordinator holding an empty snapshot
//   - error: If opts.Fetcher is nil
func New(opts Options) (*Coordinator, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("coordinator: fetcher is required")
	}

	c := &Coordinator{
		fetcher:         opts.Fetcher,
		store:           opts.Store,
		streamEnabled:   opts.Stream,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		now:             time.Now,
		fastInterval:    FastInterval,
		slowInterval:    SlowInterval,
		backendInterval: BackendInterval,
		weatherInterval: WeatherInterval,
		fastTrigger:     make(chan struct{}, 1),
		slowTrigger:     make(chan struct{}, 1),
		weatherAttempt:  make(map[string]time.Time),
		weather:         make(map[string]model.Weather),
		overlay:         make(map[string]*overlay),
		polled:          make(map[string]feed.Record),
		stats:           make(map[string]*FeedStats),
	}
	if c.store == nil {
		c.store = store.New()
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	c.snap.Store(model.NewSnapshot())

	if opts.NewStreamer != nil {
		s, err := opts.NewStreamer(StreamHandlers{
			OnRunDetail: c.applyRunDetail,
			OnVehicles:  c.applyVehicles,
			OnState:     c.streamState,
		})
		if err != nil {
			return nil, fmt.Errorf("creating streamer: %w", err)
		}
		c.streamer = s
	}

	return c, nil
}

// Start launches both polling loops. The first cycle of each runs
// immediately. The loops stop when ctx is cancelled or Stop is called.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call, ErrStopped after Stop
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopping.Load() {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.loop(loopCtx, "fast", c.fastInterval, c.fastTrigger, c.fastCycle)
	go c.loop(loopCtx, "slow", c.slowInterval, c.slowTrigger, c.slowCycle)

	c.logger.Info("coordinator started",
		"fast_interval", c.fastInterval.String(),
		"slow_interval", c.slowInterval.String(),
		"stream", c.streamer != nil && c.streamEnabled,
	)
	return nil
}

// Stop cancels both loops and waits for in-flight cycles to return, then
// stops the push stream and releases the HTTP client. Safe to call more
// than once and before Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.stopping.Store(true)

		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		c.wg.Wait()

		if c.streamer != nil {
			c.streamer.Stop()
		}
		c.fetcher.Close()
		c.logger.Info("coordinator stopped")
	})
}

// Refresh requests an immediate cycle of both loops. A cycle already
// running is not interrupted; the refresh runs once it completes.
// Requests made while one is pending are coalesced.
func (c *Coordinator) Refresh() {
	for _, ch := range []chan struct{}{c.fastTrigger, c.slowTrigger} {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns the current merged snapshot.
func (c *Coordinator) Snapshot() *model.Snapshot {
	return c.snap.Load()
}

// Store returns the payload store backing the snapshot.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// StreamConnected reports whether the push stream is connected.
func (c *Coordinator) StreamConnected() bool {
	return c.streamer != nil && c.streamer.Connected()
}

// Subscribe registers fn for every published snapshot and returns a
// function that removes it.
func (c *Coordinator) Subscribe(fn Subscriber) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// loop runs cycle immediately and then after each interval or refresh.
func (c *Coordinator) loop(ctx context.Context, name string, interval time.Duration, trigger <-chan struct{}, cycle func(context.Context)) {
	defer c.wg.Done()

	for {
		cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		c.publish()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Debug("loop stopped", "loop", name)
			return
		case <-trigger:
			timer.Stop()
			c.logger.Debug("refresh requested", "loop", name)
		case <-timer.C:
		}
	}
}

// update swaps in a modified clone of the current snapshot. fn may run
// more than once and reports whether it changed anything; when it returns
// false nothing is swapped and update returns nil.
func (c *Coordinator) update(fn func(s *model.Snapshot) bool) *model.Snapshot {
	for {
		old := c.snap.Load()
		next := old.Clone()
		if !fn(next) {
			return nil
		}
		next.Seq = old.Seq + 1
		next.UpdatedAt = c.now().UTC()
		if c.snap.CompareAndSwap(old, next) {
			return next
		}
	}
}

// publish delivers the current snapshot to every subscriber. A failing or
// panicking subscriber is logged and does not affect the others.
func (c *Coordinator) publish() {
	snap := c.snap.Load()

	c.subMu.RLock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		c.deliver(s, snap)
	}
}

func (c *Coordinator) deliver(s subscriber, snap *model.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", "subscriber", s.id, "seq", snap.Seq, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.fn(snap); err != nil {
		c.logger.Warn("subscriber failed", "subscriber", s.id, "seq", snap.Seq, "error", err)
	}
}
