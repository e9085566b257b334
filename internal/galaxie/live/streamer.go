package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// Stream message types.
const (
	MessageRunDetail   = "run_detail"
	MessageVehicleList = "vehicle_list"
)

// Reconnect defaults.
const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 60 * time.Second
	backoffMultiplier     = 2
	backoffJitter         = 0.5
	handshakeTimeout      = 10 * time.Second
)

// Logger defines the logging interface used by the Streamer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Streamer.
type Options struct {
	// URL returns the stream URL of a run. Required.
	URL func(runID string) string

	// UserAgent is sent on the handshake request.
	UserAgent string

	// OnRunDetail receives each run_detail record.
	OnRunDetail func(runID string, detail feed.Record)

	// OnVehicles receives each running order, sorted by position.
	OnVehicles func(runID string, vehicles []model.Vehicle)

	// OnState is called when the connection opens or drops.
	OnState func(runID string, connected bool)

	Logger Logger

	// Reconnect backoff bounds. Zero uses the defaults.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// envelope is the wire form of every stream message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Streamer follows the push stream of one run.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks run on
// the stream goroutine and must not call Follow or Stop.
type Streamer struct {
	opts   Options
	dialer *websocket.Dialer
	logger Logger

	mu     sync.Mutex
	runID  string
	cancel context.CancelFunc
	done   chan struct{}

	connected atomic.Bool
	messages  atomic.Uint64
}

// New creates an idle Streamer.
//
// Parameters:
//   - opts: URL is required; zero backoffs take their defaults
//
// Returns:
//   - *Streamer: Streamer following no run until Follow is called
//   - error: If opts.URL is nil
func New(opts Options) (*Streamer, error) {
	if opts.URL == nil {
		return nil, errors.New("live: URL func is required")
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Streamer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}, nil
}

// Follow streams runID, replacing any run currently followed. Following the
// run already followed is a no-op.
func (s *Streamer) Follow(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && s.runID == runID {
		return
	}
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.runID = runID
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("following live stream", "run_id", runID)
	go s.run(ctx, runID, s.done)
}

// Stop closes the stream and waits for its goroutine to exit.
func (s *Streamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Streamer) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("live stream stopped", "run_id", s.runID)
	s.cancel = nil
	s.done = nil
	s.runID = ""
}

// Connected reports whether the stream connection is open.
func (s *Streamer) Connected() bool {
	return s.connected.Load()
}

// RunID returns the run being followed, or "" when idle.
func (s *Streamer) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Messages returns the number of stream messages handled since creation.
func (s *Streamer) Messages() uint64 {
	return s.messages.Load()
}

func (s *Streamer) run(ctx context.Context, runID string, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = backoffJitter
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		opened, err := s.session(ctx, runID)
		if ctx.Err() != nil {
			return
		}
		if opened {
			b.Reset()
		}

		wait := b.NextBackOff()
		s.logger.Warn("live stream disconnected",
			"run_id", runID,
			"error", err,
			"retry_in", wait.String(),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx is cancelled. opened
// reports whether the handshake succeeded.
func (s *Streamer) session(ctx context.Context, runID string) (opened bool, err error) {
	header := http.Header{}
	if s.opts.UserAgent != "" {
		header.Set("User-Agent", s.opts.UserAgent)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.opts.URL(runID), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dialing stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.setConnected(runID, true)
	defer s.setConnected(runID, false)
	s.logger.Info("live stream connected", "run_id", runID)

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			return true, fmt.Errorf("reading stream: %w", readErr)
		}
		s.handle(runID, data)
	}
}

func (s *Streamer) setConnected(runID string, connected bool) {
	s.connected.Store(connected)
	if s.opts.OnState != nil {
		s.opts.OnState(runID, connected)
	}
}

// handle decodes one message and dispatches it. Malformed messages are
// logged and dropped.
func (s *Streamer) handle(runID string, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug("dropping malformed stream message", "run_id", runID, "error", err)
		return
	}
	s.messages.Add(1)

	switch env.Type {
	case MessageRunDetail:
		detail, err := feed.DecodeRecord(env.Data)
		if err != nil {
			s.logger.Debug("dropping run_detail", "run_id", runID, "error", err)
			return
		}
		if s.opts.OnRunDetail != nil {
			s.opts.OnRunDetail(runID, detail)
		}
	case MessageVehicleList:
		list, err := feed.DecodePayload(env.Data)
		if err != nil {
			s.logger.Debug("dropping vehicle_list", "run_id", runID, "error", err)
			return
		}
		if s.opts.OnVehicles != nil {
			s.opts.OnVehicles(runID, model.MapVehicles(list))
		}
	default:
		s.logger.Debug("ignoring stream message", "run_id", runID, "type", env.Type)
	}
}
