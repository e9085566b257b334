package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// Logger defines the logging interface used by the Reconciler.
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

// Reconciler applies snapshot plans to a Host.
//
// known is the set of live run ids the host currently holds a device for.
// A failed create leaves the run unknown so the next snapshot retries it;
// a failed remove keeps it known so the next snapshot retries the removal.
type Reconciler struct {
	host   Host
	logger Logger

	mu           sync.Mutex
	known        map[string]struct{}
	applied      map[string]State // last state applied per fixed device
	lastSeq      uint64
	hasApplied   bool
	bootstrapped bool
}

// New creates a Reconciler with an empty known set.
//
// Parameters:
//   - host: Device host receiving the instructions
//   - logger: May be nil to discard logs
//
// Returns:
//   - *Reconciler: Reconciler that has applied nothing yet
func New(host Host, logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reconciler{
		host:    host,
		logger:  logger,
		known:   make(map[string]struct{}),
		applied: make(map[string]State),
	}
}

// Bootstrap creates the six fixed race devices and the live_status device
// in their unavailable state. It is safe to call more than once; later
// calls only retry devices that failed before.
func (r *Reconciler) Bootstrap(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bootstrapLocked(ctx)
}

func (r *Reconciler) bootstrapLocked(ctx context.Context) error {
	if r.bootstrapped {
		return nil
	}

	empty := model.NewSnapshot()
	devices := append(RaceDevices(empty), StatusDevice(empty))

	var errs []error
	for _, d := range devices {
		if _, done := r.applied[d.ID]; done {
			continue
		}
		if err := r.host.CreateDevice(ctx, d); err != nil {
			r.logger.Error("creating fixed device failed", "device_id", d.ID, "error", err)
			errs = append(errs, fmt.Errorf("creating %s: %w", d.ID, err))
			continue
		}
		r.applied[d.ID] = d.State
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.bootstrapped = true
	r.logger.Info("fixed devices created", "count", len(devices))
	return nil
}

// OnSnapshot reconciles the host with snap. Host failures are isolated per
// device and reported in the Result; they never stop the remaining
// instructions. A snapshot older than the last applied one is skipped.
//
// Parameters:
//   - ctx: Passed to every host call
//   - snap: Published snapshot; it is not modified
//
// Returns:
//   - Result: Devices created, updated and removed, plus per-device failures
func (r *Reconciler) OnSnapshot(ctx context.Context, snap *model.Snapshot) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{Seq: snap.Seq, Live: len(snap.Live) > 0}
	if r.hasApplied && snap.Seq < r.lastSeq {
		r.logger.Debug("skipping stale snapshot", "seq", snap.Seq, "last_seq", r.lastSeq)
		res.Skipped = true
		return res
	}

	if err := r.bootstrapLocked(ctx); err != nil {
		r.logger.Warn("fixed devices incomplete", "error", err)
	}

	for _, in := range Plan(r.knownIDs(), r.applied, snap) {
		err := r.apply(ctx, in)
		if err != nil {
			r.logger.Error("host instruction failed",
				"action", in.Action,
				"device_id", in.DeviceID,
				"error", err,
			)
			res.Failures = append(res.Failures, Failure{
				Action:   in.Action,
				DeviceID: in.DeviceID,
				Error:    err.Error(),
			})
			continue
		}
		switch in.Action {
		case ActionCreate:
			res.Created = append(res.Created, in.DeviceID)
		case ActionUpdate:
			res.Updated = append(res.Updated, in.DeviceID)
		case ActionRemove:
			res.Removed = append(res.Removed, in.DeviceID)
		}
	}

	r.lastSeq = snap.Seq
	r.hasApplied = true

	if len(res.Created) > 0 || len(res.Removed) > 0 || len(res.Failures) > 0 {
		r.logger.Info("live devices reconciled",
			"seq", snap.Seq,
			"created", len(res.Created),
			"removed", len(res.Removed),
			"failed", len(res.Failures),
			"live", res.Live,
		)
	}
	return res
}

// apply runs one instruction and updates the known and applied sets.
func (r *Reconciler) apply(ctx context.Context, in Instruction) error {
	switch in.Action {
	case ActionRemove:
		if err := r.host.RemoveDevice(ctx, in.DeviceID); err != nil {
			return err
		}
		delete(r.known, in.RunID)
	case ActionCreate:
		if err := r.host.CreateDevice(ctx, *in.Device); err != nil {
			return err
		}
		r.known[in.RunID] = struct{}{}
	case ActionUpdate:
		err := r.host.UpdateDevice(ctx, in.DeviceID, in.State)
		if errors.Is(err, ErrUnknownDevice) {
			// The host lost the device, for example after a remove that
			// deleted it but failed to clear its topics. Forget it so a
			// failed recreate is retried as a create.
			delete(r.known, in.RunID)
			delete(r.applied, in.DeviceID)
			if in.Device != nil {
				r.logger.Warn("host has no device, recreating", "device_id", in.DeviceID)
				err = r.host.CreateDevice(ctx, *in.Device)
			}
		}
		if err != nil {
			return err
		}
		if in.RunID != "" {
			r.known[in.RunID] = struct{}{}
		}
		if isRaceDevice(in.DeviceID) {
			r.applied[in.DeviceID] = in.State
		}
	default:
		return fmt.Errorf("unknown action %q", in.Action)
	}
	return nil
}

// Shutdown removes every known live device. Fixed devices are kept.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range r.knownIDs() {
		deviceID := LiveDeviceID(id)
		if err := r.host.RemoveDevice(ctx, deviceID); err != nil {
			r.logger.Warn("removing live device failed", "device_id", deviceID, "error", err)
			errs = append(errs, fmt.Errorf("removing %s: %w", deviceID, err))
			continue
		}
		delete(r.known, id)
	}
	return errors.Join(errs...)
}

// Known returns the live run ids the host holds a device for, sorted.
func (r *Reconciler) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.knownIDs()
}

func (r *Reconciler) knownIDs() []string {
	ids := make([]string, 0, len(r.known))
	for id := range r.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isRaceDevice(deviceID string) bool {
	for _, s := range model.AllSeries() {
		if deviceID == RaceDeviceID(KindPreviousRace, s) || deviceID == RaceDeviceID(KindNextRace, s) {
			return true
		}
	}
	return false
}
