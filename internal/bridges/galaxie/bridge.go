package galaxie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/nerrad567/gray-logic-galaxie/internal/device"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/reconcile"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/mqtt"
)

// purgeTimeout bounds the stale device purge at startup.
const purgeTimeout = 30 * time.Second

// MQTTClient is the subset of the MQTT client the bridge uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DeviceRegistry persists host devices. *device.Registry satisfies it.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListDevices(ctx context.Context) []device.Device
	ListByKind(ctx context.Context, kind device.Kind) []device.Device
	CreateDevice(ctx context.Context, d *device.Device) error
	UpdateDevice(ctx context.Context, d *device.Device) error
	DeleteDevice(ctx context.Context, id string) error
	SetDeviceState(ctx context.Context, id string, state device.State) error
	GetDeviceCount() int
}

// Source is the polling side of the bridge. *coordinator.Coordinator
// satisfies it.
type Source interface {
	Refresh()
	Snapshot() *model.Snapshot
	Stats() []coordinator.FeedStats
	StreamConnected() bool
}

// Logger defines the logging interface used by the bridge.
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

// Options holds configuration for creating a bridge.
type Options struct {
	MQTT     MQTTClient
	Registry DeviceRegistry
	Source   Source

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	Logger Logger
}

// Bridge publishes reconciler output to the host and forwards host
// commands to the coordinator.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	registry DeviceRegistry
	source   Source
	health   *HealthReporter
	logger   Logger
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once

	// pubMu serialises each registry change with its publication so a
	// concurrent Republish never sends a device older than one just
	// published.
	pubMu sync.Mutex
}

var _ reconcile.Host = (*Bridge)(nil)

// NewBridge creates a bridge. MQTT and Registry are required; Source may be
// nil, in which case refresh commands are rejected and health omits feed
// statistics.
//
// Parameters:
//   - opts: Bridge dependencies and health settings
//
// Returns:
//   - *Bridge: Bridge ready for Start
//   - error: If MQTT or Registry is missing
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("galaxie: mqtt client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("galaxie: device registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	b := &Bridge{
		mqtt:     opts.MQTT,
		registry: opts.Registry,
		source:   opts.Source,
		logger:   logger,
		now:      time.Now,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Source:    opts.Source,
		Devices:   opts.Registry.GetDeviceCount,
	})
	b.health.SetLogger(logger)
	return b, nil
}

// Start purges live devices left by a previous process, subscribes to
// bridge commands and begins health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting health", "error", err)
	}

	purgeCtx, cancel := context.WithTimeout(ctx, purgeTimeout)
	purged := b.purgeStale(purgeCtx)
	cancel()
	if purged > 0 {
		b.logger.Info("purged stale live devices", "count", purged)
	}

	if err := b.mqtt.Subscribe(CommandSubscription(), 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.health.Start(ctx)
	b.started = true
	b.logger.Info("galaxie bridge started")
	return nil
}

// Stop unsubscribes from commands and publishes a final stopping health
// message. Devices are left in place; the reconciler removes live devices
// through RemoveDevice during its own shutdown.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		started := b.started
		b.mu.Unlock()
		if !started {
			return
		}

		if err := b.mqtt.Unsubscribe(CommandSubscription()); err != nil {
			b.logger.Warn("failed to unsubscribe from commands", "error", err)
		}
		b.health.Stop()
		b.logger.Info("galaxie bridge stopped")
	})
}

// CreateDevice registers a device in the registry and announces it. A
// device that already exists, for example a fixed race device from a
// previous run, is overwritten.
func (b *Bridge) CreateDevice(ctx context.Context, d reconcile.Device) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	rd := toRegistryDevice(d)

	err := b.registry.CreateDevice(ctx, rd)
	if errors.Is(err, device.ErrDeviceExists) {
		err = b.registry.UpdateDevice(ctx, rd)
	}
	if err != nil {
		return fmt.Errorf("registering device %s: %w", d.ID, err)
	}

	if err := b.publishDiscovery(rd); err != nil {
		return err
	}
	return b.publishState(d.ID, rd.State)
}

// UpdateDevice replaces a device's state and publishes it. A device missing
// from the registry yields an error matching reconcile.ErrUnknownDevice.
func (b *Bridge) UpdateDevice(ctx context.Context, id string, state reconcile.State) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err := b.registry.SetDeviceState(ctx, id, device.State(state))
	if errors.Is(err, device.ErrDeviceNotFound) {
		return fmt.Errorf("updating device %s: %w: %w", id, reconcile.ErrUnknownDevice, err)
	}
	if err != nil {
		return fmt.Errorf("updating device %s: %w", id, err)
	}
	return b.publishState(id, device.State(state))
}

// RemoveDevice deletes a device and clears its retained topics. Removing
// a device the registry no longer has still clears the topics.
func (b *Bridge) RemoveDevice(ctx context.Context, id string) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if err := b.registry.DeleteDevice(ctx, id); err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	return errors.Join(
		b.clear(StateTopic(id)),
		b.clear(DiscoveryTopic(id)),
	)
}

// Republish announces every registered device again. Call it after an MQTT
// reconnect so the host sees state published while the broker was away.
//
// Each device is re-read under the publication lock, so a state applied
// concurrently by the reconciler is never overwritten by an older copy.
func (b *Bridge) Republish(ctx context.Context) error {
	var errs []error
	for _, listed := range b.registry.ListDevices(ctx) {
		if err := b.republishDevice(ctx, listed.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.health.PublishNow(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bridge) republishDevice(ctx context.Context, id string) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	d, err := b.registry.GetDevice(ctx, id)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return nil // removed since listing
	}
	if err != nil {
		return fmt.Errorf("reading device %s: %w", id, err)
	}
	if err := b.publishDiscovery(d); err != nil {
		return err
	}
	return b.publishState(d.ID, d.State)
}

// purgeStale removes live race devices that no reconciler knows about.
func (b *Bridge) purgeStale(ctx context.Context) int {
	purged := 0
	for _, d := range b.registry.ListByKind(ctx, device.KindLiveRace) {
		if err := b.RemoveDevice(ctx, d.ID); err != nil {
			b.logger.Warn("failed to purge stale device", "device_id", d.ID, "error", err)
			continue
		}
		purged++
	}
	return purged
}

// handleCommand processes a message on graylogic/command/galaxie/+.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	cmd, ok := commandFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
	}

	var msg CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("parsing command %s: %w", cmd, err)
		}
	}

	switch cmd {
	case CommandRefresh:
		if b.source == nil {
			return fmt.Errorf("%w: %s (no source)", ErrUnknownCommand, cmd)
		}
		b.logger.Info("refresh requested", "id", msg.ID, "source", msg.Source)
		b.source.Refresh()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (b *Bridge) publishDiscovery(d *device.Device) error {
	msg := DiscoveryMessage{
		DeviceID:     d.ID,
		Timestamp:    b.now().UTC(),
		Name:         d.Name,
		Kind:         string(d.Kind),
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		SWVersion:    lo.FromPtr(d.SWVersion),
		Series:       lo.FromPtr(d.Series),
		RunID:        lo.FromPtr(d.RunID),
		Entities:     lo.Keys(d.State),
	}
	sort.Strings(msg.Entities)
	return b.publish(DiscoveryTopic(d.ID), msg)
}

func (b *Bridge) publishState(id string, state device.State) error {
	if state == nil {
		state = device.State{}
	}
	return b.publish(StateTopic(id), StateMessage{
		DeviceID:  id,
		Timestamp: b.now().UTC(),
		State:     state,
	})
}

func (b *Bridge) publish(topic string, msg any) error {
	if !b.mqtt.IsConnected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, topic)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	if err := b.mqtt.PublishRetained(topic, payload); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (b *Bridge) clear(topic string) error {
	if !b.mqtt.IsConnected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, topic)
	}
	if err := b.mqtt.ClearRetained(topic); err != nil {
		return fmt.Errorf("clearing %s: %w", topic, err)
	}
	return nil
}

// toRegistryDevice converts a reconciler device description to a registry record.
func toRegistryDevice(d reconcile.Device) *device.Device {
	out := &device.Device{
		ID:           d.ID,
		Name:         d.Name,
		Kind:         device.Kind(d.Kind),
		Manufacturer: reconcile.Manufacturer,
		Model:        d.Model,
		State:        device.State(d.State),
	}
	if d.SWVersion != "" {
		out.SWVersion = lo.ToPtr(d.SWVersion)
	}
	if d.Series != "" {
		out.Series = lo.ToPtr(string(d.Series))
	}
	if d.RunID != "" {
		out.RunID = lo.ToPtr(d.RunID)
	}
	return out
}
