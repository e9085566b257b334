package galaxie

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-galaxie/internal/device"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/reconcile"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/mqtt"
)

// mockMQTT records retained publishes and subscriptions.
type mockMQTT struct {
	mu         sync.Mutex
	connected  bool
	retained   map[string][]byte
	published  []string
	cleared    []string
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{
		connected: true,
		retained:  make(map[string][]byte),
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *mockMQTT) PublishRetained(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.retained[topic] = payload
	m.published = append(m.published, topic)
	return nil
}

func (m *mockMQTT) ClearRetained(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retained, topic)
	m.cleared = append(m.cleared, topic)
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *mockMQTT) payload(topic string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.retained[topic]
	return p, ok
}

func (m *mockMQTT) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

// mockRegistry is an in-memory DeviceRegistry. It validates devices the
// way the real registry does.
type mockRegistry struct {
	mu        sync.Mutex
	devices   map[string]*device.Device
	createErr error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{devices: make(map[string]*device.Device)}
}

func (r *mockRegistry) GetDevice(_ context.Context, id string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (r *mockRegistry) ListDevices(_ context.Context) []device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *mockRegistry) ListByKind(ctx context.Context, kind device.Kind) []device.Device {
	var out []device.Device
	for _, d := range r.ListDevices(ctx) {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (r *mockRegistry) CreateDevice(_ context.Context, d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if err := device.ValidateDevice(d); err != nil {
		return err
	}
	if _, ok := r.devices[d.ID]; ok {
		return device.ErrDeviceExists
	}
	r.devices[d.ID] = d.DeepCopy()
	return nil
}

func (r *mockRegistry) UpdateDevice(_ context.Context, d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := device.ValidateDevice(d); err != nil {
		return err
	}
	if _, ok := r.devices[d.ID]; !ok {
		return device.ErrDeviceNotFound
	}
	r.devices[d.ID] = d.DeepCopy()
	return nil
}

func (r *mockRegistry) DeleteDevice(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *mockRegistry) SetDeviceState(_ context.Context, id string, state device.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	cpy := make(device.State, len(state))
	for k, v := range state {
		cpy[k] = v
	}
	d.State = cpy
	return nil
}

func (r *mockRegistry) GetDeviceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// mockSource stands in for the coordinator.
type mockSource struct {
	mu        sync.Mutex
	refreshes int
	snap      *model.Snapshot
	stats     []coordinator.FeedStats
	streaming bool
}

func (s *mockSource) Refresh() {
	s.mu.Lock()
	s.refreshes++
	s.mu.Unlock()
}

func (s *mockSource) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *mockSource) Snapshot() *model.Snapshot {
	if s.snap == nil {
		return model.NewSnapshot()
	}
	return s.snap
}

func (s *mockSource) Stats() []coordinator.FeedStats { return s.stats }
func (s *mockSource) StreamConnected() bool          { return s.streaming }

func newTestBridge(t *testing.T) (*Bridge, *mockMQTT, *mockRegistry, *mockSource) {
	t.Helper()
	client := newMockMQTT()
	registry := newMockRegistry()
	source := &mockSource{}
	b, err := NewBridge(Options{
		MQTT:           client,
		Registry:       registry,
		Source:         source,
		Version:        "test",
		HealthInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	b.now = func() time.Time { return time.Date(2026, 2, 15, 19, 0, 0, 0, time.UTC) }
	return b, client, registry, source
}

func liveRaceDevice(runID string) reconcile.Device {
	return reconcile.Device{
		ID:    reconcile.LiveDeviceID(runID),
		Kind:  reconcile.KindLiveRace,
		Name:  "Daytona 500",
		Model: reconcile.ModelLiveRace,
		RunID: runID,
		State: reconcile.State{"flag": "Green", "lap_number": int64(12)},
	}
}

func decodeState(t *testing.T, payload []byte) StateMessage {
	t.Helper()
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return msg
}

func TestNewBridge_RequiresDependencies(t *testing.T) {
	if _, err := NewBridge(Options{Registry: newMockRegistry()}); err == nil {
		t.Error("NewBridge() without MQTT: expected error")
	}
	if _, err := NewBridge(Options{MQTT: newMockMQTT()}); err == nil {
		t.Error("NewBridge() without registry: expected error")
	}
}

func TestBridge_CreateDevice(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	d, err := registry.GetDevice(ctx, "live_race_5012")
	if err != nil {
		t.Fatalf("registry missing device: %v", err)
	}
	if d.Manufacturer != reconcile.Manufacturer || d.Kind != device.KindLiveRace {
		t.Errorf("registered device = %+v", d)
	}
	if d.RunID == nil || *d.RunID != "5012" {
		t.Errorf("RunID = %v, want 5012", d.RunID)
	}
	if d.Series != nil {
		t.Errorf("Series = %v, want nil for live device", *d.Series)
	}

	raw, ok := client.payload(DiscoveryTopic("live_race_5012"))
	if !ok {
		t.Fatal("no discovery message published")
	}
	var disc DiscoveryMessage
	if err := json.Unmarshal(raw, &disc); err != nil {
		t.Fatalf("decoding discovery: %v", err)
	}
	if diff := cmp.Diff([]string{"flag", "lap_number"}, disc.Entities); diff != "" {
		t.Errorf("Entities mismatch (-want +got):\n%s", diff)
	}
	if disc.Model != reconcile.ModelLiveRace || disc.RunID != "5012" {
		t.Errorf("discovery = %+v", disc)
	}

	raw, ok = client.payload(StateTopic("live_race_5012"))
	if !ok {
		t.Fatal("no state message published")
	}
	if got := decodeState(t, raw).State["flag"]; got != "Green" {
		t.Errorf("state flag = %v, want Green", got)
	}
}

func TestBridge_CreateDevice_ExistingIsOverwritten(t *testing.T) {
	b, _, registry, _ := newTestBridge(t)
	ctx := context.Background()

	old := liveRaceDevice("5012")
	old.Name = "Old name"
	if err := b.CreateDevice(ctx, old); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() second error = %v", err)
	}

	d, _ := registry.GetDevice(ctx, "live_race_5012")
	if d.Name != "Daytona 500" {
		t.Errorf("Name = %q, want overwritten", d.Name)
	}
}

func TestBridge_CreateDevice_Failures(t *testing.T) {
	t.Run("registry rejects", func(t *testing.T) {
		b, client, registry, _ := newTestBridge(t)
		registry.createErr = errors.New("disk full")

		if err := b.CreateDevice(context.Background(), liveRaceDevice("5012")); err == nil {
			t.Fatal("CreateDevice() expected error")
		}
		if _, ok := client.payload(DiscoveryTopic("live_race_5012")); ok {
			t.Error("discovery published for a device the registry rejected")
		}
	})

	t.Run("mqtt disconnected", func(t *testing.T) {
		b, client, _, _ := newTestBridge(t)
		client.setConnected(false)

		err := b.CreateDevice(context.Background(), liveRaceDevice("5012"))
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("CreateDevice() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestBridge_UpdateDevice(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := b.UpdateDevice(ctx, "live_race_5012", reconcile.State{"flag": "Yellow", "lap_number": nil}); err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}

	d, _ := registry.GetDevice(ctx, "live_race_5012")
	if d.State["flag"] != "Yellow" {
		t.Errorf("registry flag = %v, want Yellow", d.State["flag"])
	}
	raw, _ := client.payload(StateTopic("live_race_5012"))
	msg := decodeState(t, raw)
	if msg.State["flag"] != "Yellow" {
		t.Errorf("published flag = %v, want Yellow", msg.State["flag"])
	}
	if v, ok := msg.State["lap_number"]; !ok || v != nil {
		t.Errorf("lap_number = %v (present %v), want explicit null", v, ok)
	}

	err := b.UpdateDevice(ctx, "live_race_9999", reconcile.State{})
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("UpdateDevice() unknown error = %v, want ErrDeviceNotFound", err)
	}
}

func TestBridge_RemoveDevice(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := b.RemoveDevice(ctx, "live_race_5012"); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}

	if registry.GetDeviceCount() != 0 {
		t.Error("device still registered")
	}
	if _, ok := client.payload(StateTopic("live_race_5012")); ok {
		t.Error("retained state not cleared")
	}
	if _, ok := client.payload(DiscoveryTopic("live_race_5012")); ok {
		t.Error("retained discovery not cleared")
	}

	// Already gone from the registry: topics are still cleared.
	if err := b.RemoveDevice(ctx, "live_race_5012"); err != nil {
		t.Errorf("RemoveDevice() of missing device error = %v", err)
	}
}

func TestBridge_StartPurgesStaleLiveDevices(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()

	// Left over from a previous process.
	if err := b.CreateDevice(ctx, liveRaceDevice("4001")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	fixed := reconcile.Device{
		ID:     "next_race_cup",
		Kind:   reconcile.KindNextRace,
		Name:   "NASCAR Cup Series Next Race",
		Model:  reconcile.ModelNextRace,
		Series: model.SeriesCup,
		State:  reconcile.State{},
	}
	if err := b.CreateDevice(ctx, fixed); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if _, err := registry.GetDevice(ctx, "live_race_4001"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("stale live device not purged: %v", err)
	}
	if _, err := registry.GetDevice(ctx, "next_race_cup"); err != nil {
		t.Errorf("fixed device purged: %v", err)
	}
	if client.handler(CommandSubscription()) == nil {
		t.Error("command subscription not registered")
	}
	if err := b.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() twice error = %v, want ErrAlreadyStarted", err)
	}
}

func TestBridge_Stop(t *testing.T) {
	b, client, _, _ := newTestBridge(t)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Stop()
	b.Stop()

	if client.handler(CommandSubscription()) != nil {
		t.Error("command subscription still registered after Stop")
	}
	raw, ok := client.payload(HealthTopic())
	if !ok {
		t.Fatal("no health message after Stop")
	}
	var msg HealthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final health status = %q, want stopping", msg.Status)
	}
}

func TestBridge_HandleCommand(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		payload     string
		wantErr     error
		wantRefresh int
	}{
		{"refresh without body", CommandTopic(CommandRefresh), "", nil, 1},
		{"refresh with body", CommandTopic(CommandRefresh), `{"id":"abc","source":"api"}`, nil, 1},
		{"unknown command", CommandTopic("reboot"), "", ErrUnknownCommand, 0},
		{"foreign topic", "graylogic/command/knx/refresh", "", ErrUnknownCommand, 0},
		{"malformed body", CommandTopic(CommandRefresh), "{", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _, source := newTestBridge(t)

			err := b.handleCommand(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("handleCommand() error = %v, want %v", err, tt.wantErr)
			}
			if tt.name == "malformed body" && err == nil {
				t.Error("handleCommand() expected parse error")
			}
			if got := source.refreshCount(); got != tt.wantRefresh {
				t.Errorf("refreshes = %d, want %d", got, tt.wantRefresh)
			}
		})
	}
}

func TestBridge_Republish(t *testing.T) {
	b, client, _, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	client.mu.Lock()
	client.retained = make(map[string][]byte)
	client.mu.Unlock()

	if err := b.Republish(ctx); err != nil {
		t.Fatalf("Republish() error = %v", err)
	}
	for _, topic := range []string{DiscoveryTopic("live_race_5012"), StateTopic("live_race_5012"), HealthTopic()} {
		if _, ok := client.payload(topic); !ok {
			t.Errorf("Republish() did not publish %s", topic)
		}
	}
}

// The reconciler drives the bridge end to end: a run appears then ends.
func TestBridge_WithReconciler(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()
	r := reconcile.New(b, nil)

	flag := model.FlagFromCode(1)
	snap := model.NewSnapshot()
	snap.Seq = 1
	snap.LiveAvailable = true
	snap.Live["5012"] = model.LiveRun{ID: "5012", Flag: &flag}

	res := r.OnSnapshot(ctx, snap)
	if len(res.Failures) != 0 {
		t.Fatalf("OnSnapshot() failures = %+v", res.Failures)
	}
	// 6 race devices, live_status and the run.
	if got := registry.GetDeviceCount(); got != 8 {
		t.Errorf("device count = %d, want 8", got)
	}
	raw, _ := client.payload(StateTopic(reconcile.LiveStatusID))
	if got := decodeState(t, raw).State["live_race_status"]; got != true {
		t.Errorf("live_race_status = %v, want true", got)
	}

	ended := model.NewSnapshot()
	ended.Seq = 2
	ended.LiveAvailable = true
	r.OnSnapshot(ctx, ended)

	if _, err := registry.GetDevice(ctx, "live_race_5012"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("ended run still registered: %v", err)
	}
	raw, _ = client.payload(StateTopic(reconcile.LiveStatusID))
	if got := decodeState(t, raw).State["live_race_status"]; got != false {
		t.Errorf("live_race_status = %v, want false", got)
	}
}

func liveSnapshot(seq uint64, runs map[string]int64) *model.Snapshot {
	snap := model.NewSnapshot()
	snap.Seq = seq
	snap.LiveAvailable = true
	for id, code := range runs {
		flag := model.FlagFromCode(code)
		snap.Live[id] = model.LiveRun{ID: id, Flag: &flag}
	}
	return snap
}

func liveRaceStatus(t *testing.T, client *mockMQTT) any {
	t.Helper()
	raw, ok := client.payload(StateTopic(reconcile.LiveStatusID))
	if !ok {
		t.Fatal("no live_status state published")
	}
	return decodeState(t, raw).State["live_race_status"]
}

// Upstream run ids are not restricted to the registry's id alphabet.
func TestBridge_WithReconciler_MixedCaseRunID(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()
	r := reconcile.New(b, nil)
	id := reconcile.LiveDeviceID("R1")

	res := r.OnSnapshot(ctx, liveSnapshot(1, map[string]int64{"R1": 1}))
	if len(res.Failures) != 0 {
		t.Fatalf("OnSnapshot() failures = %+v", res.Failures)
	}
	if diff := cmp.Diff([]string{id}, res.Created); diff != "" {
		t.Errorf("Created mismatch (-want +got):\n%s", diff)
	}
	d, err := registry.GetDevice(ctx, id)
	if err != nil {
		t.Fatalf("registry missing %s: %v", id, err)
	}
	if d.RunID == nil || *d.RunID != "R1" {
		t.Errorf("RunID = %v, want R1", d.RunID)
	}
	if got := liveRaceStatus(t, client); got != true {
		t.Errorf("live_race_status = %v, want true", got)
	}

	res = r.OnSnapshot(ctx, liveSnapshot(2, map[string]int64{"R1": 2}))
	if len(res.Failures) != 0 || len(res.Created) != 0 {
		t.Fatalf("OnSnapshot() second = %+v", res)
	}
	if !slices.Contains(res.Updated, id) {
		t.Errorf("Updated = %v, want %s", res.Updated, id)
	}
	raw, _ := client.payload(StateTopic(id))
	if got := decodeState(t, raw).State["flag"]; got != "Yellow" {
		t.Errorf("published flag = %v, want Yellow", got)
	}

	res = r.OnSnapshot(ctx, liveSnapshot(3, nil))
	if len(res.Failures) != 0 {
		t.Fatalf("OnSnapshot() third failures = %+v", res.Failures)
	}
	if diff := cmp.Diff([]string{id}, res.Removed); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
	if _, err := registry.GetDevice(ctx, id); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("ended run still registered: %v", err)
	}
	if _, ok := client.payload(StateTopic(id)); ok {
		t.Error("retained state of ended run not cleared")
	}
	if got := liveRaceStatus(t, client); got != false {
		t.Errorf("live_race_status = %v, want false", got)
	}
}

// A remove that deletes the device but cannot clear its topics leaves the
// run known to the reconciler. When the run comes back it is registered
// again.
func TestBridge_WithReconciler_RunReturnsAfterFailedRemove(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()
	r := reconcile.New(b, nil)
	id := reconcile.LiveDeviceID("5012")

	if res := r.OnSnapshot(ctx, liveSnapshot(1, map[string]int64{"5012": 1})); len(res.Failures) != 0 {
		t.Fatalf("OnSnapshot() failures = %+v", res.Failures)
	}

	client.setConnected(false)
	res := r.OnSnapshot(ctx, liveSnapshot(2, nil))
	if len(res.Failures) == 0 {
		t.Fatal("OnSnapshot() while disconnected: expected failures")
	}
	if _, err := registry.GetDevice(ctx, id); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("device still registered after remove: %v", err)
	}

	client.setConnected(true)
	res = r.OnSnapshot(ctx, liveSnapshot(3, map[string]int64{"5012": 2}))
	if len(res.Failures) != 0 {
		t.Fatalf("OnSnapshot() after reconnect failures = %+v", res.Failures)
	}
	d, err := registry.GetDevice(ctx, id)
	if err != nil {
		t.Fatalf("returning run not registered: %v", err)
	}
	if d.State["flag"] != "Yellow" {
		t.Errorf("flag = %v, want Yellow", d.State["flag"])
	}
	if _, ok := client.payload(DiscoveryTopic(id)); !ok {
		t.Error("discovery not republished for returning run")
	}

	// Steady state: the next snapshot is a plain update.
	res = r.OnSnapshot(ctx, liveSnapshot(4, map[string]int64{"5012": 2}))
	if len(res.Failures) != 0 || len(res.Created) != 0 {
		t.Errorf("OnSnapshot() steady state = %+v", res)
	}
}

// Republish publishes what the registry holds when it gets to each device,
// not the copy it listed.
func TestBridge_RepublishReadsCurrentState(t *testing.T) {
	b, client, registry, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.CreateDevice(ctx, liveRaceDevice("5012")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := b.CreateDevice(ctx, liveRaceDevice("6001")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	// Listing happens first; the second device changes and the first is
	// removed before they are republished.
	listed := registry.ListDevices(ctx)
	if err := registry.SetDeviceState(ctx, "live_race_6001", device.State{"flag": "Red"}); err != nil {
		t.Fatalf("SetDeviceState() error = %v", err)
	}
	if err := registry.DeleteDevice(ctx, "live_race_5012"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	client.mu.Lock()
	client.retained = make(map[string][]byte)
	client.mu.Unlock()

	for _, d := range listed {
		if err := b.republishDevice(ctx, d.ID); err != nil {
			t.Errorf("republishDevice(%s) error = %v", d.ID, err)
		}
	}

	raw, ok := client.payload(StateTopic("live_race_6001"))
	if !ok {
		t.Fatal("live_race_6001 not republished")
	}
	if got := decodeState(t, raw).State["flag"]; got != "Red" {
		t.Errorf("republished flag = %v, want Red", got)
	}
	if _, ok := client.payload(StateTopic("live_race_5012")); ok {
		t.Error("removed device republished")
	}
}
