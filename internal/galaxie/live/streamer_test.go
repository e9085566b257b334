package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// streamServer upgrades every request, sends messages and then either
// holds the connection open or closes it.
type streamServer struct {
	*httptest.Server

	mu       sync.Mutex
	paths    []string
	messages []string
	hold     bool
}

func newStreamServer(t *testing.T, hold bool, messages ...string) *streamServer {
	t.Helper()
	s := &streamServer{messages: messages, hold: hold}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range s.messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if s.hold {
			// Block until the client goes away.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) urlFor(runID string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/runs/" + runID + "/"
}

func (s *streamServer) requestPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() expected error without URL func")
	}
}

func TestStreamer_DispatchesMessages(t *testing.T) {
	srv := newStreamServer(t, true,
		`{"type": "run_detail", "data": {"id": 5123, "lap_number": 114, "flag": 1}}`,
		`not json`,
		`{"type": "heartbeat", "data": null}`,
		`{"type": "vehicle_list", "data": [
			{"running_position": 2, "display_name": "Kyle Larson"},
			{"running_position": 1, "display_name": "Denny Hamlin"}]}`,
	)

	var (
		mu       sync.Mutex
		details  []feed.Record
		vehicles []model.Vehicle
		states   []bool
	)
	s, err := New(Options{
		URL: srv.urlFor,
		OnRunDetail: func(runID string, d feed.Record) {
			mu.Lock()
			defer mu.Unlock()
			if runID == "5123" {
				details = append(details, d)
			}
		},
		OnVehicles: func(_ string, v []model.Vehicle) {
			mu.Lock()
			defer mu.Unlock()
			vehicles = v
		},
		OnState: func(_ string, connected bool) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, connected)
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Follow("5123")
	waitFor(t, "vehicle list", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return vehicles != nil
	})

	if !s.Connected() {
		t.Error("Connected() = false while streaming")
	}
	if s.RunID() != "5123" {
		t.Errorf("RunID() = %q", s.RunID())
	}

	s.Stop()
	if s.Connected() {
		t.Error("Connected() = true after Stop")
	}
	if s.RunID() != "" {
		t.Errorf("RunID() = %q after Stop", s.RunID())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(details) != 1 || details[0]["lap_number"] == nil {
		t.Errorf("details = %v", details)
	}
	if len(vehicles) != 2 || *vehicles[0].DisplayName != "Denny Hamlin" {
		t.Errorf("vehicles = %+v", vehicles)
	}
	if diff := cmp.Diff([]bool{true, false}, states); diff != "" {
		t.Errorf("state transitions mismatch (-want +got):\n%s", diff)
	}
	if got := s.Messages(); got != 3 {
		t.Errorf("Messages() = %d, want 3 decoded envelopes", got)
	}
	if paths := srv.requestPaths(); len(paths) == 0 || paths[0] != "/ws/runs/5123/" {
		t.Errorf("paths = %v", paths)
	}
}

func TestStreamer_Reconnects(t *testing.T) {
	srv := newStreamServer(t, false, `{"type": "run_detail", "data": {"id": 1}}`)

	s, err := New(Options{
		URL:            srv.urlFor,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Stop()

	s.Follow("1")
	waitFor(t, "reconnect", func() bool { return len(srv.requestPaths()) >= 3 })
}

func TestStreamer_FollowSwitchesRun(t *testing.T) {
	srv := newStreamServer(t, true)

	s, err := New(Options{URL: srv.urlFor})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Stop()

	s.Follow("A")
	waitFor(t, "first connection", s.Connected)
	s.Follow("A")

	s.Follow("B")
	waitFor(t, "second connection", func() bool { return len(srv.requestPaths()) >= 2 })

	want := []string{"/ws/runs/A/", "/ws/runs/B/"}
	if diff := cmp.Diff(want, srv.requestPaths()); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if s.RunID() != "B" {
		t.Errorf("RunID() = %q, want B", s.RunID())
	}
}

func TestStreamer_StopWhileRetrying(t *testing.T) {
	s, err := New(Options{
		URL:            func(string) string { return "ws://127.0.0.1:1/ws/runs/x/" },
		InitialBackoff: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Follow("x")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return while waiting to reconnect")
	}
}
