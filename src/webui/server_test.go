package webui

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/engine"
	"github.com/0h41/midikontrol/src/mapping"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/state"
	"github.com/gorilla/websocket"
)

type fakeStats struct {
	registry  mapping.Statistics
	execution actions.Stats
}

func (f *fakeStats) GetRegistryStatistics() mapping.Statistics { return f.registry }
func (f *fakeStats) ExecutionStats() actions.Stats             { return f.execution }

type fakeSources struct{}

func (fakeSources) GetAudioSources() ([]pulseaudio.AudioSource, error) {
	return []pulseaudio.AudioSource{{ID: "output:Speakers", Name: "Speakers", Type: "output"}}, nil
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*WebUIServer, *httptest.Server, *state.Store) {
	t.Helper()
	store := state.NewStore()
	s := NewWebUIServer("", &fakeStats{registry: mapping.Statistics{MappingCount: 3}}, store, fakeSources{})
	s.PollInterval = 20 * time.Millisecond
	go s.handleBroadcasts()
	httpServer := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		httpServer.Close()
	})
	return s, httpServer, store
}

func dial(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if msg := read(t, conn); msg.Type != "welcome" {
		t.Fatalf("first message = %q, want welcome", msg.Type)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestActionFailedBroadcast(t *testing.T) {
	s, httpServer, _ := newTestServer(t)
	conn := dial(t, httpServer)

	env := actions.NewEnv(actions.Services{})
	a, err := actions.New(actions.Config{Type: actions.KindKeyPressRelease, VirtualKeyCode: 65, Description: "press A"}, env)
	if err != nil {
		t.Fatal(err)
	}
	s.ActionFailed(a, errors.New("no keyboard"))

	msg := read(t, conn)
	if msg.Type != ActionFailedType {
		t.Fatalf("type = %q", msg.Type)
	}
	var data map[string]string
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["error"] != "no keyboard" || data["description"] != "press A" || data["actionId"] != a.ID().String() {
		t.Errorf("data = %v", data)
	}
}

func TestProfileNotifications(t *testing.T) {
	s, httpServer, _ := newTestServer(t)
	conn := dial(t, httpServer)

	s.ProfileLoaded(engine.LoadReport{ProfileName: "Studio", MappingCount: 4})
	s.ProfileLoadFailed("/tmp/p.json", errors.New("malformed JSON"))

	if msg := read(t, conn); msg.Type != ProfileLoadedType || !strings.Contains(string(msg.Data), "Studio") {
		t.Errorf("loaded notification = %s %s", msg.Type, msg.Data)
	}
	if msg := read(t, conn); msg.Type != ProfileLoadFailedType || !strings.Contains(string(msg.Data), "malformed JSON") {
		t.Errorf("failed notification = %s %s", msg.Type, msg.Data)
	}
}

func TestClientMessages(t *testing.T) {
	_, httpServer, store := newTestServer(t)
	conn := dial(t, httpServer)

	tests := []struct {
		request  string
		wantType string
		contains string
	}{
		{`{"type":"getStatistics"}`, StatisticsType, `"mappingCount":3`},
		{`{"type":"setState","key":"Mode","value":2}`, StatesType, `"Mode":2`},
		{`{"type":"getStates"}`, StatesType, `"Mode":2`},
		{`{"type":"setState","key":"*Key65","value":1}`, "error", "reserved"},
		{`{"type":"getAudioSources"}`, AudioSourcesType, "Speakers"},
		{`{"type":"dance"}`, "error", "unknown message type"},
		{`not json`, "error", "parse"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.request)); err != nil {
			t.Fatal(err)
		}
		msg := read(t, conn)
		if msg.Type != tt.wantType || !strings.Contains(string(msg.Data), tt.contains) {
			t.Errorf("%s: got %s %s", tt.request, msg.Type, msg.Data)
		}
	}
	if value, _ := store.Get("Mode"); value != 2 {
		t.Errorf("Mode = %d", value)
	}
}

func TestStatisticsMonitor(t *testing.T) {
	s, httpServer, _ := newTestServer(t)
	conn := dial(t, httpServer)
	go s.monitorStatistics()

	if msg := read(t, conn); msg.Type != StatisticsType {
		t.Fatalf("type = %q", msg.Type)
	}

	// Unchanged statistics are not published again
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var msg received
	if err := conn.ReadJSON(&msg); err == nil {
		t.Errorf("unexpected message %s", msg.Type)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, httpServer, store := newTestServer(t)
	store.Set("Mode", 1)
	store.Set("*Key65", 1)

	resp, err := http.Get(httpServer.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Registry.MappingCount != 3 {
		t.Errorf("stats = %+v", stats)
	}

	resp, err = http.Get(httpServer.URL + "/api/states")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var states map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 || states["Mode"] != 1 {
		t.Errorf("states = %v", states)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "127.0.0.1:6080", true},
		{"http://127.0.0.1:6080", "127.0.0.1:6080", true},
		{"http://localhost:3000", "127.0.0.1:6080", true},
		{"http://[::1]:8080", "127.0.0.1:6080", true},
		{"http://mixer.lan:6080", "mixer.lan:6080", true},
		{"https://evil.example", "127.0.0.1:6080", false},
		{"http://127.0.0.1.evil.example", "127.0.0.1:6080", false},
		{"null", "127.0.0.1:6080", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(origin %q, host %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestForeignOriginRejected(t *testing.T) {
	_, httpServer, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("handshake from a foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
