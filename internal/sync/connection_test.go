package sync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitalmesh/telemetryd/internal/config"
	"github.com/vitalmesh/telemetryd/internal/wire"
)

func testServerConfig(baseURL string) config.ServerConfig {
	return config.ServerConfig{
		BaseURL:            baseURL,
		RealtimePath:       "/realtime",
		HeartbeatInterval:  10 * time.Millisecond,
		LivenessInterval:   10 * time.Millisecond,
		LivenessTimeout:    time.Minute,
		SettleDelay:        time.Millisecond,
		InitialBackoffBase: 10 * time.Millisecond,
		InitialBackoffCap:  50 * time.Millisecond,
		ReconnectInterval:  time.Hour,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer starts a websocket echo endpoint invoking handler per
// connection.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		handler(conn, r)
	}))
}

func TestRealtimeEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://ingest.example.com", "ws://ingest.example.com/realtime/dev-test"},
		{"https://ingest.example.com", "wss://ingest.example.com/realtime/dev-test"},
		{"https://ingest.example.com/base/", "wss://ingest.example.com/base/realtime/dev-test"},
	}

	for _, tt := range tests {
		cm := NewConnectionManager(testServerConfig(tt.base), wire.Metadata{DeviceID: "dev-test"}, "")
		got, err := cm.realtimeEndpoint()
		if err != nil {
			t.Fatalf("realtimeEndpoint(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("realtimeEndpoint(%q): got %q, want %q", tt.base, got, tt.want)
		}
	}

	cm := NewConnectionManager(testServerConfig("ftp://nope"), wire.Metadata{DeviceID: "dev-test"}, "")
	if _, err := cm.realtimeEndpoint(); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestConnect_SuccessAndInboundRouting(t *testing.T) {
	gotPath := make(chan string, 1)
	ts := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotPath <- r.URL.Path
		conn.WriteJSON(map[string]string{"type": wire.InConnectionEstablished})
		conn.WriteJSON(map[string]string{"type": wire.InHealthCheckPing, "id": "ping-1"})
		// Keep the socket open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	cm := NewConnectionManager(testServerConfig(ts.URL), wire.Metadata{DeviceID: "dev-test", Source: "test"}, "")

	var inbound []wire.Inbound
	inboundCh := make(chan wire.Inbound, 16)
	cm.onInbound = func(msg wire.Inbound) { inboundCh <- msg }
	connected := make(chan struct{})
	cm.onConnected = func() { close(connected) }

	cm.Connect()
	defer cm.Stop()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("onConnected was not called")
	}
	if cm.State() != StateConnected {
		t.Fatalf("state: got %s, want %s", cm.State(), StateConnected)
	}

	if path := <-gotPath; path != "/realtime/dev-test" {
		t.Errorf("dial path: got %q, want /realtime/dev-test", path)
	}

	deadline := time.After(2 * time.Second)
	for len(inbound) < 2 {
		select {
		case msg := <-inboundCh:
			inbound = append(inbound, msg)
		case <-deadline:
			t.Fatalf("expected 2 inbound frames, got %d", len(inbound))
		}
	}
	if inbound[1].Type != wire.InHealthCheckPing || inbound[1].ID != "ping-1" {
		t.Errorf("unexpected second inbound frame: %+v", inbound[1])
	}

	// The ping counts as a server liveness signal
	if cm.LastLivenessAt().IsZero() {
		t.Error("liveness timestamp was never set")
	}
}

func TestConnect_AtMostOneSocket(t *testing.T) {
	ts := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	cm := NewConnectionManager(testServerConfig(ts.URL), wire.Metadata{DeviceID: "dev-test"}, "")

	var dials int32
	baseDial := cm.dial
	cm.dial = func(urlStr string, header http.Header) (*websocket.Conn, error) {
		atomic.AddInt32(&dials, 1)
		return baseDial(urlStr, header)
	}

	cm.Connect()
	defer cm.Stop()
	waitFor(t, 2*time.Second, func() bool { return cm.State() == StateConnected })

	// Further connects while a socket is live are no-ops
	cm.Connect()
	cm.Connect()

	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Errorf("dial count: got %d, want 1", got)
	}
}

func TestConnect_FailureSchedulesExactlyOneReconnect(t *testing.T) {
	cfg := testServerConfig("http://127.0.0.1:1") // nothing listens here
	cm := NewConnectionManager(cfg, wire.Metadata{DeviceID: "dev-test"}, "")
	// Long delays so the pending timer does not fire during the test
	cm.everConnected = true
	defer cm.Stop()

	cm.Connect()
	waitFor(t, 2*time.Second, func() bool { return cm.State() == StateDisconnected })

	cm.mu.Lock()
	timer := cm.reconnectTimer
	cm.mu.Unlock()
	if timer == nil {
		t.Fatal("expected a pending reconnect timer")
	}

	// A second schedule attempt must not replace or duplicate the timer
	cm.mu.Lock()
	cm.scheduleReconnectLocked()
	same := cm.reconnectTimer == timer
	cm.mu.Unlock()
	if !same {
		t.Error("second schedule created a new timer while one was pending")
	}
}

func TestReconnectDelay_BeforeAndAfterFirstSuccess(t *testing.T) {
	cfg := testServerConfig("http://ingest.example.com")
	cm := NewConnectionManager(cfg, wire.Metadata{DeviceID: "dev-test"}, "")

	cm.mu.Lock()
	first := cm.reconnectDelayLocked()
	second := cm.reconnectDelayLocked()
	cm.mu.Unlock()
	if first > cfg.InitialBackoffCap || second > cfg.InitialBackoffCap {
		t.Errorf("initial backoff exceeded cap: %v, %v", first, second)
	}
	if first <= 0 || second <= 0 {
		t.Errorf("backoff delays must be positive: %v, %v", first, second)
	}

	cm.mu.Lock()
	cm.everConnected = true
	after := cm.reconnectDelayLocked()
	cm.mu.Unlock()
	if after != cfg.ReconnectInterval {
		t.Errorf("post-success delay: got %v, want %v", after, cfg.ReconnectInterval)
	}
}

func TestLivenessTimeout_ForcesDisconnectAndReconnect(t *testing.T) {
	ts := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Never send a ping: the client must declare the socket dead
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	cfg := testServerConfig(ts.URL)
	cfg.LivenessTimeout = 50 * time.Millisecond
	cm := NewConnectionManager(cfg, wire.Metadata{DeviceID: "dev-test"}, "")
	defer cm.Stop()

	cm.Connect()
	waitFor(t, 2*time.Second, func() bool { return cm.State() == StateConnected })

	waitFor(t, 2*time.Second, func() bool { return cm.State() == StateDisconnected })

	cm.mu.Lock()
	hasTimer := cm.reconnectTimer != nil
	cm.mu.Unlock()
	if !hasTimer {
		t.Error("liveness timeout should schedule a reconnect")
	}
}

func TestConnect_ServerCloseTriggersReconnect(t *testing.T) {
	ts := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.Close()
	})
	defer ts.Close()

	cm := NewConnectionManager(testServerConfig(ts.URL), wire.Metadata{DeviceID: "dev-test"}, "")
	defer cm.Stop()

	cm.Connect()
	waitFor(t, 2*time.Second, func() bool {
		cm.mu.Lock()
		defer cm.mu.Unlock()
		return cm.state == StateDisconnected && cm.reconnectTimer != nil
	})
}

func TestSocketToken_AuthorizationHeader(t *testing.T) {
	gotAuth := make(chan string, 1)
	ts := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	cm := NewConnectionManager(testServerConfig(ts.URL), wire.Metadata{DeviceID: "dev-test"}, "shh-secret")
	defer cm.Stop()

	cm.Connect()
	waitFor(t, 2*time.Second, func() bool { return cm.State() == StateConnected })

	auth := <-gotAuth
	if !strings.HasPrefix(auth, "Bearer ") {
		t.Errorf("Authorization header: got %q, want a Bearer token", auth)
	}
}
