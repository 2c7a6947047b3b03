package sync

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/vitalmesh/telemetryd/internal/config"
	"github.com/vitalmesh/telemetryd/internal/wire"
)

// ConnState represents the connection state machine
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

const writeWait = 10 * time.Second

// Maximum message size allowed from the server.
const maxMessageSize = 512 * 1024 // 512KB

// dialFunc opens a websocket; replaceable in tests.
type dialFunc func(urlStr string, header http.Header) (*websocket.Conn, error)

// ConnectionManager owns the single live socket to the ingestion service:
// connect, registration handshake trigger, liveness tracking, heartbeat
// emission, and reconnection scheduling. Every transport failure degrades
// to "disconnect and schedule a reconnect"; none is fatal to the process.
type ConnectionManager struct {
	mu sync.Mutex

	cfg  config.ServerConfig
	meta wire.Metadata
	// Device secret for the socket auth token; empty disables auth.
	secret string

	state          ConnState
	conn           *websocket.Conn
	connDone       chan struct{} // closed when the current connection dies
	lastLivenessAt time.Time
	everConnected  bool
	reconnectTimer *time.Timer
	stopped        bool

	// Backoff for dials before the first ever success. After a success,
	// loss is assumed to be a longer-lived outage and a fixed interval
	// applies instead.
	initialBackoff retry.Backoff

	dial dialFunc

	// Set by the engine before Connect is first called.
	dispatcher    *Dispatcher
	onConnected   func()
	onInbound     func(msg wire.Inbound)
	onStateChange func(state ConnState)
}

// NewConnectionManager creates a connection manager for one device.
func NewConnectionManager(cfg config.ServerConfig, meta wire.Metadata, secret string) *ConnectionManager {
	backoff := retry.NewExponential(cfg.InitialBackoffBase)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithCappedDuration(cfg.InitialBackoffCap, backoff)

	return &ConnectionManager{
		cfg:            cfg,
		meta:           meta,
		secret:         secret,
		state:          StateDisconnected,
		initialBackoff: backoff,
		dial: func(urlStr string, header http.Header) (*websocket.Conn, error) {
			dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
			conn, _, err := dialer.Dial(urlStr, header)
			return conn, err
		},
	}
}

// State returns the current connection state.
func (cm *ConnectionManager) State() ConnState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// IsConnected reports whether a live socket is established.
func (cm *ConnectionManager) IsConnected() bool {
	return cm.State() == StateConnected
}

// LastLivenessAt returns the timestamp of the last server liveness signal.
func (cm *ConnectionManager) LastLivenessAt() time.Time {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastLivenessAt
}

// Connect opens the socket to the ingestion endpoint. At most one socket
// is ever live: a second call while connecting or connected is a no-op.
// Failure schedules a reconnect and returns; it is never raised.
func (cm *ConnectionManager) Connect() {
	cm.mu.Lock()
	if cm.stopped || cm.state != StateDisconnected {
		cm.mu.Unlock()
		return
	}
	if cm.reconnectTimer != nil {
		cm.reconnectTimer.Stop()
		cm.reconnectTimer = nil
	}
	cm.state = StateConnecting
	cm.mu.Unlock()
	cm.notifyState(StateConnecting)

	endpoint, err := cm.realtimeEndpoint()
	if err != nil {
		log.Printf("❌ Invalid ingest endpoint: %v", err)
		cm.dialFailed()
		return
	}

	header := http.Header{}
	if cm.secret != "" {
		token, err := cm.socketToken()
		if err != nil {
			log.Printf("❌ Could not sign socket token: %v", err)
			cm.dialFailed()
			return
		}
		header.Set("Authorization", "Bearer "+token)
	}

	log.Printf("🔌 Connecting to %s", endpoint)
	conn, err := cm.dial(endpoint, header)
	if err != nil {
		log.Printf("⚠️ Connect failed: %v", err)
		cm.dialFailed()
		return
	}

	cm.mu.Lock()
	if cm.stopped || cm.state != StateConnecting {
		// Stop raced the dial; discard the socket.
		cm.mu.Unlock()
		conn.Close()
		return
	}
	cm.conn = conn
	cm.state = StateConnected
	cm.everConnected = true
	cm.lastLivenessAt = time.Now()
	cm.connDone = make(chan struct{})
	done := cm.connDone
	cm.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)

	go cm.readPump(conn)
	go cm.heartbeatLoop(done)
	go cm.livenessLoop(done)

	log.Printf("✅ Connected to ingestion service")
	cm.notifyState(StateConnected)
	if cm.onConnected != nil {
		cm.onConnected()
	}
}

// dialFailed transitions back to Disconnected and schedules a reconnect.
func (cm *ConnectionManager) dialFailed() {
	cm.mu.Lock()
	cm.state = StateDisconnected
	cm.scheduleReconnectLocked()
	cm.mu.Unlock()
	cm.notifyState(StateDisconnected)
}

// WriteFrame writes one frame to the live socket. Called only from the
// dispatcher's worker goroutine.
func (cm *ConnectionManager) WriteFrame(env wire.Envelope) error {
	cm.mu.Lock()
	conn := cm.conn
	connected := cm.state == StateConnected
	cm.mu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("socket not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		// Mid-stream write failure is handled like any other transport
		// failure: drop the connection and let the reconnect timer run.
		go cm.connectionLost(conn, fmt.Sprintf("write error: %v", err))
		return err
	}
	return nil
}

// readPump reads server frames until the connection dies. Liveness is
// tracked here: server pings and pongs are the only signals counted.
func (cm *ConnectionManager) readPump(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WS read error: %v", err)
			}
			cm.connectionLost(conn, "read error or server close")
			return
		}

		msg, err := wire.ParseInbound(message)
		if err != nil {
			log.Printf("Unparseable server frame: %v", err)
			continue
		}

		switch msg.Type {
		case wire.InHealthCheckPing, wire.InPong:
			cm.touchLiveness()
		}

		if cm.onInbound != nil {
			cm.onInbound(msg)
		}
	}
}

// touchLiveness records a server liveness signal.
func (cm *ConnectionManager) touchLiveness() {
	cm.mu.Lock()
	cm.lastLivenessAt = time.Now()
	cm.mu.Unlock()
}

// heartbeatLoop emits the low-frequency presence heartbeat. Heartbeat acks
// are informational only and never gate liveness.
func (cm *ConnectionManager) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(cm.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cm.IsConnected() && cm.dispatcher != nil {
				cm.dispatcher.Enqueue(wire.NewHeartbeatFrame(cm.meta))
			}
		case <-done:
			return
		}
	}
}

// livenessLoop declares the connection dead when no server ping/pong has
// been seen within the timeout window.
func (cm *ConnectionManager) livenessLoop(done chan struct{}) {
	ticker := time.NewTicker(cm.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.mu.Lock()
			conn := cm.conn
			expired := cm.state == StateConnected &&
				time.Since(cm.lastLivenessAt) > cm.cfg.LivenessTimeout
			cm.mu.Unlock()

			if expired {
				log.Printf("💀 No server liveness signal within %v, forcing disconnect", cm.cfg.LivenessTimeout)
				cm.connectionLost(conn, "liveness timeout")
				return
			}
		case <-done:
			return
		}
	}
}

// connectionLost tears down the given socket (if it is still the current
// one), cancels the per-connection loops, and schedules a reconnect.
// Read errors, write errors, server closes, and liveness timeouts all
// funnel through here.
func (cm *ConnectionManager) connectionLost(conn *websocket.Conn, reason string) {
	cm.mu.Lock()
	if cm.conn != conn || conn == nil {
		// A newer connection already replaced this one.
		cm.mu.Unlock()
		return
	}
	conn.Close()
	cm.conn = nil
	cm.state = StateDisconnected
	if cm.connDone != nil {
		close(cm.connDone)
		cm.connDone = nil
	}
	cm.scheduleReconnectLocked()
	cm.mu.Unlock()

	log.Printf("📴 Disconnected (%s)", reason)
	cm.notifyState(StateDisconnected)
}

// scheduleReconnectLocked arms the reconnect timer. Only one timer may be
// pending at a time; callers hold cm.mu.
func (cm *ConnectionManager) scheduleReconnectLocked() {
	if cm.stopped || cm.reconnectTimer != nil {
		return
	}

	delay := cm.reconnectDelayLocked()
	log.Printf("🔁 Reconnect scheduled in %v", delay)
	cm.reconnectTimer = time.AfterFunc(delay, func() {
		cm.mu.Lock()
		cm.reconnectTimer = nil
		cm.mu.Unlock()
		cm.Connect()
	})
}

// reconnectDelayLocked picks the reconnect delay: a short, capped
// exponential backoff while a connection has never succeeded, and the
// fixed long interval once one has — loss after success usually means a
// longer-lived network outage.
func (cm *ConnectionManager) reconnectDelayLocked() time.Duration {
	if cm.everConnected {
		return cm.cfg.ReconnectInterval
	}
	delay, _ := cm.initialBackoff.Next()
	return delay
}

// Stop tears down the socket, cancels any pending reconnect, and prevents
// further connects. The record store is untouched.
func (cm *ConnectionManager) Stop() {
	cm.mu.Lock()
	if cm.stopped {
		cm.mu.Unlock()
		return
	}
	cm.stopped = true
	if cm.reconnectTimer != nil {
		cm.reconnectTimer.Stop()
		cm.reconnectTimer = nil
	}
	conn := cm.conn
	cm.conn = nil
	cm.state = StateDisconnected
	if cm.connDone != nil {
		close(cm.connDone)
		cm.connDone = nil
	}
	cm.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// notifyState reports a state transition to the observer, if any.
func (cm *ConnectionManager) notifyState(state ConnState) {
	if cm.onStateChange != nil {
		cm.onStateChange(state)
	}
}

// realtimeEndpoint rewrites the configured http(s) base URL to ws(s) and
// appends the realtime path and device id.
func (cm *ConnectionManager) realtimeEndpoint() (string, error) {
	u, err := url.Parse(cm.cfg.BaseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + cm.cfg.RealtimePath + "/" + cm.meta.DeviceID
	return u.String(), nil
}

// socketToken mints a short-lived HMAC token identifying the device on
// the websocket handshake.
func (cm *ConnectionManager) socketToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": cm.meta.DeviceID,
		"src": cm.meta.Source,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(cm.secret))
}
