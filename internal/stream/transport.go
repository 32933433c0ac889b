// Package stream maintains the market-data websocket connection and hands
// raw frames to the caller one at a time.
package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the transport lifecycle phase. It only moves forward; a failed
// connection is not retried, the caller decides whether to start over.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateSecuringTransport
	StateProtocolHandshake
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateSecuringTransport:
		return "securing-transport"
	case StateProtocolHandshake:
		return "protocol-handshake"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportError wraps a failure with the phase it occurred in.
type TransportError struct {
	Stage State
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream: %s: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

const defaultUserAgent = "triarb-core/1.0"

// Config describes one websocket endpoint.
type Config struct {
	Host   string
	Port   string
	Target string // request target, e.g. /stream?streams=a/b/c

	ConnectTimeout  time.Duration
	ReadIdleTimeout time.Duration // a healthy depth stream ticks well inside this

	// DisableTLS connects over plain TCP. Tests only; the production
	// endpoint always runs TLS with full certificate verification.
	DisableTLS bool
	UserAgent  string
}

// FrameHandler consumes one raw frame. It runs on the read loop goroutine,
// so a slow handler directly backpressures the socket.
type FrameHandler func(raw []byte)

// Transport drives the connection through resolve, connect, TLS, and the
// websocket handshake, then pumps frames until the peer or context ends it.
type Transport struct {
	cfg   Config
	state atomic.Int32
}

func NewTransport(cfg Config) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadIdleTimeout <= 0 {
		cfg.ReadIdleTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Transport{cfg: cfg}
}

// State returns the current lifecycle phase.
func (t *Transport) State() State {
	return State(t.state.Load())
}

func (t *Transport) setState(s State) {
	t.state.Store(int32(s))
	log.Printf("stream: %s", s)
}

// Run executes the full connection lifecycle and blocks pumping frames.
// It always returns a non-nil error describing why streaming ended; on
// failure before streaming the error carries the phase that failed.
func (t *Transport) Run(ctx context.Context, onFrame FrameHandler) error {
	defer t.setState(StateClosed)

	t.setState(StateResolving)
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(dialCtx, t.cfg.Host)
	if err != nil {
		return &TransportError{Stage: StateResolving, Err: err}
	}

	t.setState(StateConnecting)
	conn, err := t.dialFirst(dialCtx, addrs)
	if err != nil {
		return &TransportError{Stage: StateConnecting, Err: err}
	}

	if !t.cfg.DisableTLS {
		t.setState(StateSecuringTransport)
		tlsConn := tls.Client(conn, &tls.Config{ServerName: t.cfg.Host})
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return &TransportError{Stage: StateSecuringTransport, Err: err}
		}
		conn = tlsConn
	}

	t.setState(StateProtocolHandshake)
	ws, err := t.handshake(conn)
	if err != nil {
		conn.Close()
		return &TransportError{Stage: StateProtocolHandshake, Err: err}
	}
	defer ws.Close()

	t.setState(StateStreaming)
	return t.pump(ctx, ws, onFrame)
}

func (t *Transport) dialFirst(ctx context.Context, addrs []string) (net.Conn, error) {
	var dialer net.Dialer
	var lastErr error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, t.cfg.Port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses for %s", t.cfg.Host)
	}
	return nil, lastErr
}

func (t *Transport) handshake(conn net.Conn) (*websocket.Conn, error) {
	scheme := "wss"
	if t.cfg.DisableTLS {
		scheme = "ws"
	}
	u, err := url.Parse(scheme + "://" + net.JoinHostPort(t.cfg.Host, t.cfg.Port) + t.cfg.Target)
	if err != nil {
		return nil, err
	}
	header := http.Header{"User-Agent": []string{t.cfg.UserAgent}}
	ws, resp, err := websocket.NewClient(conn, u, header, 4096, 4096)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, err
	}
	return ws, nil
}

// pump reads frames one at a time and hands each to the handler before
// issuing the next read. The idle deadline is re-armed per read, so a feed
// that goes silent tears the connection down instead of hanging forever.
func (t *Transport) pump(ctx context.Context, ws *websocket.Conn, onFrame FrameHandler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	for {
		if err := ws.SetReadDeadline(time.Now().Add(t.cfg.ReadIdleTimeout)); err != nil {
			return fmt.Errorf("stream: set read deadline: %w", err)
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("stream: closed: %w", ctx.Err())
			}
			return fmt.Errorf("stream: read: %w", err)
		}
		onFrame(raw)
	}
}
