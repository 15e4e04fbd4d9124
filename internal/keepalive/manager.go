// Package keepalive bounds how many requests one persistent connection may
// carry. Once the budget is spent the next request on that connection is
// dropped together with the transport, without a response.
package keepalive

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRequests is the per-connection budget used when none is configured.
const DefaultMaxRequests = 40

// Decision is the outcome of OnRequest.
type Decision int

const (
	Admit Decision = iota
	Reject
)

func (d Decision) String() string {
	if d == Reject {
		return "reject"
	}
	return "admit"
}

// Observer is notified of connection lifecycle events.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	ConnectionRejected()
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()   {}
func (nopObserver) ConnectionClosed()   {}
func (nopObserver) ConnectionRejected() {}

// Connection is the per-transport state attached to every request context.
// Requests on one HTTP/1.1 connection run sequentially. ConnState reads the
// counters from another goroutine.
type Connection struct {
	ID       string
	Remote   string
	Accepted time.Time

	served   atomic.Int64
	rejected atomic.Bool
}

// Served returns the number of requests counted against the budget so far,
// including a rejected one.
func (c *Connection) Served() int64 {
	return c.served.Load()
}

// Rejected reports whether the connection ran out of budget.
func (c *Connection) Rejected() bool {
	return c.rejected.Load()
}

type ctxKey struct{}

// FromContext returns the connection a request arrived on, or nil when the
// request did not come through a server configured with Install.
func FromContext(ctx context.Context) *Connection {
	c, _ := ctx.Value(ctxKey{}).(*Connection)
	return c
}

// Option configures a Manager
type Option func(*Manager)

// WithObserver reports lifecycle events to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// Manager owns the budget policy and tracks open connections.
type Manager struct {
	maxRequests int64
	logger      *zap.Logger
	observer    Observer

	mu    sync.Mutex
	conns map[net.Conn]*Connection
}

// NewManager creates a Manager. A maxRequests of zero disables the budget.
func NewManager(maxRequests int, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		maxRequests: int64(maxRequests),
		logger:      logger,
		observer:    nopObserver{},
		conns:       make(map[net.Conn]*Connection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxRequests returns the configured budget.
func (m *Manager) MaxRequests() int {
	return int(m.maxRequests)
}

// Install hooks the manager into hs. Any ConnState already set keeps running.
func (m *Manager) Install(hs *http.Server) {
	prevConnContext := hs.ConnContext
	hs.ConnContext = func(ctx context.Context, c net.Conn) context.Context {
		if prevConnContext != nil {
			ctx = prevConnContext(ctx, c)
		}
		return m.OnAccept(ctx, c)
	}

	prevConnState := hs.ConnState
	hs.ConnState = func(c net.Conn, state http.ConnState) {
		m.ConnState(c, state)
		if prevConnState != nil {
			prevConnState(c, state)
		}
	}
}

// OnAccept attaches a fresh Connection with an empty counter to ctx.
func (m *Manager) OnAccept(ctx context.Context, c net.Conn) context.Context {
	conn := &Connection{
		ID:       uuid.NewString(),
		Remote:   c.RemoteAddr().String(),
		Accepted: time.Now(),
	}

	m.mu.Lock()
	m.conns[c] = conn
	m.mu.Unlock()

	m.observer.ConnectionOpened()
	m.logger.Debug("connection opened",
		zap.String("conn", conn.ID),
		zap.String("remote", conn.Remote))

	return context.WithValue(ctx, ctxKey{}, conn)
}

// OnRequest counts one request against conn's budget.
func (m *Manager) OnRequest(conn *Connection) Decision {
	n := conn.served.Add(1)
	if m.maxRequests > 0 && n > m.maxRequests {
		conn.rejected.Store(true)
		return Reject
	}
	return Admit
}

// ConnState forgets connections once net/http is done with them.
func (m *Manager) ConnState(c net.Conn, state http.ConnState) {
	if state != http.StateClosed && state != http.StateHijacked {
		return
	}

	m.mu.Lock()
	conn, ok := m.conns[c]
	delete(m.conns, c)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.observer.ConnectionClosed()
	m.logger.Debug("connection closed",
		zap.String("conn", conn.ID),
		zap.Int64("served", conn.Served()),
		zap.Bool("budget_exhausted", conn.Rejected()),
		zap.Duration("age", time.Since(conn.Accepted)))
}

// OpenConnections returns the number of connections accepted and not yet closed.
func (m *Manager) OpenConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
