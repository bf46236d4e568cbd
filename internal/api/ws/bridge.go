package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/relay"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// ErrSlowConsumer is returned to the relay when a connection's send buffer is full
var ErrSlowConsumer = errors.New("bridge connection send buffer full")

// Router is the relay surface a bridge connection uses
type Router interface {
	RegisterApp(name string, module types.Module, meta types.ModuleMetadata) types.Registration
	UnregisterApp(name string) bool
	Claim(name string)
	Release(name string)
	Route(signalType string, payload any, source, target string) types.Envelope
}

var _ Router = (*relay.Relay)(nil)

// Bridge exposes the relay over WebSocket. Every connection becomes a relay
// module named conn_<ulid>: it receives signals like any other module and
// the frames it sends are routed with itself as source.
type Bridge struct {
	relay    Router
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu    sync.Mutex
	conns map[string]*conn
}

// NewBridge creates a bridge on top of r
func NewBridge(r Router, logger *zap.Logger, metrics *monitoring.Metrics) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		conns:   make(map[string]*conn),
	}
}

// HandleConnection upgrades the request and serves the connection until it closes
func (b *Bridge) HandleConnection(c *gin.Context) {
	ws, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cn, ok := b.open(ws, c.ClientIP(), sendBuffer)
	if !ok {
		return
	}

	b.logger.Info("Bridge connection opened", zap.String("conn", cn.name), zap.String("remote", c.ClientIP()))

	go cn.writePump()
	cn.readPump()

	b.drop(cn)
	b.logger.Info("Bridge connection closed", zap.String("conn", cn.name))
}

// open tracks a new connection and registers it with the relay. The relay
// registration is claimed so signals cannot replace or remove it.
func (b *Bridge) open(ws *websocket.Conn, remote string, buffer int) (*conn, bool) {
	cn := &conn{
		name:   id.NewConnectionID().String(),
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		bridge: b,
	}

	b.mu.Lock()
	b.conns[cn.name] = cn
	b.mu.Unlock()
	b.metrics.IncBridgeConnections()
	cn.enqueue(ServerFrame{Type: FrameWelcome, Name: cn.name})

	b.relay.Claim(cn.name)
	reg := b.relay.RegisterApp(cn.name, cn, types.ModuleMetadata{
		Version:     "1",
		Description: "bridge connection from " + remote,
	})
	if reg.Status != types.RegistrationActive {
		b.logger.Error("Bridge connection rejected by relay", zap.String("conn", cn.name), zap.String("error", reg.LastError))
		b.drop(cn)
		return nil, false
	}
	return cn, true
}

// Connections returns the number of open connections
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close disconnects every client
func (b *Bridge) Close() {
	b.mu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for _, cn := range b.conns {
		conns = append(conns, cn)
	}
	b.mu.Unlock()

	for _, cn := range conns {
		cn.close()
	}
}

func (b *Bridge) drop(cn *conn) {
	b.mu.Lock()
	_, ok := b.conns[cn.name]
	delete(b.conns, cn.name)
	b.mu.Unlock()
	if !ok {
		return
	}

	b.relay.UnregisterApp(cn.name)
	b.relay.Release(cn.name)
	cn.close()
	b.metrics.DecBridgeConnections()
}

// conn is one client. It doubles as the relay module for that client.
type conn struct {
	name   string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	bridge *Bridge

	closeOnce sync.Once

	mu   sync.RWMutex
	subs map[string]bool // nil means every signal
}

func (c *conn) Init() error { return nil }

func (c *conn) Shutdown() error {
	c.close()
	return nil
}

// OnSignal forwards a delivered envelope to the client. A client that cannot
// keep up is disconnected; closing the socket ends readPump, which drops the
// connection from the bridge and the relay.
func (c *conn) OnSignal(signalType string, _ any, env types.Envelope) error {
	if !c.subscribed(signalType) {
		return nil
	}
	if !c.enqueue(ServerFrame{Type: FrameSignal, Signal: &env}) {
		c.bridge.logger.Warn("Dropping slow bridge connection", zap.String("conn", c.name), zap.String("signal", signalType))
		c.close()
		return ErrSlowConsumer
	}
	c.bridge.metrics.RecordBridgeMessage("out", signalType)
	return nil
}

func (c *conn) subscribed(signalType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs == nil || c.subs[signalType]
}

func (c *conn) subscribe(signalTypes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	for _, t := range signalTypes {
		c.subs[t] = true
	}
}

func (c *conn) unsubscribe(signalTypes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(signalTypes) == 0 {
		c.subs = nil
		return
	}
	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	for _, t := range signalTypes {
		delete(c.subs, t)
	}
}

// enqueue encodes frame and queues it without blocking
func (c *conn) enqueue(frame ServerFrame) bool {
	data, err := sonic.Marshal(frame)
	if err != nil {
		c.bridge.logger.Warn("Failed to encode bridge frame", zap.String("conn", c.name), zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.bridge.logger.Debug("Bridge read error", zap.String("conn", c.name), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := sonic.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			c.enqueue(ServerFrame{Type: FrameError, Message: "malformed frame"})
			continue
		}
		c.bridge.metrics.RecordBridgeMessage("in", frame.Type)

		switch frame.Type {
		case FramePing:
			c.enqueue(ServerFrame{Type: FramePong})
		case FrameSubscribe:
			c.subscribe(frame.Types)
		case FrameUnsubscribe:
			c.unsubscribe(frame.Types)
		default:
			c.bridge.relay.Route(frame.Type, frame.Payload, c.name, frame.Target)
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
