package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by calls on a closed client.
var ErrClientClosed = errors.New("client closed")

// ConnState is the lifecycle state of a WebSocket client.
type ConnState int32

// Connection states. A dropped connection goes back to StateConnecting.
const (
	StateConnecting ConnState = iota
	StateSubscribed
	StateStreaming
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ConnState(%d)", int32(s))
}

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout closes the connection when a ping goes unanswered this long.
	PongTimeout time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription acknowledgement.
	SubscribeTimeout time.Duration
	// OnReconnect is called after every successful redial.
	OnReconnect func()
	Logger      *log.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: 5 * time.Second,
		PingInterval:      20 * time.Second,
		PongTimeout:       10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

type subscription struct {
	sub  Subscription
	ch   chan Notification
	gone chan struct{} // closed by Unsubscribe
}

type subResult struct {
	id  int64
	err error
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger

	conn      *websocket.Conn
	up        chan struct{} // closed while conn is set
	connMu    sync.Mutex
	closed    atomic.Bool
	state     atomic.Int32
	requestID atomic.Uint64
	lastPong  atomic.Int64

	// subs maps the server-side subscription ID to its channel.
	subs   map[int64]*subscription
	subsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan subResult
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
// A failed first dial is retried in the background like any later drop;
// only a cancelled ctx makes it return an error.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger,
		subs:        make(map[int64]*subscription),
		pendingSubs: make(map[uint64]chan subResult),
		up:          make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Printf("[ws] Initial connect failed: %v, retrying in background", err)
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// State returns the current connection state.
func (c *WSClientImpl) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *WSClientImpl) setState(s ConnState) {
	if c.closed.Load() && s != StateClosed {
		return
	}
	c.state.Store(int32(s))
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.lastPong.Store(time.Now().UnixNano())
	c.connMu.Lock()
	c.conn = conn
	close(c.up)
	c.connMu.Unlock()
	return nil
}

// dropConn closes conn if it is still current so readLoop redials.
func (c *WSClientImpl) dropConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if conn == nil || c.conn != conn {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.up = make(chan struct{})
}

// waitConnected blocks until a connection is up.
func (c *WSClientImpl) waitConnected(ctx context.Context) error {
	c.connMu.Lock()
	up := c.up
	c.connMu.Unlock()

	select {
	case <-up:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe waits for a connection, sends a subscription request and waits
// for its acknowledgement.
func (c *WSClientImpl) Subscribe(ctx context.Context, sub Subscription) (<-chan Notification, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if err := c.waitConnected(ctx); err != nil {
		return nil, err
	}
	subID, err := c.subscribe(ctx, sub)
	if err != nil {
		return nil, err
	}

	// Blocking send ensures no event loss; buffer absorbs bursts.
	s := &subscription{sub: sub, ch: make(chan Notification, 1024), gone: make(chan struct{})}
	c.subsMu.Lock()
	c.subs[subID] = s
	c.subsMu.Unlock()
	c.setState(StateSubscribed)

	return s.ch, nil
}

// subscribe sends the request without registering a channel.
func (c *WSClientImpl) subscribe(ctx context.Context, sub Subscription) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  sub.Method,
		Params:  sub.Params,
	}

	confirmCh := make(chan subResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		dropPending()
		return 0, fmt.Errorf("write %s: %w", sub.Method, err)
	}

	select {
	case res, ok := <-confirmCh:
		if !ok {
			return 0, ErrClientClosed
		}
		if res.err != nil {
			return 0, fmt.Errorf("%s: %w", sub.Method, res.err)
		}
		return res.id, nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("%s timeout after %v", sub.Method, c.config.SubscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// Unsubscribe detaches ch so no further notifications are queued on it and
// tells the server, best-effort. ch is not closed.
func (c *WSClientImpl) Unsubscribe(ch <-chan Notification) error {
	c.subsMu.Lock()
	var (
		id    int64
		found *subscription
	)
	for subID, s := range c.subs {
		if (<-chan Notification)(s.ch) == ch {
			id, found = subID, s
			delete(c.subs, subID)
			break
		}
	}
	c.subsMu.Unlock()
	if found == nil {
		return nil
	}
	close(found.gone)

	if found.sub.Unsubscribe == "" || c.closed.Load() {
		return nil
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  found.sub.Unsubscribe,
		Params:  []interface{}{id},
	}
	if err := c.writeJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", found.sub.Unsubscribe, err)
	}
	return nil
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}
	c.state.Store(int32(StateClosed))

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	// Readers are gone, so nothing sends on these channels any more.
	c.subsMu.Lock()
	for id, s := range c.subs {
		close(s.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

// readLoop reads messages and dispatches them, redialing on any read error.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Printf("[ws] Connection lost: %v", err)
			c.dropConn(conn)
			c.setState(StateConnecting)
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect redials until it succeeds or the client closes, then
// resubscribes in the background so readLoop can read the acknowledgements.
func (c *WSClientImpl) reconnect() bool {
	delay := c.config.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			c.logger.Printf("[ws] Reconnected after %d attempt(s)", attempt)
			if c.config.OnReconnect != nil {
				c.config.OnReconnect()
			}
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.resubscribeAll(conn)
			}()
			return true
		}

		c.logger.Printf("[ws] Reconnect attempt %d failed: %v", attempt, err)
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// resubscribeAll re-issues every active subscription on conn and moves its
// channel to the new server-side ID. Any failure drops conn, so the next
// redial retries every subscription that still has its old ID.
func (c *WSClientImpl) resubscribeAll(conn *websocket.Conn) {
	c.subsMu.RLock()
	active := make(map[int64]*subscription, len(c.subs))
	for id, s := range c.subs {
		active[id] = s
	}
	c.subsMu.RUnlock()

	for oldID, s := range active {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.SubscribeTimeout)
		newID, err := c.subscribe(ctx, s.sub)
		cancel()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Printf("[ws] Resubscribe %s failed: %v, dropping connection", s.sub.Method, err)
			c.dropConn(conn)
			return
		}

		c.subsMu.Lock()
		if c.subs[oldID] == s {
			delete(c.subs, oldID)
			c.subs[newID] = s
		}
		c.subsMu.Unlock()
	}
	c.setState(StateSubscribed)
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Printf("[ws] Dropping undecodable message: %v", err)
		return
	}

	switch {
	case env.Method != "" && env.Params != nil:
		c.handleNotification(&env)
	case env.ID != nil:
		c.handleResponse(&env)
	}
}

// handleResponse resolves a pending subscription request.
func (c *WSClientImpl) handleResponse(env *wsEnvelope) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[*env.ID]
	if ok {
		delete(c.pendingSubs, *env.ID)
	}
	c.pendingSubsMu.Unlock()
	if !ok {
		return
	}

	var res subResult
	if env.Error != nil {
		res.err = env.Error
	} else if err := json.Unmarshal(env.Result, &res.id); err != nil {
		res.err = fmt.Errorf("decode subscription id: %w", err)
	}
	select {
	case ch <- res:
	default:
	}
}

// handleNotification dispatches a notification to its subscriber.
func (c *WSClientImpl) handleNotification(env *wsEnvelope) {
	c.subsMu.RLock()
	s, ok := c.subs[env.Params.Subscription]
	c.subsMu.RUnlock()
	if !ok || s.sub.Notification != env.Method {
		return
	}

	n := Notification{Method: env.Method}
	var result wsNotificationResult
	if err := json.Unmarshal(env.Params.Result, &result); err == nil && result.Value != nil {
		n.Value = result.Value
		if result.Context != nil {
			n.Slot = result.Context.Slot
		}
	} else {
		n.Value = env.Params.Result
	}
	c.setState(StateStreaming)

	// Block until we can send - never drop events of a live subscriber
	select {
	case s.ch <- n:
	case <-s.gone:
	case <-c.done:
	}
}

// pingLoop sends a ping every PingInterval and drops the connection when
// no pong follows within PongTimeout.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.connMu.Lock()
		conn := c.conn
		var err error
		if conn != nil {
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
		}
		c.connMu.Unlock()
		if conn == nil || err != nil {
			continue
		}
		sent := time.Now()

		select {
		case <-c.done:
			return
		case <-time.After(c.config.PongTimeout):
		}

		if time.Unix(0, c.lastPong.Load()).Before(sent) {
			c.logger.Printf("[ws] No pong within %v, closing connection", c.config.PongTimeout)
			conn.Close()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers responses ({id, result|error}) and notifications ({method, params}).
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id"`
	Result  json.RawMessage       `json:"result"`
	Error   *RPCError             `json:"error"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext      `json:"context"`
	Value   json.RawMessage `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)
