package solana

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer runs handler for every accepted connection; n counts connections from 1.
func wsServer(t *testing.T, handler func(c *websocket.Conn, n int32)) (*httptest.Server, string) {
	t.Helper()
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		handler(c, conns.Add(1))
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

// drain keeps reading so control frames are processed until the peer goes away.
func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// ackSubscribe reads one subscribe request and acknowledges it with subID.
func ackSubscribe(t *testing.T, c *websocket.Conn, wantMethod string, subID int64) *wsRequest {
	t.Helper()
	_, msg, err := c.ReadMessage()
	if err != nil {
		return nil
	}
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return nil
	}
	if req.Method != wantMethod {
		t.Errorf("expected %s, got %s", wantMethod, req.Method)
	}
	c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})
	return &req
}

func logsNotification(subID int64, slot int64, signature string) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": subID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": slot},
				"value": map[string]interface{}{
					"signature": signature,
					"logs":      []string{"Program log: Instruction: Create"},
					"err":       nil,
				},
			},
		},
	}
}

func fastConfig() *WSClientConfig {
	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.SubscribeTimeout = 2 * time.Second
	return &cfg
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server, url := wsServer(t, func(c *websocket.Conn, _ int32) {
		req := ackSubscribe(t, c, "logsSubscribe", 12345)
		if req != nil {
			filter := req.Params[0].(map[string]interface{})
			if mentions := filter["mentions"].([]interface{}); mentions[0] != "program" {
				t.Errorf("unexpected mentions %v", mentions)
			}
		}
		time.Sleep(50 * time.Millisecond)
		c.WriteJSON(logsNotification(12345, 100, "testsig"))
		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.Subscribe(ctx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if client.State() != StateSubscribed && client.State() != StateStreaming {
		t.Errorf("expected subscribed state, got %s", client.State())
	}

	select {
	case n := <-ch:
		if n.Slot != 100 {
			t.Errorf("expected slot 100, got %d", n.Slot)
		}
		logs, err := n.Logs()
		if err != nil {
			t.Fatalf("Logs: %v", err)
		}
		if logs.Signature != "testsig" || len(logs.Logs) != 1 {
			t.Errorf("unexpected logs value %+v", logs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
	if client.State() != StateStreaming {
		t.Errorf("expected streaming state, got %s", client.State())
	}
}

func TestWSClient_BlockSubscription(t *testing.T) {
	server, url := wsServer(t, func(c *websocket.Conn, _ int32) {
		req := ackSubscribe(t, c, "blockSubscribe", 7)
		if req != nil {
			opts := req.Params[1].(map[string]interface{})
			if opts["encoding"] != "base64" || opts["transactionDetails"] != "full" {
				t.Errorf("unexpected block options %v", opts)
			}
		}
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "blockNotification",
			"params": map[string]interface{}{
				"subscription": 7,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 55},
					"value": map[string]interface{}{
						"slot": 55,
						"block": map[string]interface{}{
							"blockhash":    "hash",
							"transactions": []interface{}{map[string]interface{}{"transaction": []string{"AQID", "base64"}}},
						},
						"err": nil,
					},
				},
			},
		})
		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.Subscribe(ctx, BlockSubscription("program", CommitmentConfirmed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case n := <-ch:
		block, err := n.Block()
		if err != nil {
			t.Fatalf("Block: %v", err)
		}
		if block.Slot != 55 || len(block.Block.Transactions) != 1 {
			t.Fatalf("unexpected block %+v", block)
		}
		raw, err := block.Block.Transactions[0].RawTransaction()
		if err != nil || len(raw) != 3 {
			t.Errorf("unexpected raw transaction %v (%v)", raw, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for block")
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	server, url := wsServer(t, func(c *websocket.Conn, n int32) {
		subID := int64(n)
		if ackSubscribe(t, c, "logsSubscribe", subID) == nil {
			return
		}
		// Leave time for the client to map the new subscription ID.
		time.Sleep(100 * time.Millisecond)
		if n == 1 {
			c.WriteJSON(logsNotification(subID, 1, "first"))
			time.Sleep(20 * time.Millisecond)
			return // drop the connection
		}
		c.WriteJSON(logsNotification(subID, 2, "second"))
		drain(c)
	})
	defer server.Close()

	var reconnects atomic.Int32
	cfg := fastConfig()
	cfg.OnReconnect = func() { reconnects.Add(1) }

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.Subscribe(ctx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var got []string
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case n := <-ch:
			logs, err := n.Logs()
			if err != nil {
				t.Fatalf("Logs: %v", err)
			}
			got = append(got, logs.Signature)
		case <-timeout:
			t.Fatalf("timeout, received %v", got)
		}
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected order %v", got)
	}
	if reconnects.Load() < 1 {
		t.Error("expected at least one reconnect")
	}
}

func TestWSClient_FailedResubscribeRedials(t *testing.T) {
	var conns atomic.Int32
	server, url := wsServer(t, func(c *websocket.Conn, n int32) {
		conns.Store(n)
		switch n {
		case 1:
			ackSubscribe(t, c, "logsSubscribe", 1)
			time.Sleep(50 * time.Millisecond)
			return // drop the connection
		case 2:
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			json.Unmarshal(msg, &req)
			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32000, "message": "busy"},
			})
			drain(c)
		default:
			if ackSubscribe(t, c, "logsSubscribe", 3) == nil {
				return
			}
			time.Sleep(100 * time.Millisecond)
			c.WriteJSON(logsNotification(3, 9, "after-retry"))
			drain(c)
		}
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.Subscribe(ctx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case n := <-ch:
		logs, err := n.Logs()
		if err != nil {
			t.Fatalf("Logs: %v", err)
		}
		if logs.Signature != "after-retry" {
			t.Errorf("unexpected signature %q", logs.Signature)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription was not restored after a rejected resubscribe")
	}
	if got := conns.Load(); got < 3 {
		t.Errorf("expected a redial after the rejected resubscribe, saw %d connections", got)
	}
}

func TestWSClient_InitialDialRetries(t *testing.T) {
	// Reserve an address nobody listens on yet.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, "ws://"+addr, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient should retry in the background, got %v", err)
	}
	defer client.Close()

	time.Sleep(60 * time.Millisecond)
	l, err = net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("address %s was taken: %v", addr, err)
	}
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		if ackSubscribe(t, c, "logsSubscribe", 5) == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
		c.WriteJSON(logsNotification(5, 1, "late-server"))
		drain(c)
	}))
	server.Listener.Close()
	server.Listener = l
	server.Start()
	defer server.Close()

	subCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ch, err := client.Subscribe(subCtx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case n := <-ch:
		logs, err := n.Logs()
		if err != nil || logs.Signature != "late-server" {
			t.Errorf("unexpected notification %+v (%v)", logs, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_InitialDialCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewWSClient(ctx, "ws://127.0.0.1:1", fastConfig()); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestWSClient_UnsubscribeReleasesReader(t *testing.T) {
	unsubscribed := make(chan []interface{}, 1)
	server, url := wsServer(t, func(c *websocket.Conn, _ int32) {
		if ackSubscribe(t, c, "logsSubscribe", 1) == nil {
			return
		}
		// More than the subscriber buffer, so the reader blocks.
		flooded := make(chan struct{})
		go func() {
			defer close(flooded)
			for i := 0; i < 1100; i++ {
				if err := c.WriteJSON(logsNotification(1, int64(i), "flood")); err != nil {
					return
				}
			}
		}()
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		json.Unmarshal(msg, &req)
		if req.Method != "logsUnsubscribe" {
			t.Errorf("expected logsUnsubscribe, got %s", req.Method)
		}
		unsubscribed <- req.Params
		<-flooded
		if ackSubscribe(t, c, "logsSubscribe", 2) == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
		c.WriteJSON(logsNotification(2, 1, "second-consumer"))
		drain(c)
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	first, err := client.Subscribe(ctx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for len(first) < cap(first) {
		if time.Now().After(deadline) {
			t.Fatalf("buffer never filled, have %d", len(first))
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The consumer stops reading and walks away.
	if err := client.Unsubscribe(first); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	select {
	case params := <-unsubscribed:
		if len(params) != 1 || params[0] != float64(1) {
			t.Errorf("unexpected unsubscribe params %v", params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw logsUnsubscribe")
	}

	second, err := client.Subscribe(ctx, LogsSubscription([]string{"program"}, CommitmentProcessed))
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	select {
	case n := <-second:
		logs, err := n.Logs()
		if err != nil || logs.Signature != "second-consumer" {
			t.Errorf("unexpected notification %+v (%v)", logs, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("read loop stalled behind the abandoned subscription")
	}

	if err := client.Unsubscribe(first); err != nil {
		t.Errorf("repeated Unsubscribe: %v", err)
	}
}

func TestWSClient_PongTimeoutForcesReconnect(t *testing.T) {
	var second = make(chan struct{}, 1)
	server, url := wsServer(t, func(c *websocket.Conn, n int32) {
		if n == 1 {
			// Swallow pings so the client never sees a pong.
			c.SetPingHandler(func(string) error { return nil })
		} else {
			select {
			case second <- struct{}{}:
			default:
			}
		}
		drain(c)
	})
	defer server.Close()

	cfg := fastConfig()
	cfg.PingInterval = 50 * time.Millisecond
	cfg.PongTimeout = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), url, cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	select {
	case <-second:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a second connection after pong timeout")
	}
}

func TestWSClient_SubscribeError(t *testing.T) {
	server, url := wsServer(t, func(c *websocket.Conn, _ int32) {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		json.Unmarshal(msg, &req)
		c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32601, "message": "Method not found"},
		})
		drain(c)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), url, fastConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.Subscribe(context.Background(), BlockSubscription("program", CommitmentConfirmed)); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestWSClient_Close(t *testing.T) {
	server, url := wsServer(t, func(c *websocket.Conn, _ int32) { drain(c) })
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, url, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected closed state, got %s", client.State())
	}

	// Double close should be safe
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if _, err := client.Subscribe(ctx, LogsSubscription(nil, CommitmentProcessed)); err == nil {
		t.Error("expected error subscribing after close")
	}
}
