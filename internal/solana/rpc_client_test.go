package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every request with handler's result.
func rpcServer(t *testing.T, handler func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetHealth(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getHealth" {
			t.Errorf("expected method getHealth, got %s", req.Method)
		}
		return "ok"
	})
	defer server.Close()

	if err := NewHTTPClient(server.URL).GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		cfg, _ := req.Params[0].(map[string]interface{})
		if cfg["commitment"] != "finalized" {
			t.Errorf("expected finalized commitment, got %v", cfg["commitment"])
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
				"lastValidBlockHeight": 3090,
			},
		}
	})
	defer server.Close()

	bh, err := NewHTTPClient(server.URL).GetLatestBlockhash(context.Background(), CommitmentFinalized)
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N" {
		t.Errorf("unexpected blockhash %s", bh.Blockhash)
	}
	if bh.LastValidBlockHeight != 3090 {
		t.Errorf("expected lastValidBlockHeight 3090, got %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected payload %v", req.Params[0])
		}
		cfg := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" || cfg["skipPreflight"] != true {
			t.Errorf("unexpected config %v", cfg)
		}
		return "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	})
	defer server.Close()

	sig, err := NewHTTPClient(server.URL).SendTransaction(context.Background(), raw, SendOptions{SkipPreflight: true})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig == "" {
		t.Error("expected signature")
	}
}

func TestHTTPClient_SendTransaction_NoTransportRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	if _, err := client.SendTransaction(context.Background(), []byte{1}, SendOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 82},
			"value": []interface{}{
				map[string]interface{}{"slot": 72, "confirmations": 10, "err": nil, "confirmationStatus": "confirmed"},
				nil,
				map[string]interface{}{"slot": 48, "confirmations": nil, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, "confirmationStatus": "finalized"},
			},
		}
	})
	defer server.Close()

	statuses, err := NewHTTPClient(server.URL).GetSignatureStatuses(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Reached(CommitmentConfirmed) {
		t.Error("first status should have reached confirmed")
	}
	if statuses[0].Reached(CommitmentFinalized) {
		t.Error("first status should not have reached finalized")
	}
	if statuses[1].Reached(CommitmentProcessed) {
		t.Error("unknown signature cannot be reached")
	}
	if statuses[2].Reached(CommitmentConfirmed) {
		t.Error("failed transaction must not count as confirmed")
	}
}

func TestHTTPClient_Balances(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		switch req.Method {
		case "getTokenAccountBalance":
			return map[string]interface{}{
				"value": map[string]interface{}{"amount": "1500000000", "decimals": 6, "uiAmount": 1500.0, "uiAmountString": "1500"},
			}
		case "getBalance":
			return map[string]interface{}{"value": 2_500_000_000}
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	amount, err := client.GetTokenAccountBalance(ctx, "ata")
	if err != nil {
		t.Fatalf("GetTokenAccountBalance: %v", err)
	}
	raw, err := amount.Raw()
	if err != nil || raw != 1_500_000_000 {
		t.Errorf("expected raw 1500000000, got %d (%v)", raw, err)
	}

	lamports, err := client.GetBalance(ctx, "owner")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 2_500_000_000 {
		t.Errorf("expected 2500000000 lamports, got %d", lamports)
	}
}

func TestHTTPClient_GetRecentPrioritizationFees(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		accounts, _ := req.Params[0].([]interface{})
		if len(accounts) != 1 || accounts[0] != "program" {
			t.Errorf("unexpected accounts %v", req.Params)
		}
		return []map[string]interface{}{
			{"slot": 1, "prioritizationFee": 0},
			{"slot": 2, "prioritizationFee": 1000},
		}
	})
	defer server.Close()

	fees, err := NewHTTPClient(server.URL).GetRecentPrioritizationFees(context.Background(), []string{"program"})
	if err != nil {
		t.Fatalf("GetRecentPrioritizationFees: %v", err)
	}
	if len(fees) != 2 || fees[1].PrioritizationFee != 1000 {
		t.Errorf("unexpected fees %+v", fees)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("curve-state"))
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Params[0] == "missing" {
			return map[string]interface{}{"value": nil}
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports": 2039280, "owner": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data": []string{data, "base64"}, "executable": false, "rentEpoch": 0,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "present")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	decoded, err := info.DecodeData()
	if err != nil || string(decoded) != "curve-state" {
		t.Errorf("unexpected data %q (%v)", decoded, err)
	}

	info, err = client.GetAccountInfo(ctx, "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": 999},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	balance, err := client.GetBalance(context.Background(), "owner")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 999 {
		t.Errorf("expected balance 999, got %d", balance)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid param: could not find account",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetTokenAccountBalance(context.Background(), "ata")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_Observer(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} { return "ok" })
	defer server.Close()

	var observed string
	client := NewHTTPClient(server.URL, WithObserver(func(method string, d time.Duration, err error) {
		observed = method
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	}))
	if err := client.GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if observed != "getHealth" {
		t.Errorf("expected observer for getHealth, got %q", observed)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetBalance(ctx, "owner")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
