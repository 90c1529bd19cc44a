package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/api"
	"github.com/koi-labs/koi-ledger/internal/ledger"
	"github.com/koi-labs/koi-ledger/internal/lottery"
	"github.com/koi-labs/koi-ledger/internal/model"
	"github.com/koi-labs/koi-ledger/internal/notify"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() ledger.Config {
	cfg := ledger.DefaultConfig()
	cfg.Wallets = []ledger.WalletSpec{
		{Name: "Alice", Gift: d(10_000)},
		{Name: "Bob", Gift: d(1000)},
		{Name: "Carol", Gift: d(1000)},
		{Name: "Millionaire", Contract: true},
	}
	cfg.Size = 0
	cfg.GiftPool = decimal.Zero
	cfg.Lottery = lottery.Config{Wallet: "Millionaire", Threshold: d(500), Payout: d(400)}
	return cfg
}

// newTestEnv creates a ledger on a fixed clock, wired to a broker, and a
// chi router with the API mounted.
func newTestEnv(t *testing.T) (*ledger.Ledger, *notify.Broker, chi.Router) {
	t.Helper()
	broker := notify.NewBroker()
	l, err := ledger.New(testConfig(),
		ledger.WithClock(func() time.Time { return t0 }),
		ledger.WithRand(rand.New(rand.NewPCG(1, 2))),
		ledger.WithNotifier(broker),
	)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	r := chi.NewRouter()
	api.NewHandler(l).Routes(r)
	return l, broker, r
}

func doSend(t *testing.T, router chi.Router, body string) (*httptest.ResponseRecorder, api.SendResponse) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp api.SendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w, resp
}

// --- Send ---

func TestSend_OK(t *testing.T) {
	l, _, router := newTestEnv(t)

	w, resp := doSend(t, router, `{"from":"Bob","to":"Carol","amount":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, resp.Error)
	}
	if !resp.OK || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}
	carol, _ := l.Wallet("Carol")
	if !carol.Holdings().Equal(d(1100)) {
		t.Errorf("Carol holdings = %s, want 1100", carol.Holdings())
	}
}

func TestSend_StringAmount(t *testing.T) {
	_, _, router := newTestEnv(t)

	w, resp := doSend(t, router, `{"from":"Bob","to":"Carol","amount":"0.000000000001"}`)
	if w.Code != http.StatusOK || !resp.OK {
		t.Errorf("expected smallest unit to be accepted, got %d %+v", w.Code, resp)
	}
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		substr string
	}{
		{"bad json", `{not json`, http.StatusBadRequest, "invalid request body"},
		{"missing names", `{"amount":1}`, http.StatusBadRequest, "required"},
		{"zero amount", `{"from":"Bob","to":"Carol","amount":0}`, http.StatusBadRequest, "invalid amount"},
		{"negative amount", `{"from":"Bob","to":"Carol","amount":-1}`, http.StatusBadRequest, "invalid amount"},
		{"issuer redeem", `{"from":"Koi","to":"Koi","amount":1}`, http.StatusBadRequest, "issuer"},
		{"unknown wallet", `{"from":"Bob","to":"Mallory","amount":1}`, http.StatusNotFound, "Mallory"},
		{"insufficient", `{"from":"Bob","to":"Carol","amount":5000}`, http.StatusConflict, "insufficient"},
		{"exceeds available", `{"from":"Bob","to":"Bob","amount":600}`, http.StatusConflict, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, router := newTestEnv(t)
			w, resp := doSend(t, router, tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d (%s)", tt.status, w.Code, resp.Error)
			}
			if resp.OK || !strings.Contains(resp.Error, tt.substr) {
				t.Errorf("expected error containing %q, got %+v", tt.substr, resp)
			}
		})
	}
}

func TestSend_SelfRedeem(t *testing.T) {
	_, _, router := newTestEnv(t)

	w, resp := doSend(t, router, `{"from":"Bob","to":"Bob","amount":100}`)
	if w.Code != http.StatusOK || !resp.OK {
		t.Errorf("expected early claim within ceiling to succeed, got %d %+v", w.Code, resp)
	}
}

// --- Queries ---

func TestSnapshot(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/snapshot", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view model.View
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Wallets) != 5 || view.Wallets[0].Name != "Koi" {
		t.Errorf("unexpected wallets %+v", view.Wallets)
	}
	if len(view.Log) != 3 {
		t.Errorf("expected 3 gift entries, got %d", len(view.Log))
	}
	if !view.Supply.Equal(d(1e9)) || view.SecondsPerYear != model.SecondsPerYear {
		t.Errorf("unexpected constants supply=%s spy=%v", view.Supply, view.SecondsPerYear)
	}
}

func TestGetWallet(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/wallets/Bob", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var wallet model.Wallet
	json.NewDecoder(w.Body).Decode(&wallet)
	if wallet.Name != "Bob" || !wallet.Holdings().Equal(d(1000)) {
		t.Errorf("unexpected wallet %+v", wallet)
	}

	req = httptest.NewRequest("GET", "/api/wallets/Nobody", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestLottery(t *testing.T) {
	_, _, router := newTestEnv(t)
	doSend(t, router, `{"from":"Bob","to":"Millionaire","amount":100}`)

	req := httptest.NewRequest("GET", "/api/lottery", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp api.LotteryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Enabled || resp.Wallet != "Millionaire" || !resp.Payout.Equal(d(400)) {
		t.Errorf("unexpected lottery config %+v", resp)
	}
	if !resp.Pot.Equal(d(100)) {
		t.Errorf("pot = %s, want 100", resp.Pot)
	}
	if !resp.Contributions["Bob"].Equal(d(100)) {
		t.Errorf("contributions = %v", resp.Contributions)
	}
}

func TestIndex(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("/ws")) {
		t.Error("page should connect to the push channel")
	}
}

// --- WebSocket push ---

func readView(t *testing.T, conn *websocket.Conn) model.View {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var view model.View
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return view
}

func TestHub_PushesSnapshots(t *testing.T) {
	l, broker, _ := newTestEnv(t)
	hub := api.NewHub(l)
	sub := broker.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, sub.C())

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readView(t, conn)
	if len(initial.Log) != 3 {
		t.Fatalf("initial snapshot should carry the gifts, got %d entries", len(initial.Log))
	}

	if err := l.Transfer("Bob", "Carol", d(10)); err != nil {
		t.Fatal(err)
	}
	update := readView(t, conn)
	if len(update.Log) != 4 {
		t.Errorf("expected pushed snapshot with 4 entries, got %d", len(update.Log))
	}
	if hub.Clients() != 1 {
		t.Errorf("expected 1 client, got %d", hub.Clients())
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	l, _, _ := newTestEnv(t)
	hub := api.NewHub(l)
	signals := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, signals)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readView(t, conn)

	cancel()
	<-done

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed after shutdown")
	}
	if hub.Clients() != 0 {
		t.Errorf("expected no clients, got %d", hub.Clients())
	}
}
