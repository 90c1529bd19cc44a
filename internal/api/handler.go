// Package api provides the HTTP handlers and the WebSocket push channel for
// the ledger: transfer submission, snapshot and wallet queries, and a live
// feed of full snapshots.
//
// All monetary values use shopspring/decimal, never float64 for money.
package api

import (
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/ledger"
	"github.com/koi-labs/koi-ledger/internal/model"
)

//go:embed static/index.html
var indexHTML []byte

// Ledger is the part of the ledger the HTTP surface needs.
type Ledger interface {
	Snapshotter
	Transfer(from, to string, amount decimal.Decimal) error
	Wallet(name string) (model.Wallet, error)
	Contributions() map[string]decimal.Decimal
	Config() ledger.Config
}

// Handler serves the ledger's HTTP API.
type Handler struct {
	ledger Ledger
}

// NewHandler creates a handler backed by l.
func NewHandler(l Ledger) *Handler {
	return &Handler{ledger: l}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Route("/api", func(r chi.Router) {
		r.Post("/send", h.Send)
		r.Get("/snapshot", h.Snapshot)
		r.Get("/wallets/{name}", h.GetWallet)
		r.Get("/lottery", h.Lottery)
	})
}

// --- Request/Response types ---

// SendRequest is the JSON body for POST /api/send. A transfer to self is an
// early redemption of amount.
type SendRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// SendResponse is the JSON body returned from POST /api/send.
type SendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// LotteryResponse is the JSON body returned from GET /api/lottery.
type LotteryResponse struct {
	Enabled       bool                       `json:"enabled"`
	Wallet        string                     `json:"wallet,omitempty"`
	Threshold     decimal.Decimal            `json:"threshold"`
	Payout        decimal.Decimal            `json:"payout"`
	Pot           decimal.Decimal            `json:"pot"`
	Contributions map[string]decimal.Decimal `json:"contributions"`
}

// --- HTTP Handlers ---

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// Send handles POST /api/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SendResponse{Error: "invalid request body"})
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, SendResponse{Error: "from and to are required"})
		return
	}

	if err := h.ledger.Transfer(req.From, req.To, req.Amount); err != nil {
		slog.Debug("transfer rejected",
			"from", req.From,
			"to", req.To,
			"amount", req.Amount.String(),
			"err", err,
		)
		writeJSON(w, statusFor(err), SendResponse{Error: err.Error()})
		return
	}

	slog.Info("transfer executed",
		"from", req.From,
		"to", req.To,
		"amount", req.Amount.String(),
	)
	writeJSON(w, http.StatusOK, SendResponse{OK: true})
}

// Snapshot handles GET /api/snapshot
func (h *Handler) Snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

// GetWallet handles GET /api/wallets/{name}
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.ledger.Wallet(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Lottery handles GET /api/lottery
// Returns the lottery parameters, the pot and the current contributions.
func (h *Handler) Lottery(w http.ResponseWriter, _ *http.Request) {
	cfg := h.ledger.Config().Lottery
	resp := LotteryResponse{
		Enabled:       cfg.Enabled(),
		Wallet:        cfg.Wallet,
		Threshold:     cfg.Threshold,
		Payout:        cfg.Payout,
		Contributions: h.ledger.Contributions(),
	}
	if resp.Enabled {
		pot, err := h.ledger.Wallet(cfg.Wallet)
		if err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Pot = pot.Balance
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a ledger error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSelfIssuerOperation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownWallet):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrExceedsAvailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
