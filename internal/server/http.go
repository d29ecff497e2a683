// Package server exposes the escrow engine over HTTP/JSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/account"
	"github.com/mn-coding-cop/EigenLabsTask/internal/core"
	"github.com/mn-coding-cop/EigenLabsTask/internal/observability"
	"github.com/rs/zerolog"
)

// CallerHeader carries the authenticated account id for mutating
// operations. Authentication itself is expected to happen upstream
// (gateway or sidecar); the server trusts the header.
const CallerHeader = "X-Account-ID"

// Server wraps the engine with an HTTP API. The engine core is
// single-threaded, so all access goes through mu.
type Server struct {
	mu      sync.Mutex
	engine  *core.Engine
	clock   func() time.Time
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(engine *core.Engine, clock func() time.Time, metrics *observability.Metrics, log zerolog.Logger) *Server {
	if clock == nil {
		clock = time.Now
	}
	return &Server{engine: engine, clock: clock, metrics: metrics, log: log}
}

// WithLock runs fn while holding the engine lock. Used by the snapshot
// path to capture a consistent view of engine state.
func (s *Server) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Router builds the chi router for the v1 API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", s.handleRegisterAccount)
		r.Get("/accounts/{id}/balance", s.handleBalance)
		r.Get("/accounts/{id}/purchases", s.handlePurchases)
		r.Get("/accounts/{id}/sales", s.handleSales)

		r.Post("/swaps", s.handleCreateSwap)
		r.Get("/swaps/resolve", s.handleResolveSwap)
		r.Get("/swaps/{id}", s.handleGetSwap)
		r.Post("/swaps/{id}/execute", s.handleExecuteSwap)
		r.Post("/swaps/{id}/cancel", s.handleCancelSwap)

		r.Post("/items", s.handleListItem)
		r.Get("/items/{id}", s.handleGetItem)
		r.Post("/items/{id}/price", s.handleUpdatePrice)
		r.Post("/items/{id}/relist", s.handleRelistItem)
		r.Post("/items/{id}/purchase", s.handlePurchaseItem)

		r.Post("/withdrawals", s.handleWithdraw)
	})

	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics != nil {
			route := chi.RouteContext(r.Context()).RoutePattern()
			status := strconv.Itoa(ww.Status())
			s.metrics.HTTPRequests.WithLabelValues(route, status).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// opContext extracts the caller account and stamps the current time.
// Returns false (and writes a 400) if the caller header is missing or
// malformed.
func (s *Server) opContext(w http.ResponseWriter, r *http.Request) (core.OpContext, bool) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing "+CallerHeader+" header")
		return core.OpContext{}, false
	}
	caller, err := uuid.Parse(raw)
	if err != nil || caller == uuid.Nil {
		writeError(w, http.StatusBadRequest, "invalid "+CallerHeader+" header")
		return core.OpContext{}, false
	}
	return core.OpContext{Caller: caller, Now: s.clock()}, true
}

type registerAccountRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	var req registerAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	err := s.engine.RegisterAccount(ctx, req.Username)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"account":  ctx.Caller.String(),
		"username": req.Username,
	})
}

type createSwapRequest struct {
	Counterparty string `json:"counterparty"`
	AssetA       string `json:"asset_a"`
	AssetB       string `json:"asset_b"`
	AmountA      int64  `json:"amount_a"`
	AmountB      int64  `json:"amount_b"`
	Expiry       string `json:"expiry"`
}

func (req *createSwapRequest) params() (core.SwapParams, error) {
	counterparty, err := uuid.Parse(req.Counterparty)
	if err != nil {
		return core.SwapParams{}, errors.New("invalid counterparty")
	}
	expiry, err := time.Parse(time.RFC3339, req.Expiry)
	if err != nil {
		return core.SwapParams{}, errors.New("invalid expiry, want RFC3339")
	}
	return core.SwapParams{
		Counterparty: counterparty,
		AssetA:       req.AssetA,
		AssetB:       req.AssetB,
		AmountA:      req.AmountA,
		AmountB:      req.AmountB,
		Expiry:       expiry,
	}, nil
}

func (s *Server) handleCreateSwap(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	var req createSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	params, err := req.params()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	id, err := s.engine.CreateSwap(ctx, params)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"swap_id": id.String()})
}

func (s *Server) handleResolveSwap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	initiator, err := uuid.Parse(q.Get("initiator"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid initiator")
		return
	}
	req := createSwapRequest{
		Counterparty: q.Get("counterparty"),
		AssetA:       q.Get("asset_a"),
		AssetB:       q.Get("asset_b"),
		Expiry:       q.Get("expiry"),
	}
	if req.AmountA, err = strconv.ParseInt(q.Get("amount_a"), 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_a")
		return
	}
	if req.AmountB, err = strconv.ParseInt(q.Get("amount_b"), 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_b")
		return
	}
	params, err := req.params()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	id, live := s.engine.ResolveSwapID(initiator, params)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"swap_id": id.String(), "live": live})
}

func (s *Server) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseSwapID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid swap id")
		return
	}

	s.mu.Lock()
	swap, live := s.engine.GetSwap(id)
	s.mu.Unlock()
	if !live {
		writeError(w, http.StatusNotFound, "swap not found")
		return
	}
	writeJSON(w, http.StatusOK, swapResponse(swap))
}

func swapResponse(s core.Swap) map[string]any {
	return map[string]any{
		"swap_id":      s.ID.String(),
		"initiator":    s.Initiator.String(),
		"counterparty": s.Counterparty.String(),
		"asset_a":      s.AssetA,
		"asset_b":      s.AssetB,
		"amount_a":     s.AmountA,
		"amount_b":     s.AmountB,
		"expiry":       s.Expiry.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleExecuteSwap(w http.ResponseWriter, r *http.Request) {
	s.swapAction(w, r, s.engine.ExecuteSwap)
}

func (s *Server) handleCancelSwap(w http.ResponseWriter, r *http.Request) {
	s.swapAction(w, r, s.engine.CancelSwap)
}

func (s *Server) swapAction(w http.ResponseWriter, r *http.Request, fn func(core.OpContext, core.SwapID) error) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	id, err := core.ParseSwapID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid swap id")
		return
	}

	s.mu.Lock()
	err = fn(ctx, id)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"swap_id": id.String(), "status": "done"})
}

type listItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

func (s *Server) handleListItem(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	var req listItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	itemID, err := s.engine.ListItem(ctx, req.Name, req.Description, req.Price)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"item_id": itemID})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	s.mu.Lock()
	item := s.engine.GetItem(itemID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":     item.ID,
		"name":        item.Name,
		"description": item.Description,
		"price":       item.Price,
		"owner":       item.Owner.String(),
		"sold":        item.Sold,
	})
}

type priceRequest struct {
	Price int64 `json:"price"`
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	s.itemPriceAction(w, r, s.engine.UpdateItemPrice)
}

func (s *Server) handleRelistItem(w http.ResponseWriter, r *http.Request) {
	s.itemPriceAction(w, r, s.engine.RelistItem)
}

func (s *Server) itemPriceAction(w http.ResponseWriter, r *http.Request, fn func(core.OpContext, uint64, int64) error) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	err = fn(ctx, itemID, req.Price)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "price": req.Price})
}

type purchaseRequest struct {
	Payment int64 `json:"payment"`
}

func (s *Server) handlePurchaseItem(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	s.mu.Lock()
	err = s.engine.PurchaseItem(ctx, itemID, req.Payment)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "status": "purchased"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.opContext(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.engine.WithdrawFunds(ctx)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	s.mu.Lock()
	balance := s.engine.BalanceOf(acct)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"account": acct.String(), "balance": balance})
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	s.tradeHistory(w, r, s.engine.PurchasesOf)
}

func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	s.tradeHistory(w, r, s.engine.SalesOf)
}

func (s *Server) tradeHistory(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) []core.Transaction) {
	acct, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	s.mu.Lock()
	txs := fn(acct)
	s.mu.Unlock()

	out := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		out = append(out, map[string]any{
			"item_id":   tx.ItemID,
			"price":     tx.Price,
			"buyer":     tx.Buyer.String(),
			"timestamp": tx.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeEngineError maps domain errors to HTTP status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidParty),
		errors.Is(err, core.ErrInvalidAsset),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrExpiryNotFuture),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, account.ErrInvalidUsername):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrNotRegistered):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrSwapNotFound),
		errors.Is(err, core.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrSwapExists),
		errors.Is(err, core.ErrSwapExpired),
		errors.Is(err, core.ErrAlreadySold),
		errors.Is(err, core.ErrNotSold),
		errors.Is(err, core.ErrWrongAmount),
		errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, account.ErrUsernameTaken),
		errors.Is(err, account.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, core.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("unmapped engine error")
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
