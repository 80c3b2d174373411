// Package gateway provides the HTTP surface of the console: proxy routes
// to the active backend, the portfolio view, popularity stats and the
// per-session call journal.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alphaboost/console/internal/backend"
	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/order"
	"github.com/alphaboost/console/internal/portfolio"
	"github.com/alphaboost/console/internal/store"
)

// Request headers.
const (
	HeaderAppName = "X-App-Name"
	HeaderSession = "X-Session-ID"
)

// DefaultSession is used when a request names neither a session nor an app.
const DefaultSession = "default"

// unknownApp is the identity forwarded when the caller sends none.
const unknownApp = "unknown"

// Service handles gateway requests. Each request is served by the backend
// its session maps to, wrapped in a journal.
type Service struct {
	provider backend.Provider
	store    store.Store
	hub      *Hub // optional WebSocket hub for event pushes
}

// NewService creates a new gateway service.
// Pass nil for hub if WebSocket pushes are not needed.
func NewService(p backend.Provider, st store.Store, hub *Hub) *Service {
	return &Service{
		provider: p,
		store:    st,
		hub:      hub,
	}
}

// Router returns the API routes, to be mounted under /api.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/apps", s.RegisterApp)
	r.Delete("/apps", s.DeleteApp)
	r.Post("/apps/transactions", s.CreateTransaction)
	r.Get("/apps/transactions", s.ListTransactions)
	r.Get("/predictions/{ticker}", s.GetPrediction)

	r.Get("/portfolio", s.GetPortfolio)
	r.Get("/stats/most-traded", s.GetMostTraded)

	r.Get("/logs", s.ListLogs)
	r.Delete("/logs", s.ClearLogs)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// identity resolves the caller's app name and session id.
func identity(r *http.Request) (app, session string) {
	app = r.Header.Get(HeaderAppName)
	session = r.Header.Get(HeaderSession)
	if session == "" {
		session = app
	}
	if session == "" {
		session = DefaultSession
	}
	if app == "" {
		app = unknownApp
	}
	return app, session
}

func (s *Service) backendFor(session string) backend.Backend {
	var observer backend.Observer
	if s.hub != nil {
		observer = s.hub.ObserveLog
	}
	return backend.NewJournal(s.provider.ForSession(session), s.store, session, observer)
}

// --- HTTP Handlers ---

// RegisterApp handles POST /api/apps
func (s *Service) RegisterApp(w http.ResponseWriter, r *http.Request) {
	app, session := identity(r)

	reg, err := s.backendFor(session).RegisterApp(r.Context(), app)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// DeleteApp handles DELETE /api/apps
func (s *Service) DeleteApp(w http.ResponseWriter, r *http.Request) {
	app, session := identity(r)

	del, err := s.backendFor(session).DeleteApp(r.Context(), app)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, del)
}

// CreateTransaction handles POST /api/apps/transactions
// The ticket is validated here; backends trust it.
func (s *Service) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return
	}

	req, err := order.Normalize(req)
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	app, session := identity(r)
	created, err := s.backendFor(session).CreateTransaction(r.Context(), app, req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s.hub.Publish(Event{
		Type:        EventTransactionCreated,
		Session:     session,
		ID:          created.ID,
		Transaction: &req,
	})

	writeJSON(w, http.StatusCreated, created)
}

// ListTransactions handles GET /api/apps/transactions
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	app, session := identity(r)

	list, err := s.backendFor(session).ListTransactions(r.Context(), app)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPrediction handles GET /api/predictions/{ticker}
func (s *Service) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ticker, err := order.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	app, session := identity(r)
	p, err := s.backendFor(session).GetPrediction(r.Context(), app, ticker)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetPortfolio handles GET /api/portfolio
// Positions are folded from the full transaction list on every request.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	app, session := identity(r)

	list, err := s.backendFor(session).ListTransactions(r.Context(), app)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio.Summarize(list.AppUsername, list.Transactions))
}

// GetMostTraded handles GET /api/stats/most-traded
// Responds with JSON null when the session has no trades.
func (s *Service) GetMostTraded(w http.ResponseWriter, r *http.Request) {
	app, session := identity(r)

	pop, err := s.backendFor(session).MostTradedSymbol(r.Context(), app)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pop)
}

// ListLogs handles GET /api/logs
func (s *Service) ListLogs(w http.ResponseWriter, r *http.Request) {
	_, session := identity(r)

	logs, err := s.store.ListLogs(r.Context(), session)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ClearLogs handles DELETE /api/logs
func (s *Service) ClearLogs(w http.ResponseWriter, r *http.Request) {
	_, session := identity(r)

	if err := s.store.ClearLogs(r.Context(), session); err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventLogsCleared, Session: session})
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, code, details string, status int) {
	writeJSON(w, status, backend.ErrorBody{Error: code, Details: details})
}

// writeFailure renders a backend or store error.
func writeFailure(w http.ResponseWriter, err error) {
	if f, ok := backend.AsFailure(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.Status)
		w.Write(f.Payload())
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, string(backend.KindUnavailable), err.Error(), http.StatusServiceUnavailable)
		return
	}
	slog.Error("request failed", "err", err)
	writeError(w, "internal_error", "", http.StatusInternalServerError)
}
