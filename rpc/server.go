// Package rpc serves the read-only operator API of propd: record lookups,
// balances, event replay, health and Prometheus metrics.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"propchain/core"
	"propchain/core/types"
	"propchain/native/common"
	"propchain/storage/eventlog"
)

const maxEventPage = 500

// EventStore is the replay source for /events.
type EventStore interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Entry, error)
}

// Config captures the dependencies of the query server.
type Config struct {
	Marketplace *core.Marketplace
	Events      EventStore
	Logger      *slog.Logger
	// Tracing wraps the router with otelhttp spans.
	Tracing bool
	// RateLimit caps /api/v1 requests per client per second. Zero disables it.
	RateLimit float64
	RateBurst int
}

// Server renders marketplace state as JSON.
type Server struct {
	market  *core.Marketplace
	events  EventStore
	logger  *slog.Logger
	limiter *RateLimiter
	router  http.Handler
}

// New constructs the query server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		market:  cfg.Marketplace,
		events:  cfg.Events,
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}
	var handler http.Handler = srv.buildRouter()
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "propd")
	}
	srv.router = handler
	return srv
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)
		api.Get("/properties/{id}", s.getProperty)
		api.Get("/properties/{id}/history", s.getHistory)
		api.Get("/leases/{id}", s.getAgreement)
		api.Get("/transactions/{id}", s.getTransaction)
		api.Get("/escrows/{id}", s.getEscrow)
		api.Get("/balances/{address}", s.getBalance)
		api.Get("/events", s.listEvents)
	})
	return r
}

func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (types.ID, bool) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return types.ID{}, false
	}
	return id, true
}

func (s *Server) getProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	prop, err := s.market.Property(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatProperty(prop))
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	hist, err := s.market.History(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatHistory(hist))
}

func (s *Server) getAgreement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	agreement, err := s.market.Agreement(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatAgreement(agreement))
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	tx, err := s.market.Transaction(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatTransaction(tx))
}

func (s *Server) getEscrow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	esc, err := s.market.Escrow(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatEscrow(esc))
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := types.ParsePrincipal(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bal, err := s.market.Balance(addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceJSON{Address: addr.Hex(), Balance: formatAmount(bal)})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event log not configured"))
		return
	}
	q := r.URL.Query()
	after, err := parseUint(q.Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("after must be an unsigned integer"))
		return
	}
	limit, err := parseUint(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("limit must be an unsigned integer"))
		return
	}
	if limit == 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	entries, err := s.events.List(r.Context(), eventlog.Filter{
		Type:       strings.TrimSpace(q.Get("type")),
		RecordID:   q.Get("record"),
		PropertyID: q.Get("property"),
		AfterSeq:   after,
		Limit:      int(limit),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := formatEntries(entries)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.ErrorContext(r.Context(), "query failed",
		slog.String("path", r.URL.Path),
		slog.String("requestId", chimw.GetReqID(r.Context())),
		slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
