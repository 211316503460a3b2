// Package http exposes the record collections, aggregations and the AI
// parser over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chitieu/internal/aiparse"
	"chitieu/internal/cache"
	"chitieu/internal/core"
	"chitieu/internal/notify"
	"chitieu/internal/query"
	"chitieu/internal/services"
	"chitieu/internal/storage"
)

type Server struct {
	http.Server

	ledgers   map[core.Kind]*services.Ledger
	runners   map[core.Kind]*query.Runner
	cols      map[core.Kind]*storage.Collection
	analytics *services.Analytics
	parser    aiparse.Parser
	hub       *notify.Hub

	rateLimiter     *rateLimiter
	defaultPageSize int

	// Aggregations are recomputed on every write, so their results are safe
	// to memoize until the next change event.
	summaryCache  *cache.Cache[core.FinancialStats]
	categoryCache *cache.Cache[[]core.CategoryStats]
	trendsCache   *cache.Cache[[]core.MonthlyStats]
	janitor       *cache.Janitor

	stopWatch    func()
	shutdownOnce sync.Once
}

// NewServer wires routes and caches, returning a ready-to-run server. The
// notifier receives change events for every mutation; hub may be nil when no
// in-process subscriber needs them.
func NewServer(addr string, store *storage.Store, notifier notify.Notifier, hub *notify.Hub, parser aiparse.Parser, defaultPageSize int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledgers: map[core.Kind]*services.Ledger{
			core.KindExpense: services.NewLedger(store.Expenses(), notifier),
			core.KindIncome:  services.NewLedger(store.Incomes(), notifier),
		},
		runners: map[core.Kind]*query.Runner{
			core.KindExpense: query.New(store.Expenses()),
			core.KindIncome:  query.New(store.Incomes()),
		},
		cols: map[core.Kind]*storage.Collection{
			core.KindExpense: store.Expenses(),
			core.KindIncome:  store.Incomes(),
		},
		analytics:       services.NewAnalytics(store),
		parser:          parser,
		hub:             hub,
		rateLimiter:     newRateLimiter(),
		defaultPageSize: defaultPageSize,
		summaryCache:    cache.New[core.FinancialStats](100, 5*time.Minute),
		categoryCache:   cache.New[[]core.CategoryStats](100, 5*time.Minute),
		trendsCache:     cache.New[[]core.MonthlyStats](50, 5*time.Minute),
		janitor:         cache.NewJanitor(),
	}

	s.janitor.Register(s.summaryCache)
	s.janitor.Register(s.categoryCache)
	s.janitor.Register(s.trendsCache)
	s.janitor.Start(10 * time.Minute)

	if hub != nil {
		s.watchEvents()
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/{kind}", s.withMiddleware(s.handleList))
	mux.HandleFunc("POST /api/{kind}", s.withMiddleware(s.handleCreate))
	mux.HandleFunc("DELETE /api/{kind}", s.withMiddleware(s.handleDeleteAll))
	mux.HandleFunc("GET /api/{kind}/recent", s.withMiddleware(s.handleRecent))
	mux.HandleFunc("GET /api/{kind}/categories", s.withMiddleware(s.handleCategories))
	mux.HandleFunc("GET /api/{kind}/export", s.withMiddleware(s.handleExport))
	mux.HandleFunc("POST /api/{kind}/import", s.withMiddleware(s.handleImport))
	mux.HandleFunc("POST /api/{kind}/parse", s.withMiddleware(s.handleParse))
	mux.HandleFunc("GET /api/{kind}/{id}", s.withMiddleware(s.handleGet))
	mux.HandleFunc("PUT /api/{kind}/{id}", s.withMiddleware(s.handleUpdate))
	mux.HandleFunc("DELETE /api/{kind}/{id}", s.withMiddleware(s.handleDelete))

	mux.HandleFunc("GET /api/stats/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("GET /api/stats/categories", s.withMiddleware(s.handleCategoryStats))
	mux.HandleFunc("GET /api/stats/trends", s.withMiddleware(s.handleTrends))

	return s
}

// watchEvents clears the aggregation caches whenever any collection changes,
// no matter which writer caused it.
func (s *Server) watchEvents() {
	events, cancel := s.hub.Subscribe()
	s.stopWatch = cancel

	go func() {
		for ev := range events {
			s.invalidateStats()
			slog.Debug("Stats caches invalidated",
				"kind", ev.Kind,
				"action", ev.Action)
		}
	}()
}

func (s *Server) invalidateStats() {
	s.summaryCache.Clear()
	s.categoryCache.Clear()
	s.trendsCache.Clear()
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		s.janitor.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) ledger(r *http.Request) (*services.Ledger, error) {
	kind, err := kindFromPath(r)
	if err != nil {
		return nil, err
	}
	return s.ledgers[kind], nil
}

func (s *Server) runner(r *http.Request) (*query.Runner, error) {
	kind, err := kindFromPath(r)
	if err != nil {
		return nil, err
	}
	return s.runners[kind], nil
}

func (s *Server) collection(r *http.Request) (*storage.Collection, error) {
	kind, err := kindFromPath(r)
	if err != nil {
		return nil, err
	}
	return s.cols[kind], nil
}

// kindFromPath maps the plural path segment to a collection kind.
func kindFromPath(r *http.Request) (core.Kind, error) {
	switch r.PathValue("kind") {
	case "expenses":
		return core.KindExpense, nil
	case "incomes":
		return core.KindIncome, nil
	default:
		return "", core.ErrInvalidKind
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
