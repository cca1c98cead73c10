// Package api exposes analysis runs and manual orders over HTTP and a
// WebSocket session.
package api

import (
	"context"
	"net/http"
	"time"

	"signaldesk/internal/analysis"
	"signaldesk/internal/bus"
	"signaldesk/internal/model"
)

// Runner is the analysis service as seen by the HTTP layer.
type Runner interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Report, error)
	PlaceOrder(ctx context.Context, cmd analysis.OrderCommand) (model.OrderAck, error)
	Defaults() analysis.Defaults
	Mode() string
}

// OrderLister reads the order journal, newest first.
type OrderLister interface {
	ListOrders(ctx context.Context, limit int) ([]model.OrderRecord, error)
}

// LiveFeed is the in-process alert bus.
type LiveFeed interface {
	Subscribe(symbol string) *bus.Subscription
	Unsubscribe(sub *bus.Subscription)
	Since(seq int64, symbol string) []bus.Event
}

// Options configures the router. Runner is required; nil optional
// collaborators turn their routes into 404s.
type Options struct {
	Runner     Runner
	Health     http.Handler
	Metrics    http.Handler
	Orders     OrderLister
	Live       LiveFeed
	Symbols    []string
	TOTPSecret string        // manual orders need a valid code when set
	RunTimeout time.Duration // per analysis run, default 60s
}

type server struct {
	opts Options
}

// NewRouter sets up the HTTP routes.
func NewRouter(opts Options) *http.ServeMux {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 60 * time.Second
	}
	s := &server{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/config", s.handleConfig)
	mux.HandleFunc("POST /api/v1/analysis", s.handleAnalysis)
	mux.HandleFunc("POST /api/v1/orders", s.handlePlaceOrder)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	mux.HandleFunc("GET /api/v1/live", s.handleLive)
	mux.HandleFunc("OPTIONS /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return mux
}
