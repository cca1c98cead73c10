package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pquerna/otp/totp"

	"signaldesk/internal/analysis"
	"signaldesk/internal/execution"
	"signaldesk/internal/model"
	"signaldesk/internal/strategy"
)

const maxBodyBytes = 1 << 16

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, Status: code})
}

// statusFor maps run and order errors onto HTTP status codes.
func statusFor(err error) int {
	var fe *analysis.FetchError
	var oe *analysis.OrderError
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest), errors.Is(err, execution.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrNoData):
		return http.StatusNotFound
	case errors.As(err, &fe), errors.As(err, &oe):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		setCORS(w)
		s.opts.Health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": s.opts.Runner.Mode()})
}

type configResponse struct {
	Symbols          []string          `json:"symbols"`
	Timeframes       []string          `json:"timeframes"`
	Strategies       []strategy.Kind   `json:"strategies"`
	Defaults         analysis.Defaults `json:"defaults"`
	Mode             string            `json:"mode"`
	OrderOTPRequired bool              `json:"order_otp_required"`
	MaxLookbackDays  int               `json:"max_lookback_days"`
}

func (s *server) handleConfig(w http.ResponseWriter, r *http.Request) {
	tfs := make([]string, len(model.DashboardTimeframes))
	for i, tf := range model.DashboardTimeframes {
		tfs[i] = tf.String()
	}
	syms := s.opts.Symbols
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, configResponse{
		Symbols:          syms,
		Timeframes:       tfs,
		Strategies:       strategy.Kinds(),
		Defaults:         s.opts.Runner.Defaults(),
		Mode:             s.opts.Runner.Mode(),
		OrderOTPRequired: s.opts.TOTPSecret != "",
		MaxLookbackDays:  analysis.MaxLookbackDays,
	})
}

func (s *server) run(ctx context.Context, req analysis.Request) (*analysis.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()
	return s.opts.Runner.Run(ctx, req)
}

func (s *server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rep, err := s.run(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type placeOrderRequest struct {
	analysis.OrderCommand
	OTP string `json:"otp,omitempty"`
}

func (s *server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if s.opts.TOTPSecret != "" && !totp.Validate(strings.TrimSpace(req.OTP), s.opts.TOTPSecret) {
		slog.Warn("order rejected: bad one-time code", "symbol", req.Symbol, "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid or missing one-time code")
		return
	}

	ack, err := s.opts.Runner.PlaceOrder(r.Context(), req.OrderCommand)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ack)
}

func limitParam(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, errors.New("limit must be an integer between 1 and " + strconv.Itoa(max))
	}
	return n, nil
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.opts.Orders == nil {
		writeError(w, http.StatusNotFound, "order journal is disabled")
		return
	}
	limit, err := limitParam(r, 50, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.opts.Orders.ListOrders(r.Context(), limit)
	if err != nil {
		slog.Error("list orders failed", "error", err)
		writeError(w, http.StatusInternalServerError, "order journal unavailable")
		return
	}
	if orders == nil {
		orders = []model.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, orders)
}
