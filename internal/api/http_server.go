package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tidybeast/internal/config"
	"tidybeast/internal/domain"
	"tidybeast/internal/metrics"
	"tidybeast/internal/models"
	"tidybeast/internal/pricing"
	"tidybeast/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sessionHeader = "X-Session-ID"

// HTTPServer exposes the booking API: the public catalog and quote
// endpoints, the session-scoped flow endpoints, and the authenticated admin
// surface.
type HTTPServer struct {
	cfg        config.APIConfig
	bookingCfg config.BookingConfig
	notifyCfg  config.NotifyConfig
	flow       *service.Flow
	admin      domain.AdminService
	catalog    *pricing.Catalog
	pricer     *pricing.Engine
	exports    *Exporter
	server     *http.Server
	auth       *HTTPAuth
	ready      func(context.Context) error
	logger     *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookingCfg config.BookingConfig,
	notifyCfg config.NotifyConfig,
	flow *service.Flow,
	admin domain.AdminService,
	catalog *pricing.Catalog,
	pricer *pricing.Engine,
	exports *Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:        cfg,
		bookingCfg: bookingCfg,
		notifyCfg:  notifyCfg,
		flow:       flow,
		admin:      admin,
		catalog:    catalog,
		pricer:     pricer,
		exports:    exports,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/services", srv.handleServices)
	mux.HandleFunc("/api/v1/quote", srv.handleQuote)
	mux.HandleFunc("/api/v1/flow/select", srv.handleFlowSelect)
	mux.HandleFunc("/api/v1/flow/proceed", srv.handleFlowProceed)
	mux.HandleFunc("/api/v1/flow/details", srv.handleFlowDetails)
	mux.HandleFunc("/api/v1/flow/confirm", srv.handleFlowConfirm)
	mux.HandleFunc("/api/v1/flow/cancel", srv.handleFlowCancel)
	mux.HandleFunc("/api/v1/flow/state", srv.handleFlowState)
	mux.HandleFunc("/api/v1/admin/bookings", srv.handleAdminBookings)
	mux.HandleFunc("/api/v1/admin/bookings/", srv.handleAdminBookingStatus)
	mux.HandleFunc("/api/v1/admin/stats", srv.handleAdminStats)
	mux.HandleFunc("/api/v1/admin/export", srv.handleAdminExport)
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/readyz", srv.handleReadyz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// SetReadyCheck installs the dependency probe behind /readyz. Without one
// the endpoint always reports ready.
func (s *HTTPServer) SetReadyCheck(fn func(context.Context) error) {
	s.ready = fn
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Handler exposes the routed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	if s.server == nil {
		return nil
	}
	return s.server.Handler
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"services":   s.catalog.Services(),
		"time_slots": models.TimeSlots,
	})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if s.catalog.ByID(serviceID) == nil {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}

	sel := models.Selector{
		HomeSize: strings.TrimSpace(q.Get("home_size")),
		Unit:     strings.TrimSpace(q.Get("unit")),
	}
	if raw := strings.TrimSpace(q.Get("quantity")); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
		sel.Quantity = qty
	}
	if raw := strings.TrimSpace(q.Get("area")); raw != "" {
		area, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid area")
			return
		}
		sel.Area = area
	}

	price := s.pricer.PriceFor(serviceID, sel)
	writeJSON(w, http.StatusOK, map[string]any{
		"service_id": serviceID,
		"selector":   sel,
		"price":      price,
	})
}

type selectRequest struct {
	ServiceID string          `json:"service_id"`
	Selector  models.Selector `json:"selector"`
}

func (s *HTTPServer) handleFlowSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !s.allowSession(w, r, sessionID) {
		return
	}

	var body selectRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, err := s.flow.SelectService(r.Context(), sessionID, body.ServiceID, body.Selector)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	w.Header().Set(sessionHeader, sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "draft": draft})
}

func (s *HTTPServer) handleFlowProceed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if !s.allowSession(w, r, sessionID) {
		return
	}

	draft, err := s.flow.Proceed(r.Context(), sessionID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (s *HTTPServer) handleFlowDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if !s.allowSession(w, r, sessionID) {
		return
	}

	var details models.BookingDraft
	if err := decodeBody(r, &details); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, err := s.flow.SubmitDetails(r.Context(), sessionID, details)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

type confirmRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *HTTPServer) handleFlowConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if !s.allowSession(w, r, sessionID) {
		return
	}

	var body confirmRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.flow.ConfirmPayment(r.Context(), sessionID, body.TransactionID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	// Confirmation delivery is asynchronous and may fail on every channel,
	// so the response carries the manual contact route.
	resp := map[string]any{"booking": booking}
	if contact := s.supportContact(); contact != nil {
		resp["support"] = contact
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) supportContact() map[string]string {
	if s.notifyCfg.SupportEmail == "" && s.notifyCfg.SupportPhone == "" {
		return nil
	}
	contact := map[string]string{}
	if s.notifyCfg.SupportEmail != "" {
		contact["email"] = s.notifyCfg.SupportEmail
	}
	if s.notifyCfg.SupportPhone != "" {
		contact["phone"] = s.notifyCfg.SupportPhone
	}
	return contact
}

func (s *HTTPServer) handleFlowCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if err := s.flow.Cancel(r.Context(), sessionID); err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *HTTPServer) handleFlowState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := s.sessionID(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	draft, err := s.flow.CurrentDraft(r.Context(), sessionID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	if draft == nil {
		writeJSON(w, http.StatusOK, map[string]any{"draft": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (s *HTTPServer) sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

// allowSession throttles flow mutations per session. A failing limiter
// check (store down) lets the request through.
func (s *HTTPServer) allowSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	limit := s.bookingCfg.RateLimitRequests
	if limit <= 0 {
		return true
	}
	window := time.Duration(s.bookingCfg.RateLimitWindow) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	ok, err := s.flow.CheckRateLimit(r.Context(), sessionID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return false
	}
	return true
}

func (s *HTTPServer) writeFlowError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var transitionErr *service.TransitionError
	var persistenceErr *service.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, service.ErrNoActiveDraft):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &persistenceErr):
		s.logger.Error().Err(err).Msg("booking persistence failed")
		writeError(w, http.StatusInternalServerError, "booking could not be stored")
	default:
		s.logger.Error().Err(err).Msg("flow request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(dst)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
