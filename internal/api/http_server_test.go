package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tidybeast/internal/config"
	"tidybeast/internal/database"
	"tidybeast/internal/models"
	"tidybeast/internal/pricing"
	"tidybeast/internal/repository"
	"tidybeast/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBookingStore struct {
	mu       sync.Mutex
	bookings []*models.ConfirmedBooking
}

func (s *memoryBookingStore) AppendBooking(_ context.Context, b *models.ConfirmedBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
	return nil
}

func (s *memoryBookingStore) GetBooking(_ context.Context, id string) (*models.ConfirmedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, database.ErrBookingNotFound
}

func (s *memoryBookingStore) GetBookings(_ context.Context, status string) ([]*models.ConfirmedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ConfirmedBooking{}
	for _, b := range s.bookings {
		if status == "" || b.BookingStatus == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryBookingStore) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.ConfirmedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ConfirmedBooking{}
	for _, b := range s.bookings {
		if !b.ConfirmedAt.Before(start) && !b.ConfirmedAt.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryBookingStore) UpdateBookingStatus(_ context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			b.BookingStatus = status
			return nil
		}
	}
	return database.ErrBookingNotFound
}

func (s *memoryBookingStore) UpdatePaymentStatus(_ context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			b.PaymentStatus = status
			return nil
		}
	}
	return database.ErrBookingNotFound
}

func (s *memoryBookingStore) GetBookingStats(_ context.Context) (*models.BookingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.BookingStats{TotalBookings: int64(len(s.bookings))}
	for _, b := range s.bookings {
		if b.BookingStatus == models.StatusConfirmed {
			stats.ConfirmedBookings++
		}
		if b.PaymentStatus == models.PaymentCompleted {
			stats.TotalRevenue += b.Price
		}
	}
	return stats, nil
}

type noopNotifyWorker struct{}

func (noopNotifyWorker) EnqueueBooking(context.Context, *models.ConfirmedBooking) error { return nil }

func apiTestServices() []pricing.ServiceConfig {
	return []pricing.ServiceConfig{
		{
			ID: "home-cleaning", Name: "Home Cleaning", PricingMode: models.PricingBHKScaled,
			BasePrice: 2300,
			BHKPrices: map[string]int64{
				"Studio/1RK": 1400, "1 BHK": 1800, "2 BHK": 2300, "3 BHK": 3000,
				"4 BHK": 3700, "5+ BHK": 4300, "Villa": 5000,
			},
		},
		{ID: "kitchen-cleaning", Name: "Kitchen Cleaning", PricingMode: models.PricingFlatPerUnit, BasePrice: 1500},
		{ID: "carpet-cleaning", Name: "Carpet Cleaning", PricingMode: models.PricingAreaScaled, RatePerSqFt: 20, MinCharge: 200},
	}
}

type serverFixture struct {
	srv   *HTTPServer
	ts    *httptest.Server
	store *memoryBookingStore
}

func newServerFixture(t *testing.T, cfg config.APIConfig) *serverFixture {
	t.Helper()

	catalog, err := pricing.NewCatalog(apiTestServices())
	require.NoError(t, err)

	logger := zerolog.Nop()
	engine := pricing.NewEngine(catalog, &logger)
	store := &memoryBookingStore{}
	drafts := repository.NewMemoryDraftStore(time.Hour)
	flow := service.NewFlow(drafts, store, engine, catalog, noopNotifyWorker{}, nil, 90, &logger)
	admin := service.NewAdmin(store, nil, &logger)

	notifyCfg := config.NotifyConfig{SupportEmail: "care@tidybeast.example", SupportPhone: "+91 90000 00000"}
	srv := NewHTTPServer(cfg, config.BookingConfig{}, notifyCfg, flow, admin, catalog, engine, NewExporter(), &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &serverFixture{srv: srv, ts: ts, store: store}
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true, Port: 0}}
}

func doJSON(t *testing.T, method, url, sessionID string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResp(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestServicesEndpoint(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp, err := http.Get(fx.ts.URL + "/api/v1/services")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Services  []pricing.ServiceConfig `json:"services"`
		TimeSlots []string                `json:"time_slots"`
	}
	decodeResp(t, resp, &body)
	assert.Len(t, body.Services, 3)
	assert.Len(t, body.TimeSlots, len(models.TimeSlots))
}

func TestQuoteEndpoint(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	cases := []struct {
		name  string
		query string
		price int64
	}{
		{"bhk override", "service_id=home-cleaning&home_size=3+BHK", 3000},
		{"per unit", "service_id=kitchen-cleaning&quantity=3", 4500},
		{"area minimum", "service_id=carpet-cleaning&area=5", 200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(fx.ts.URL + "/api/v1/quote?" + tc.query)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				Price int64 `json:"price"`
			}
			decodeResp(t, resp, &body)
			assert.Equal(t, tc.price, body.Price)
		})
	}

	t.Run("unknown service", func(t *testing.T) {
		resp, err := http.Get(fx.ts.URL + "/api/v1/quote?service_id=window-cleaning")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing service id", func(t *testing.T) {
		resp, err := http.Get(fx.ts.URL + "/api/v1/quote")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestFlowEndToEnd(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/select", "", selectRequest{
		ServiceID: "kitchen-cleaning",
		Selector:  models.Selector{Quantity: 2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var selectBody struct {
		SessionID string              `json:"session_id"`
		Draft     models.BookingDraft `json:"draft"`
	}
	decodeResp(t, resp, &selectBody)
	require.NotEmpty(t, selectBody.SessionID)
	assert.Equal(t, models.StepSelectingService, selectBody.Draft.Step)

	session := selectBody.SessionID

	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/proceed", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	details := models.BookingDraft{
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "+91 99590 47238",
		Address:       "12 Jubilee Hills, Hyderabad",
		Date:          time.Now().AddDate(0, 0, 3),
		TimeSlot:      "10:00 AM",
	}
	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/details", session, details)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detailsBody struct {
		Draft models.BookingDraft `json:"draft"`
	}
	decodeResp(t, resp, &detailsBody)
	assert.Equal(t, models.StepAwaitingPayment, detailsBody.Draft.Step)
	assert.Equal(t, int64(3000), detailsBody.Draft.Price)

	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/confirm", session, confirmRequest{TransactionID: "TXN001"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var confirmBody struct {
		Booking models.ConfirmedBooking `json:"booking"`
		Support map[string]string       `json:"support"`
	}
	decodeResp(t, resp, &confirmBody)
	assert.Equal(t, "TXN001", confirmBody.Booking.TransactionID)
	assert.Equal(t, models.StatusConfirmed, confirmBody.Booking.BookingStatus)

	// Delivery of the confirmation is best effort, so the response always
	// carries the manual contact route.
	assert.Equal(t, "care@tidybeast.example", confirmBody.Support["email"])
	assert.Equal(t, "+91 90000 00000", confirmBody.Support["phone"])

	// Draft is gone once confirmed.
	resp = doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/flow/state", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"draft":null}`, strings.TrimSpace(string(raw)))

	require.Len(t, fx.store.bookings, 1)
}

func TestFlowValidationErrorReportsField(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/select", "s-1", selectRequest{ServiceID: "kitchen-cleaning"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/proceed", "s-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	details := models.BookingDraft{
		CustomerName:  "Asha Rao",
		CustomerEmail: "not-an-email",
		CustomerPhone: "+91 99590 47238",
		Address:       "12 Jubilee Hills",
		Date:          time.Now().AddDate(0, 0, 3),
		TimeSlot:      "10:00 AM",
	}
	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/details", "s-1", details)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	decodeResp(t, resp, &body)
	assert.Equal(t, "customer_email", body.Field)
}

func TestFlowConfirmWrongStep(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/select", "s-2", selectRequest{ServiceID: "kitchen-cleaning"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/confirm", "s-2", confirmRequest{TransactionID: "TXN002"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFlowConfirmWithoutSession(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/confirm", "", confirmRequest{TransactionID: "TXN003"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlowConfirmNoDraft(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/confirm", "ghost", confirmRequest{TransactionID: "TXN004"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlowCancel(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/select", "s-3", selectRequest{ServiceID: "kitchen-cleaning"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/flow/cancel", "s-3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/flow/state", "s-3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"draft":null}`, strings.TrimSpace(string(raw)))
}

func authConfig() config.APIConfig {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "admin-key", Extra: "admin-extra", Name: "admin", Permissions: []string{"admin:bookings", "admin:export"}},
			{Key: "read-key", Extra: "read-extra", Name: "reader", Permissions: []string{"admin:bookings"}},
		},
	}
	return cfg
}

func TestAdminAuth(t *testing.T) {
	fx := newServerFixture(t, authConfig())

	t.Run("missing key", func(t *testing.T) {
		resp, err := http.Get(fx.ts.URL + "/api/v1/admin/stats")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong extra", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fx.ts.URL+"/api/v1/admin/stats", nil)
		req.Header.Set("x-api-key", "admin-key")
		req.Header.Set("x-api-extra", "wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing permission", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fx.ts.URL+"/api/v1/admin/export", nil)
		req.Header.Set("x-api-key", "read-key")
		req.Header.Set("x-api-extra", "read-extra")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("valid key", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fx.ts.URL+"/api/v1/admin/stats", nil)
		req.Header.Set("x-api-key", "admin-key")
		req.Header.Set("x-api-extra", "admin-extra")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("public endpoints stay open", func(t *testing.T) {
		resp, err := http.Get(fx.ts.URL + "/api/v1/services")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func seedBooking(t *testing.T, fx *serverFixture, id string) {
	t.Helper()
	now := time.Now()
	err := fx.store.AppendBooking(context.Background(), &models.ConfirmedBooking{
		ID:            id,
		ServiceID:     "kitchen-cleaning",
		ServiceName:   "Kitchen Cleaning",
		Selector:      models.Selector{Quantity: 2},
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "+919959047238",
		Address:       "12 Jubilee Hills",
		Date:          now.AddDate(0, 0, 3),
		TimeSlot:      "10:00 AM",
		Price:         3000,
		PaymentStatus: models.PaymentCompleted,
		BookingStatus: models.StatusConfirmed,
		TransactionID: "TXN-" + id,
		CreatedAt:     now,
		ConfirmedAt:   now,
	})
	require.NoError(t, err)
}

func TestAdminBookingsAndStatus(t *testing.T) {
	fx := newServerFixture(t, openConfig())
	seedBooking(t, fx, "b-100")

	resp, err := http.Get(fx.ts.URL + "/api/v1/admin/bookings?status=confirmed")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listBody struct {
		Bookings []models.ConfirmedBooking `json:"bookings"`
	}
	decodeResp(t, resp, &listBody)
	require.Len(t, listBody.Bookings, 1)

	t.Run("invalid status filter", func(t *testing.T) {
		resp, err := http.Get(fx.ts.URL + "/api/v1/admin/bookings?status=bogus")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("transition", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/bookings/b-100/status", "", map[string]string{"status": "completed"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		b, err := fx.store.GetBooking(context.Background(), "b-100")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, b.BookingStatus)
	})

	t.Run("transition invalid status", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/bookings/b-100/status", "", map[string]string{"status": "vaporized"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("transition out of terminal status", func(t *testing.T) {
		// b-100 is completed by now; it cannot be reopened.
		resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/bookings/b-100/status", "", map[string]string{"status": "in_progress"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("transition unknown booking", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/bookings/nope/status", "", map[string]string{"status": "completed"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminExportCSV(t *testing.T) {
	fx := newServerFixture(t, openConfig())
	seedBooking(t, fx, "b-200")

	resp, err := http.Get(fx.ts.URL + "/api/v1/admin/export?format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "Booking ID")
	assert.Contains(t, content, "b-200")
	assert.Contains(t, content, "Kitchen Cleaning")
}

func TestAdminExportXLSX(t *testing.T) {
	fx := newServerFixture(t, openConfig())
	seedBooking(t, fx, "b-300")

	resp, err := http.Get(fx.ts.URL + "/api/v1/admin/export?format=xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// XLSX files are zip archives.
	require.True(t, len(raw) > 4)
	assert.Equal(t, "PK", string(raw[:2]))
}

func TestAdminExportRejectsBadFormat(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp, err := http.Get(fx.ts.URL + "/api/v1/admin/export?format=pdf")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	fx := newServerFixture(t, openConfig())

	resp, err := http.Get(fx.ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(fx.ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	fx.srv.SetReadyCheck(func(context.Context) error { return fmt.Errorf("redis down") })
	resp, err = http.Get(fx.ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGlobalRateLimit(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	fx := newServerFixture(t, cfg)

	first, err := http.Get(fx.ts.URL + "/api/v1/services")
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	limited := false
	for i := 0; i < 5; i++ {
		resp, err := http.Get(fx.ts.URL + "/api/v1/services")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected a 429 after exhausting the burst")
}
