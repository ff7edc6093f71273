package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tidybeast/internal/database"
	"tidybeast/internal/service"
)

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))

	if startRaw != "" || endRaw != "" {
		start, end, err := parseDateRange(startRaw, endRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bookings, err := s.admin.GetBookingsByDateRange(r.Context(), start, end)
		if err != nil {
			s.logger.Error().Err(err).Msg("admin bookings by range")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	status := strings.TrimSpace(q.Get("status"))
	bookings, err := s.admin.GetBookings(r.Context(), status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("admin bookings")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleAdminBookingStatus serves POST /api/v1/admin/bookings/{id}/status.
func (s *HTTPServer) handleAdminBookingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/admin/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	bookingID := parts[0]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.admin.TransitionBooking(r.Context(), bookingID, strings.TrimSpace(body.Status))
	var transitionErr *service.TransitionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"id": bookingID, "status": body.Status})
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	default:
		s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("admin status transition")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.admin.GetStats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("admin stats")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		writeError(w, http.StatusBadRequest, "format must be xlsx or csv")
		return
	}

	start, end, err := parseDateRange(strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.admin.GetBookingsByDateRange(r.Context(), start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("admin export query")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	filename := "bookings_" + start.Format("20060102") + "_" + end.Format("20060102")
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		if err := s.exports.WriteCSV(w, bookings); err != nil {
			s.logger.Error().Err(err).Msg("csv export")
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		if err := s.exports.WriteXLSX(w, bookings); err != nil {
			s.logger.Error().Err(err).Msg("xlsx export")
		}
	}
}

// parseDateRange defaults to the last 30 days when bounds are missing.
func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)
	end := now

	var err error
	if startRaw != "" {
		start, err = time.Parse("2006-01-02", startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start date; expected YYYY-MM-DD")
		}
	}
	if endRaw != "" {
		end, err = time.Parse("2006-01-02", endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end date; expected YYYY-MM-DD")
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end date is before start date")
	}
	return start, end, nil
}
