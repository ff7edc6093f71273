package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tidybeast/internal/models"
)

// AppendBooking inserts a confirmed booking. The collection is append-only
// from the booking flow's perspective; an existing id is rejected.
func (db *DB) AppendBooking(ctx context.Context, booking *models.ConfirmedBooking) error {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, booking.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check booking id: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateBooking
	}

	query := `INSERT INTO bookings (
				id, service_id, service_name, home_size, unit, quantity, area,
				customer_name, customer_email, customer_phone, address,
				date, time_slot, special_requirements, price,
				payment_status, booking_status, transaction_id, created_at, confirmed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		booking.ID,
		booking.ServiceID,
		booking.ServiceName,
		booking.Selector.HomeSize,
		booking.Selector.Unit,
		booking.Selector.Quantity,
		booking.Selector.Area,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.Address,
		booking.Date.Format("2006-01-02"),
		booking.TimeSlot,
		booking.SpecialRequirements,
		booking.Price,
		booking.PaymentStatus,
		booking.BookingStatus,
		booking.TransactionID,
		booking.CreatedAt,
		booking.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append booking: %w", err)
	}

	return nil
}

const bookingColumns = `id, service_id, service_name, home_size, unit, quantity, area,
	customer_name, customer_email, customer_phone, address,
	date, time_slot, special_requirements, price,
	payment_status, booking_status, transaction_id, created_at, confirmed_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.ConfirmedBooking, error) {
	var b models.ConfirmedBooking
	var dateStr string
	var special sql.NullString
	err := row.Scan(
		&b.ID, &b.ServiceID, &b.ServiceName,
		&b.Selector.HomeSize, &b.Selector.Unit, &b.Selector.Quantity, &b.Selector.Area,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Address,
		&dateStr, &b.TimeSlot, &special, &b.Price,
		&b.PaymentStatus, &b.BookingStatus, &b.TransactionID, &b.CreatedAt, &b.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	if special.Valid {
		b.SpecialRequirements = special.String
	}
	if date, err := time.Parse("2006-01-02", dateStr); err == nil {
		b.Date = date
	} else if date, err := time.Parse(time.RFC3339, dateStr); err == nil {
		b.Date = date
	}
	return &b, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.ConfirmedBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetBookings lists the collection newest first, optionally filtered by
// booking status. Empty status means all.
func (db *DB) GetBookings(ctx context.Context, status string) ([]*models.ConfirmedBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	if status != "" {
		query += ` WHERE booking_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY confirmed_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.ConfirmedBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.ConfirmedBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date >= ? AND date <= ? ORDER BY date ASC`
	rows, err := db.QueryContext(ctx, query, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.ConfirmedBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// UpdateBookingStatus is the admin-only transition on a stored booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id string, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET booking_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// UpdatePaymentStatus records a payment-side change, such as a paid booking
// moving to refund_pending after an admin cancellation.
func (db *DB) UpdatePaymentStatus(ctx context.Context, id string, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET payment_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetBookingStats aggregates counts and revenue for the admin dashboard.
// Revenue counts completed payments only.
func (db *DB) GetBookingStats(ctx context.Context) (*models.BookingStats, error) {
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN booking_status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN booking_status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN booking_status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN booking_status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN payment_status = ? THEN price ELSE 0 END), 0)
	FROM bookings`

	var stats models.BookingStats
	err := db.QueryRowContext(ctx, query,
		models.StatusConfirmed,
		models.StatusCompleted,
		models.StatusPending,
		models.StatusCancelled,
		models.PaymentCompleted,
	).Scan(
		&stats.TotalBookings,
		&stats.ConfirmedBookings,
		&stats.CompletedBookings,
		&stats.PendingBookings,
		&stats.CancelledBookings,
		&stats.TotalRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}
	return &stats, nil
}
