package models

import "time"

// Selector is the size or quantity choice driving the price of a service.
// Exactly one of HomeSize, Quantity or Area is meaningful, depending on the
// service's pricing mode.
type Selector struct {
	HomeSize string  `json:"home_size,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Area     float64 `json:"area,omitempty"`
}

// BookingDraft is the in-progress booking of one session. It lives in the
// transient store until it is promoted to a ConfirmedBooking or abandoned.
type BookingDraft struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Step        string `json:"step"`
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`

	Selector Selector `json:"selector"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Address       string `json:"address"`

	Date                time.Time `json:"date"`
	TimeSlot            string    `json:"time_slot"`
	SpecialRequirements string    `json:"special_requirements,omitempty"`

	// Price is frozen when the draft enters the payment step and is never
	// recomputed afterwards.
	Price int64 `json:"price"`

	PaymentStatus string    `json:"payment_status"`
	BookingStatus string    `json:"booking_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConfirmedBooking is a draft promoted to durable storage after the customer
// supplied a payment transaction id.
type ConfirmedBooking struct {
	ID          string `json:"id"`
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`

	Selector Selector `json:"selector"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Address       string `json:"address"`

	Date                time.Time `json:"date"`
	TimeSlot            string    `json:"time_slot"`
	SpecialRequirements string    `json:"special_requirements,omitempty"`

	Price int64 `json:"price"`

	PaymentStatus string    `json:"payment_status"`
	BookingStatus string    `json:"booking_status"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// Confirm promotes the draft. The caller is responsible for having validated
// the transaction id.
func (d *BookingDraft) Confirm(transactionID string, at time.Time) *ConfirmedBooking {
	return &ConfirmedBooking{
		ID:                  d.ID,
		ServiceID:           d.ServiceID,
		ServiceName:         d.ServiceName,
		Selector:            d.Selector,
		CustomerName:        d.CustomerName,
		CustomerEmail:       d.CustomerEmail,
		CustomerPhone:       d.CustomerPhone,
		Address:             d.Address,
		Date:                d.Date,
		TimeSlot:            d.TimeSlot,
		SpecialRequirements: d.SpecialRequirements,
		Price:               d.Price,
		PaymentStatus:       PaymentCompleted,
		BookingStatus:       StatusConfirmed,
		TransactionID:       transactionID,
		CreatedAt:           d.CreatedAt,
		ConfirmedAt:         at,
	}
}

// NotifyTask is a queued best-effort notification job for a confirmed booking.
type NotifyTask struct {
	ID          int64      `json:"id"`
	BookingID   string     `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// BookingStats is the admin dashboard aggregate.
type BookingStats struct {
	TotalBookings     int64 `json:"total_bookings"`
	ConfirmedBookings int64 `json:"confirmed_bookings"`
	CompletedBookings int64 `json:"completed_bookings"`
	PendingBookings   int64 `json:"pending_bookings"`
	CancelledBookings int64 `json:"cancelled_bookings"`
	TotalRevenue      int64 `json:"total_revenue"`
}
