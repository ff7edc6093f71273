package domain

import (
	"context"
	"time"

	"tidybeast/internal/models"
)

// BookingStore is the durable collection of confirmed bookings. The booking
// flow only appends; status transitions belong to the admin view.
type BookingStore interface {
	AppendBooking(ctx context.Context, booking *models.ConfirmedBooking) error
	GetBooking(ctx context.Context, id string) (*models.ConfirmedBooking, error)
	GetBookings(ctx context.Context, status string) ([]*models.ConfirmedBooking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.ConfirmedBooking, error)
	UpdateBookingStatus(ctx context.Context, id string, status string) error
	UpdatePaymentStatus(ctx context.Context, id string, status string) error
	GetBookingStats(ctx context.Context) (*models.BookingStats, error)
}

// DraftStore holds the in-progress draft of a booking session.
type DraftStore interface {
	GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, draft *models.BookingDraft) error
	ClearDraft(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error)
}

// NotifyResult reports one delivery attempt on one channel.
type NotifyResult struct {
	Channel string
	Err     error
}

// NotificationSink delivers a confirmed booking to the business, trying its
// channels in order. It returns every attempt made; the overall error is nil
// as soon as one channel succeeded.
type NotificationSink interface {
	Notify(ctx context.Context, booking *models.ConfirmedBooking) ([]NotifyResult, error)
}

// NotifyQueue persists notification tasks between process restarts.
type NotifyQueue interface {
	CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error
	GetNotifyTask(ctx context.Context, id int64) (*models.NotifyTask, error)
	GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error)
	UpdateNotifyTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedNotifyTasks(ctx context.Context) ([]models.NotifyTask, error)
}

// NotifyWorker accepts confirmed bookings for best-effort delivery.
type NotifyWorker interface {
	EnqueueBooking(ctx context.Context, booking *models.ConfirmedBooking) error
}

// EventPublisher is the in-process event bus surface used by services.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingFlow is the customer-facing lifecycle state machine.
type BookingFlow interface {
	SelectService(ctx context.Context, sessionID, serviceID string, sel models.Selector) (*models.BookingDraft, error)
	Proceed(ctx context.Context, sessionID string) (*models.BookingDraft, error)
	SubmitDetails(ctx context.Context, sessionID string, details models.BookingDraft) (*models.BookingDraft, error)
	ConfirmPayment(ctx context.Context, sessionID, transactionID string) (*models.ConfirmedBooking, error)
	Cancel(ctx context.Context, sessionID string) error
	CurrentDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error)
}

// AdminService is the administrative view over the durable collection.
type AdminService interface {
	GetBookings(ctx context.Context, status string) ([]*models.ConfirmedBooking, error)
	TransitionBooking(ctx context.Context, bookingID, status string) error
	GetStats(ctx context.Context) (*models.BookingStats, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.ConfirmedBooking, error)
}
