package service

import (
	"context"
	"time"

	"tidybeast/internal/domain"
	"tidybeast/internal/events"
	"tidybeast/internal/models"

	"github.com/rs/zerolog"
)

// Admin is the administrative view over the durable booking collection:
// listing, status transitions and revenue aggregates. It never touches
// drafts or the customer-facing flow.
type Admin struct {
	store    domain.BookingStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewAdmin(store domain.BookingStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *Admin {
	return &Admin{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

var adminStatuses = map[string]bool{
	models.StatusPending:    true,
	models.StatusConfirmed:  true,
	models.StatusInProgress: true,
	models.StatusCompleted:  true,
	models.StatusCancelled:  true,
}

func (a *Admin) GetBookings(ctx context.Context, status string) ([]*models.ConfirmedBooking, error) {
	if status != "" && !adminStatuses[status] {
		return nil, ErrInvalidStatus
	}
	return a.store.GetBookings(ctx, status)
}

func (a *Admin) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.ConfirmedBooking, error) {
	return a.store.GetBookingsByDateRange(ctx, start, end)
}

// allowedTransitions is the admin-side lifecycle: completed and cancelled
// are terminal.
var allowedTransitions = map[string]map[string]bool{
	models.StatusPending:    {models.StatusConfirmed: true, models.StatusCancelled: true},
	models.StatusConfirmed:  {models.StatusInProgress: true, models.StatusCompleted: true, models.StatusCancelled: true},
	models.StatusInProgress: {models.StatusCompleted: true, models.StatusCancelled: true},
}

// TransitionBooking moves a stored booking to another status. The durable
// record is otherwise immutable. Cancelling a paid booking parks its payment
// in refund_pending, which keeps it out of the revenue aggregate.
func (a *Admin) TransitionBooking(ctx context.Context, bookingID, status string) error {
	if !adminStatuses[status] {
		return ErrInvalidStatus
	}

	current, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if !allowedTransitions[current.BookingStatus][status] {
		return &TransitionError{Op: "transition to " + status, Step: current.BookingStatus}
	}

	if err := a.store.UpdateBookingStatus(ctx, bookingID, status); err != nil {
		return err
	}

	if status == models.StatusCancelled && current.PaymentStatus == models.PaymentCompleted {
		if err := a.store.UpdatePaymentStatus(ctx, bookingID, models.PaymentRefundPending); err != nil {
			a.logger.Error().Err(err).Str("booking_id", bookingID).Msg("mark refund pending failed")
		}
	}

	booking, err := a.store.GetBooking(ctx, bookingID)
	if err == nil && a.eventBus != nil {
		payload := events.BookingEventPayload{
			BookingID:     booking.ID,
			ServiceID:     booking.ServiceID,
			ServiceName:   booking.ServiceName,
			CustomerName:  booking.CustomerName,
			Price:         booking.Price,
			BookingStatus: booking.BookingStatus,
			PaymentStatus: booking.PaymentStatus,
			Date:          booking.Date,
		}
		if err := a.eventBus.PublishJSON(events.EventStatusChanged, payload); err != nil {
			a.logger.Error().Err(err).Str("booking_id", bookingID).Msg("publish event error")
		}
	}

	return nil
}

func (a *Admin) GetStats(ctx context.Context) (*models.BookingStats, error) {
	return a.store.GetBookingStats(ctx)
}
