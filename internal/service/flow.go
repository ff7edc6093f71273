package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tidybeast/internal/domain"
	"tidybeast/internal/events"
	"tidybeast/internal/metrics"
	"tidybeast/internal/models"
	"tidybeast/internal/pricing"

	"github.com/rs/zerolog"
)

// Flow is the booking lifecycle controller. Each session owns at most one
// draft, advanced through selecting_service → entering_details →
// awaiting_payment → confirmed, with abandoned reachable from any
// non-terminal step.
type Flow struct {
	drafts         domain.DraftStore
	store          domain.BookingStore
	pricer         *pricing.Engine
	catalog        *pricing.Catalog
	notifyWorker   domain.NotifyWorker
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewFlow(
	drafts domain.DraftStore,
	store domain.BookingStore,
	pricer *pricing.Engine,
	catalog *pricing.Catalog,
	notifyWorker domain.NotifyWorker,
	eventBus domain.EventPublisher,
	maxBookingDays int,
	logger *zerolog.Logger,
) *Flow {
	if maxBookingDays <= 0 {
		maxBookingDays = 90
	}
	return &Flow{
		drafts:         drafts,
		store:          store,
		pricer:         pricer,
		catalog:        catalog,
		notifyWorker:   notifyWorker,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

// SelectService records (or replaces) the service choice of a session still
// in the selection step. Selection alone does not advance the flow; Proceed
// is the explicit continue.
func (f *Flow) SelectService(ctx context.Context, sessionID, serviceID string, sel models.Selector) (*models.BookingDraft, error) {
	draft, err := f.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	if draft != nil && draft.Step != models.StepSelectingService {
		return nil, &TransitionError{Op: "select service", Step: draft.Step}
	}

	svc := f.catalog.ByID(serviceID)
	if svc == nil {
		return nil, &ValidationError{Field: "service_id", Message: "unknown service"}
	}

	if svc.PricingMode == models.PricingFlatPerUnit && sel.Quantity < 1 {
		sel.Quantity = 1
	}
	if sel.Quantity > models.MaxQuantity {
		sel.Quantity = models.MaxQuantity
	}

	now := time.Now()
	if draft == nil {
		draft = &models.BookingDraft{
			// Time-based id, unique within the session.
			ID:            fmt.Sprintf("%d", now.UnixMilli()),
			SessionID:     sessionID,
			Step:          models.StepSelectingService,
			PaymentStatus: models.PaymentPending,
			BookingStatus: models.StatusPending,
			CreatedAt:     now,
		}
	}

	draft.ServiceID = svc.ID
	draft.ServiceName = svc.Name
	draft.Selector = sel

	if err := f.drafts.SetDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// Proceed is the explicit continue from selection into detail capture.
func (f *Flow) Proceed(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	draft, err := f.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, ErrNoActiveDraft
	}
	if draft.Step != models.StepSelectingService {
		return nil, &TransitionError{Op: "proceed", Step: draft.Step}
	}

	draft.Step = models.StepEnteringDetails
	if err := f.drafts.SetDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// SubmitDetails validates the customer details and, on success, freezes the
// price and moves the draft to the payment step. On any validation failure
// the stored draft is left untouched.
func (f *Flow) SubmitDetails(ctx context.Context, sessionID string, details models.BookingDraft) (*models.BookingDraft, error) {
	draft, err := f.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, ErrNoActiveDraft
	}
	if draft.Step != models.StepEnteringDetails {
		return nil, &TransitionError{Op: "submit details", Step: draft.Step}
	}

	// Details may adjust the selector (quantity tweaks on the form). The
	// merge is staged on the submission and applied to the draft only after
	// validation passes, so a rejected submit leaves the draft untouched.
	if details.Selector == (models.Selector{}) {
		details.Selector = draft.Selector
	}

	svc := f.catalog.ByID(draft.ServiceID)
	if svc == nil {
		svc = f.catalog.Default()
	}

	if err := f.validateDetails(svc, &details); err != nil {
		return nil, err
	}

	phone, _ := NormalizePhone(details.CustomerPhone)

	draft.Selector = details.Selector
	draft.CustomerName = strings.TrimSpace(details.CustomerName)
	draft.CustomerEmail = strings.TrimSpace(details.CustomerEmail)
	draft.CustomerPhone = phone
	draft.Address = strings.TrimSpace(details.Address)
	draft.Date = details.Date
	draft.TimeSlot = details.TimeSlot
	draft.SpecialRequirements = strings.TrimSpace(details.SpecialRequirements)

	// The price shown for payment is computed once here and never silently
	// recomputed afterwards.
	draft.Price = f.pricer.PriceFor(draft.ServiceID, draft.Selector)
	draft.Step = models.StepAwaitingPayment

	if err := f.drafts.SetDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// ConfirmPayment promotes the draft with the customer's transaction id.
// The durable write happens before the notification is enqueued; a failed
// durable write is fatal and leaves the draft in the payment step.
func (f *Flow) ConfirmPayment(ctx context.Context, sessionID, transactionID string) (*models.ConfirmedBooking, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, &ValidationError{Field: "transaction_id", Message: "transaction id is required"}
	}

	draft, err := f.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, ErrNoActiveDraft
	}
	if draft.Step != models.StepAwaitingPayment {
		return nil, &TransitionError{Op: "confirm payment", Step: draft.Step}
	}

	booking := draft.Confirm(transactionID, time.Now())

	if err := f.store.AppendBooking(ctx, booking); err != nil {
		f.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("durable store write failed")
		return nil, &PersistenceError{Err: err}
	}
	metrics.IncBookingConfirmed()

	f.publishEvent(events.EventBookingConfirmed, booking)

	// Best-effort from here on: the booking is confirmed once stored, no
	// matter what notification delivery does.
	if f.notifyWorker != nil {
		if err := f.notifyWorker.EnqueueBooking(ctx, booking); err != nil {
			f.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("notify enqueue failed")
		}
	}

	if err := f.drafts.ClearDraft(ctx, sessionID); err != nil {
		f.logger.Warn().Err(err).Str("session_id", sessionID).Msg("clear draft failed after confirmation")
	}

	return booking, nil
}

// Cancel abandons the session's draft from any non-terminal step. Nothing is
// written durably.
func (f *Flow) Cancel(ctx context.Context, sessionID string) error {
	draft, err := f.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil
	}

	if err := f.drafts.ClearDraft(ctx, sessionID); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}

	f.publishDraftEvent(events.EventBookingAbandoned, draft)
	return nil
}

// CurrentDraft returns the active draft or nil.
func (f *Flow) CurrentDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	return f.drafts.GetDraft(ctx, sessionID)
}

// CheckRateLimit throttles flow mutations per session.
func (f *Flow) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	return f.drafts.CheckRateLimit(ctx, sessionID, limit, window)
}

func (f *Flow) publishEvent(eventType string, booking *models.ConfirmedBooking) {
	if f.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		ServiceID:     booking.ServiceID,
		ServiceName:   booking.ServiceName,
		CustomerName:  booking.CustomerName,
		Price:         booking.Price,
		BookingStatus: booking.BookingStatus,
		PaymentStatus: booking.PaymentStatus,
		Date:          booking.Date,
		TimeSlot:      booking.TimeSlot,
		TransactionID: booking.TransactionID,
	}

	if err := f.eventBus.PublishJSON(eventType, payload); err != nil {
		f.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (f *Flow) publishDraftEvent(eventType string, draft *models.BookingDraft) {
	if f.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     draft.ID,
		ServiceID:     draft.ServiceID,
		ServiceName:   draft.ServiceName,
		CustomerName:  draft.CustomerName,
		Price:         draft.Price,
		BookingStatus: draft.BookingStatus,
		PaymentStatus: draft.PaymentStatus,
		Date:          draft.Date,
		TimeSlot:      draft.TimeSlot,
	}

	if err := f.eventBus.PublishJSON(eventType, payload); err != nil {
		f.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", draft.ID).Msg("publish event error")
	}
}
