package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tidybeast/internal/domain"
	"tidybeast/internal/metrics"
	"tidybeast/internal/models"

	"github.com/rs/zerolog"
)

// ErrAllChannelsFailed means no channel accepted the notification; the task
// stays queued for retry and eventually for manual handling.
var ErrAllChannelsFailed = errors.New("all notification channels failed")

// Channel is one delivery route for a confirmed booking.
type Channel interface {
	Name() string
	Send(ctx context.Context, booking *models.ConfirmedBooking) error
}

// Sink tries its channels in order and stops at the first success. Every
// attempt is returned so the caller can log the full picture.
type Sink struct {
	channels []Channel
	logger   *zerolog.Logger
}

func NewSink(logger *zerolog.Logger, channels ...Channel) *Sink {
	return &Sink{channels: channels, logger: logger}
}

func (s *Sink) Notify(ctx context.Context, booking *models.ConfirmedBooking) ([]domain.NotifyResult, error) {
	if len(s.channels) == 0 {
		return nil, ErrAllChannelsFailed
	}

	var results []domain.NotifyResult
	for _, ch := range s.channels {
		err := ch.Send(ctx, booking)
		results = append(results, domain.NotifyResult{Channel: ch.Name(), Err: err})

		if err == nil {
			metrics.IncNotifyAttempt(ch.Name(), "ok")
			return results, nil
		}

		metrics.IncNotifyAttempt(ch.Name(), "error")
		s.logger.Warn().
			Err(err).
			Str("channel", ch.Name()).
			Str("booking_id", booking.ID).
			Msg("notification channel failed, trying next")
	}

	return results, ErrAllChannelsFailed
}

// Summary renders the plain-text notification shared by the email and
// telegram channels.
func Summary(booking *models.ConfirmedBooking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New booking %s\n", booking.ID)
	fmt.Fprintf(&b, "Service: %s\n", booking.ServiceName)
	if booking.Selector.HomeSize != "" {
		fmt.Fprintf(&b, "Home size: %s\n", booking.Selector.HomeSize)
	}
	if booking.Selector.Quantity > 0 {
		fmt.Fprintf(&b, "Quantity: %d", booking.Selector.Quantity)
		if booking.Selector.Unit != "" {
			fmt.Fprintf(&b, " (%s)", booking.Selector.Unit)
		}
		b.WriteString("\n")
	}
	if booking.Selector.Area > 0 {
		fmt.Fprintf(&b, "Area: %.0f sq.ft\n", booking.Selector.Area)
	}
	fmt.Fprintf(&b, "Customer: %s, %s, %s\n", booking.CustomerName, booking.CustomerPhone, booking.CustomerEmail)
	fmt.Fprintf(&b, "Address: %s\n", booking.Address)
	fmt.Fprintf(&b, "When: %s at %s\n", booking.Date.Format("2006-01-02"), booking.TimeSlot)
	fmt.Fprintf(&b, "Amount: INR %d (txn %s)\n", booking.Price, booking.TransactionID)
	if booking.SpecialRequirements != "" {
		fmt.Fprintf(&b, "Notes: %s\n", booking.SpecialRequirements)
	}
	return b.String()
}
