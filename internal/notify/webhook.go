package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tidybeast/internal/config"
	"tidybeast/internal/models"
)

// EmailWebhookChannel forwards the booking as a form POST to a mail-relay
// endpoint (Formspree-style). The provider turns the form into an email to
// the business inbox.
type EmailWebhookChannel struct {
	cfg    config.EmailChannelConfig
	client *http.Client
}

func NewEmailWebhookChannel(cfg config.EmailChannelConfig) *EmailWebhookChannel {
	return &EmailWebhookChannel{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *EmailWebhookChannel) Name() string { return "email_webhook" }

func (c *EmailWebhookChannel) Send(ctx context.Context, booking *models.ConfirmedBooking) error {
	form := url.Values{}
	form.Set("email", c.cfg.ToEmail)
	form.Set("subject", fmt.Sprintf("New booking %s - %s", booking.ID, booking.ServiceName))
	form.Set("message", Summary(booking))
	form.Set("_replyto", booking.CustomerEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}

	return nil
}
