package notify

import (
	"context"

	"tidybeast/internal/models"
)

// SheetsAppender is implemented by the Google Sheets client.
type SheetsAppender interface {
	AppendBooking(ctx context.Context, booking *models.ConfirmedBooking) error
}

// SheetsChannel records the booking as a spreadsheet row. It is the primary
// channel: the sheet doubles as the owner's order book.
type SheetsChannel struct {
	sheets SheetsAppender
}

func NewSheetsChannel(sheets SheetsAppender) *SheetsChannel {
	return &SheetsChannel{sheets: sheets}
}

func (c *SheetsChannel) Name() string { return "sheets" }

func (c *SheetsChannel) Send(ctx context.Context, booking *models.ConfirmedBooking) error {
	return c.sheets.AppendBooking(ctx, booking)
}
