package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"tidybeast/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService appends confirmed bookings to the business spreadsheet.
// It authenticates as a service account whose email must be shared on the
// target sheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetsService(credentialsFile, spreadsheetID, sheetName string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// TestConnection reads the header cell to verify access.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the account to share the sheet with.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// AppendBooking adds one row for the booking.
func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.ConfirmedBooking) error {
	row := []interface{}{
		booking.ID,
		booking.ConfirmedAt.Format("2006-01-02 15:04:05"),
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.ServiceName,
		selectorLabel(booking.Selector),
		booking.Address,
		booking.Date.Format("2006-01-02"),
		booking.TimeSlot,
		booking.Price,
		booking.PaymentStatus,
		booking.BookingStatus,
		booking.TransactionID,
		booking.SpecialRequirements,
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{row}}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:O", valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking row: %w", err)
	}

	return nil
}

func selectorLabel(sel models.Selector) string {
	switch {
	case sel.HomeSize != "":
		return sel.HomeSize
	case sel.Area > 0:
		return fmt.Sprintf("%.0f sq.ft", sel.Area)
	case sel.Unit != "":
		return fmt.Sprintf("%s x%d", sel.Unit, sel.Quantity)
	default:
		return fmt.Sprintf("x%d", sel.Quantity)
	}
}
