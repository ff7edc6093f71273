package service

import (
	"regexp"
	"strings"
	"time"

	"tidybeast/internal/models"
	"tidybeast/internal/pricing"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validateDetails checks the customer-supplied details before the draft may
// enter the payment step. The first failing field is reported.
func (f *Flow) validateDetails(svc *pricing.ServiceConfig, details *models.BookingDraft) error {
	if strings.TrimSpace(details.CustomerName) == "" {
		return &ValidationError{Field: "customer_name", Message: "name is required"}
	}
	if strings.TrimSpace(details.CustomerEmail) == "" {
		return &ValidationError{Field: "customer_email", Message: "email is required"}
	}
	if !emailPattern.MatchString(strings.TrimSpace(details.CustomerEmail)) {
		return &ValidationError{Field: "customer_email", Message: "invalid email address"}
	}
	if strings.TrimSpace(details.CustomerPhone) == "" {
		return &ValidationError{Field: "customer_phone", Message: "phone is required"}
	}
	if _, ok := NormalizePhone(details.CustomerPhone); !ok {
		return &ValidationError{Field: "customer_phone", Message: "invalid phone number"}
	}
	if strings.TrimSpace(details.Address) == "" {
		return &ValidationError{Field: "address", Message: "address is required"}
	}

	if err := f.validateDate(details.Date); err != nil {
		return err
	}

	if !validTimeSlot(details.TimeSlot) {
		return &ValidationError{Field: "time_slot", Message: "time slot is not available"}
	}

	return validateSelector(svc, details.Selector)
}

// NormalizePhone strips separators and validates the digit count. A single
// leading + is allowed.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	plus := strings.HasPrefix(s, "+")
	if plus {
		s = s[1:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// separators are ignored
		default:
			return "", false
		}
	}

	n := digits.Len()
	if n < models.MinPhoneDigits || n > models.MaxPhoneDigits {
		return "", false
	}

	if plus {
		return "+" + digits.String(), true
	}
	return digits.String(), true
}

// validateDate accepts today and future dates up to the configured horizon.
// Comparison is date-only in local time.
func (f *Flow) validateDate(date time.Time) error {
	if date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())

	if day.Before(today) {
		return &ValidationError{Field: "date", Message: "date must not be in the past"}
	}
	if f.maxBookingDays > 0 && day.After(today.AddDate(0, 0, f.maxBookingDays)) {
		return &ValidationError{Field: "date", Message: "date is too far ahead"}
	}
	return nil
}

func validTimeSlot(slot string) bool {
	for _, s := range models.TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// validateSelector requires the size or quantity choice matching the
// service's pricing mode.
func validateSelector(svc *pricing.ServiceConfig, sel models.Selector) error {
	switch svc.PricingMode {
	case models.PricingBHKScaled:
		if strings.TrimSpace(sel.HomeSize) == "" {
			return &ValidationError{Field: "home_size", Message: "home size is required"}
		}
	case models.PricingFlatPerUnit:
		if sel.Quantity < 1 || sel.Quantity > models.MaxQuantity {
			return &ValidationError{Field: "quantity", Message: "quantity must be between 1 and 10"}
		}
	case models.PricingAreaScaled:
		if sel.Area <= 0 {
			return &ValidationError{Field: "area", Message: "area must be positive"}
		}
	}
	return nil
}
