package models

// Payment statuses carried on a booking. A paid booking cancelled by an
// admin moves to refund_pending until the refund is settled manually.
const (
	PaymentPending       = "pending"
	PaymentCompleted     = "completed"
	PaymentFailed        = "failed"
	PaymentRefundPending = "refund_pending"
)

// Booking statuses. The flow only produces pending and confirmed;
// the admin view transitions the rest.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Flow steps of a booking session.
const (
	StepSelectingService = "selecting_service"
	StepEnteringDetails  = "entering_details"
	StepAwaitingPayment  = "awaiting_payment"
	StepConfirmed        = "confirmed"
	StepAbandoned        = "abandoned"
)

// Pricing modes of a catalog entry.
const (
	PricingBHKScaled   = "bhk_scaled"
	PricingFlatPerUnit = "flat_per_unit"
	PricingAreaScaled  = "area_scaled"
)

// The seven home-size categories, ordered smallest to largest.
// 2 BHK is the reference size; its multiplier is exactly 1.0.
var BHKCategories = []string{
	"Studio/1RK",
	"1 BHK",
	"2 BHK",
	"3 BHK",
	"4 BHK",
	"5+ BHK",
	"Villa",
}

// BHKReference is the baseline category used when a label is unrecognized.
const BHKReference = "2 BHK"

// BHKMultipliers scale a base price for services without an override table.
var BHKMultipliers = map[string]float64{
	"Studio/1RK": 0.7,
	"1 BHK":      0.8,
	"2 BHK":      1.0,
	"3 BHK":      1.3,
	"4 BHK":      1.6,
	"5+ BHK":     2.0,
	"Villa":      2.5,
}

// TimeSlots a customer may pick from. No business rule behind the list;
// it mirrors the hours the crews work.
var TimeSlots = []string{
	"09:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
	"01:00 PM", "02:00 PM", "03:00 PM", "04:00 PM", "05:00 PM",
}

const (
	// MaxQuantity caps unit-priced services (sofas, kitchens, washrooms).
	MaxQuantity = 10

	// MinPhoneDigits/MaxPhoneDigits bound a normalized phone number.
	MinPhoneDigits = 7
	MaxPhoneDigits = 14

	// DefaultDraftTTL is how long a draft survives in the transient store.
	DefaultDraftTTL = 24 * 60 * 60 // 24 hours in seconds

	// WorkerQueueSize is the in-memory notify queue capacity.
	WorkerQueueSize = 128

	// RateLimitRequests requests per window per session.
	RateLimitRequests = 20

	// RateLimitWindow rate limit window in seconds.
	RateLimitWindow = 60
)
