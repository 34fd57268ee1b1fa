package domain

import "time"

// Offer is an accepted purchase offer for a single commodity.
type Offer struct {
	TelegramID   int64
	Name         string
	Organization string
	OrgType      string
	SubmittedAt  time.Time
	Commodity    Commodity
	QuantityKg   float64
	QuotePct     float64
}

// QuoteOutcomeKind distinguishes the three terminal results of a quote request.
type QuoteOutcomeKind string

const (
	OutcomeValue    QuoteOutcomeKind = "value"
	OutcomeDeclined QuoteOutcomeKind = "declined"
	OutcomeExpired  QuoteOutcomeKind = "expired"
)

// Label returns the value written to the outcome column for non-numeric results.
func (k QuoteOutcomeKind) Label() string {
	switch k {
	case OutcomeDeclined:
		return "Отказ от предоставления"
	case OutcomeExpired:
		return "Время вышло"
	default:
		return string(k)
	}
}

// QuoteOutcome is one persisted row in a per-commodity quote table.
type QuoteOutcome struct {
	TelegramID   int64
	Name         string
	Organization string
	OrgType      string
	RecordedAt   time.Time
	Commodity    Commodity
	Kind         QuoteOutcomeKind
	ValuePct     float64 // meaningful only when Kind == OutcomeValue
}

// BroadcastKind distinguishes schedule entries that only inform from entries
// that open a timed quote-response session.
type BroadcastKind string

const (
	BroadcastInfo         BroadcastKind = "info"
	BroadcastQuoteRequest BroadcastKind = "quote_request"
)

// ScheduleEntry is one row of the externally authored broadcast schedule.
type ScheduleEntry struct {
	ID             int64
	TriggerTime    string // wall-clock "HH:MM" in the configured timezone
	ResponseWindow time.Duration
	Kind           BroadcastKind
	Body           string
}
