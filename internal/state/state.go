package state

import (
	"time"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// State represents a finite-state machine state of one participant's
// conversation.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next command.
	StateIdle State = "idle"

	// Registration branch.
	StateRegName         State = "reg_name"
	StateRegOrganization State = "reg_organization"
	StateRegOrgType      State = "reg_org_type"
	StateRegContacts     State = "reg_contacts"

	// Purchase offer branch.
	StateOfferCommodity State = "offer_commodity"
	StateOfferQuantity  State = "offer_quantity"
	StateOfferQuote     State = "offer_quote"

	// Quote response branch, entered from a broadcast-opened timed session.
	StateQuoteCommodity State = "quote_commodity"
	StateQuoteValue     State = "quote_value"
	StateQuoteSecond    State = "quote_second"
)

// RegistrationDraft accumulates the registration form fields.
type RegistrationDraft struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
	OrgType      string `json:"org_type"`
}

// OfferDraft accumulates the purchase offer form fields.
type OfferDraft struct {
	Commodity  domain.Commodity `json:"commodity"`
	QuantityKg float64          `json:"quantity_kg"`
}

// QuoteDraft tracks progress through a timed quote-response session.
type QuoteDraft struct {
	// Commodity currently being entered, empty before the first selection.
	Commodity domain.Commodity `json:"commodity"`
	// Answered lists commodities whose value rows are already persisted.
	Answered []domain.Commodity `json:"answered"`
	// PendingSecond is set while the second-commodity yes/no prompt is open.
	PendingSecond domain.Commodity `json:"pending_second"`
}

// HasAnswered reports whether a value row for c has been persisted.
func (d *QuoteDraft) HasAnswered(c domain.Commodity) bool {
	if d == nil {
		return false
	}
	for _, a := range d.Answered {
		if a == c {
			return true
		}
	}
	return false
}

// Unanswered returns the commodities with no persisted value row, in the
// stable commodity order. A pending second-commodity prompt counts as
// unanswered.
func (d *QuoteDraft) Unanswered() []domain.Commodity {
	var out []domain.Commodity
	for _, c := range domain.Commodities() {
		if !d.HasAnswered(c) {
			out = append(out, c)
		}
	}
	return out
}

// Session is the ephemeral conversational context of one participant. A
// deadline is present iff the deadline scheduler holds a live timer for the
// participant; TimedOut flips exactly once when the finalizer has run.
type Session struct {
	TelegramID   int64              `json:"telegram_id"`
	State        State              `json:"state"`
	Registration *RegistrationDraft `json:"registration,omitempty"`
	Offer        *OfferDraft        `json:"offer,omitempty"`
	Quote        *QuoteDraft        `json:"quote,omitempty"`
	Deadline     *time.Time         `json:"deadline,omitempty"`
	TimedOut     bool               `json:"timed_out"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewSession returns the default idle session for a participant.
func NewSession(telegramID int64) *Session {
	return &Session{
		TelegramID: telegramID,
		State:      StateIdle,
	}
}

// Expired reports whether the session deadline has passed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.Deadline != nil && now.After(*s.Deadline)
}

// Clone returns a deep copy of the session, detached from all shared draft
// pointers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	copied := *s
	if s.Registration != nil {
		reg := *s.Registration
		copied.Registration = &reg
	}
	if s.Offer != nil {
		offer := *s.Offer
		copied.Offer = &offer
	}
	if s.Quote != nil {
		quote := *s.Quote
		quote.Answered = append([]domain.Commodity(nil), s.Quote.Answered...)
		copied.Quote = &quote
	}
	if s.Deadline != nil {
		deadline := *s.Deadline
		copied.Deadline = &deadline
	}
	return &copied
}

// Reset returns the session to its default idle shape, dropping all drafts,
// the deadline, and the timeout flag.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Registration = nil
	s.Offer = nil
	s.Quote = nil
	s.Deadline = nil
	s.TimedOut = false
}
