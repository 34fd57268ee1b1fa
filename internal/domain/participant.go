package domain

import "time"

// Participant is a registered bot user eligible to submit offers and quotes.
type Participant struct {
	TelegramID   int64
	Name         string
	Organization string
	OrgType      string
	Contacts     string
	NotifyOptIn  bool
	RegisteredAt time.Time
}

// OrgTypes lists the allowed organization categories in menu order.
func OrgTypes() []string {
	return []string{
		"Банк РФ",
		"Организация в РФ",
		"Организация из ЕАЭС",
		"Организация вне ЕАЭС",
	}
}

// ValidOrgType reports whether s is one of the allowed organization categories.
func ValidOrgType(s string) bool {
	for _, t := range OrgTypes() {
		if s == t {
			return true
		}
	}
	return false
}
