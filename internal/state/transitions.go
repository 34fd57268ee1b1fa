package state

// validTransitions contains the permitted forward transitions of the FSM.
// Returning to idle is always allowed: completion, decline, and timeout
// finalization all terminate there. Branch entry states are also reachable
// from anywhere: menu buttons interrupt an in-flight form.
var validTransitions = map[State][]State{
	StateRegName: {
		StateRegOrganization,
	},
	StateRegOrganization: {
		StateRegOrgType,
	},
	StateRegOrgType: {
		StateRegContacts,
	},
	StateOfferCommodity: {
		StateOfferQuantity,
	},
	StateOfferQuantity: {
		StateOfferQuote,
	},
	StateQuoteCommodity: {
		StateQuoteValue,
	},
	StateQuoteValue: {
		StateQuoteSecond,
	},
	StateQuoteSecond: {
		StateQuoteValue,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	switch to {
	case StateIdle, StateRegName, StateOfferCommodity, StateQuoteCommodity:
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
