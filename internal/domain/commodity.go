package domain

// Commodity identifies one of the tradable metals the desk collects quotes for.
type Commodity string

const (
	CommodityGold   Commodity = "gold"
	CommoditySilver Commodity = "silver"
)

// Commodities lists every commodity in a stable order.
func Commodities() []Commodity {
	return []Commodity{CommodityGold, CommoditySilver}
}

// Other returns the counterpart commodity of the fixed pair.
func (c Commodity) Other() Commodity {
	if c == CommodityGold {
		return CommoditySilver
	}
	return CommodityGold
}

// Valid reports whether c is a known commodity.
func (c Commodity) Valid() bool {
	return c == CommodityGold || c == CommoditySilver
}

// Title returns the user-facing Russian name of the commodity.
func (c Commodity) Title() string {
	switch c {
	case CommodityGold:
		return "Золото"
	case CommoditySilver:
		return "Серебро"
	default:
		return string(c)
	}
}

// CommodityFromTitle resolves a user-facing name back to a Commodity.
func CommodityFromTitle(title string) (Commodity, bool) {
	switch title {
	case "Золото":
		return CommodityGold, true
	case "Серебро":
		return CommoditySilver, true
	default:
		return "", false
	}
}
