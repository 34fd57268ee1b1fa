// Package validation holds the input predicates for conversational form fields.
package validation

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minFieldLen = 3
	maxFieldLen = 25

	// QuotePctMin and QuotePctMax bound the accepted quote percentage.
	QuotePctMin = -100.0
	QuotePctMax = 100.0

	// OfferQuantityMinKg and OfferQuantityMaxKg bound the offer lot mass.
	OfferQuantityMinKg = 10.0
	OfferQuantityMaxKg = 10000.0
)

var (
	nameRe = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z\s-]+$`)
	orgRe  = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z0-9\s.,!?:;\-'"]+$`)
)

// Name checks a participant name: 3-25 characters, letters, spaces, hyphens.
func Name(text string) (bool, string) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minFieldLen || len([]rune(text)) > maxFieldLen {
		return false, "Длина имени должна быть от 3 до 25 символов"
	}
	if !nameRe.MatchString(text) {
		return false, "Можно использовать только буквы, пробелы и дефис"
	}
	return true, ""
}

// Organization checks an organization title: 3-25 characters, letters, digits,
// basic punctuation.
func Organization(text string) (bool, string) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minFieldLen || len([]rune(text)) > maxFieldLen {
		return false, "Длина названия должна быть от 3 до 25 символов"
	}
	if !orgRe.MatchString(text) {
		return false, "Недопустимые символы в названии"
	}
	return true, ""
}

// Contacts checks a free-form contacts string: 3-25 characters.
func Contacts(text string) (bool, string) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minFieldLen || len([]rune(text)) > maxFieldLen {
		return false, "Длина контактов должна быть от 3 до 25 символов"
	}
	return true, ""
}

// ParseDecimal parses a decimal number accepting both comma and period
// separators.
func ParseDecimal(text string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(text), ",", ".", 1), 64)
}

// QuotePct parses and range-checks a quote percentage.
func QuotePct(text string) (float64, bool, string) {
	v, err := ParseDecimal(text)
	if err != nil {
		return 0, false, "Введите число (например: 1,5 или -0,5)"
	}
	if v < QuotePctMin || v > QuotePctMax {
		return 0, false, "Котировка должна быть между -100 и 100"
	}
	return v, true, ""
}

// OfferQuantity parses and range-checks an offer lot mass in kilograms.
func OfferQuantity(text string) (float64, bool, string) {
	v, err := ParseDecimal(text)
	if err != nil || v <= 0 {
		return 0, false, "Введите, пожалуйста, положительное число. Например: 3.5"
	}
	if v < OfferQuantityMinKg || v > OfferQuantityMaxKg {
		return 0, false, "Масса партии должна быть от 10 до 10000 кг"
	}
	return v, true, ""
}
