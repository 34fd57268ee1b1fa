package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "cyrillic name", input: "Иван Петров", ok: true},
		{name: "latin with hyphen", input: "Anna-Maria", ok: true},
		{name: "too short", input: "Ив", ok: false},
		{name: "too long", input: "Очень длинное имя которое не помещается", ok: false},
		{name: "digits rejected", input: "Иван 2й", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := Name(tc.input)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestOrganization(t *testing.T) {
	ok, _ := Organization("ООО \"Ромашка-1\"")
	assert.True(t, ok)

	ok, reason := Organization("АО")
	assert.False(t, ok)
	assert.Equal(t, "Длина названия должна быть от 3 до 25 символов", reason)

	ok, _ = Organization("Банк №1 <script>")
	assert.False(t, ok)
}

func TestContacts(t *testing.T) {
	ok, _ := Contacts("+7 900 123-45-67")
	assert.True(t, ok)

	ok, _ = Contacts("ab")
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	v, err := ParseDecimal("1,5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = ParseDecimal("-0.5")
	require.NoError(t, err)
	assert.Equal(t, -0.5, v)

	_, err = ParseDecimal("abc")
	require.Error(t, err)
}

func TestQuotePct_Boundaries(t *testing.T) {
	testCases := []struct {
		input string
		value float64
		ok    bool
	}{
		{input: "100", value: 100, ok: true},
		{input: "-100", value: -100, ok: true},
		{input: "100.01", ok: false},
		{input: "-100,01", ok: false},
		{input: "1,5", value: 1.5, ok: true},
		{input: "не число", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			v, ok, reason := QuotePct(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.value, v)
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestOfferQuantity(t *testing.T) {
	_, ok, _ := OfferQuantity("100")
	assert.True(t, ok)

	_, ok, reason := OfferQuantity("5")
	assert.False(t, ok)
	assert.Equal(t, "Масса партии должна быть от 10 до 10000 кг", reason)

	_, ok, _ = OfferQuantity("10001")
	assert.False(t, ok)

	_, ok, _ = OfferQuantity("-3")
	assert.False(t, ok)

	_, ok, _ = OfferQuantity("0")
	assert.False(t, ok)
}
