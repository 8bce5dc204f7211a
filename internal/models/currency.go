package models

// Currency is an ISO 4217 style currency code ("USD", "EUR", ...).
// The engine treats it as an opaque label; formatting is a caller concern.
type Currency string

// Default currency for groups created without an explicit choice.
const DefaultCurrency Currency = "USD"

// String returns the currency code.
func (c Currency) String() string {
	return string(c)
}

// OrDefault returns the currency, or DefaultCurrency if empty.
func (c Currency) OrDefault() Currency {
	if c == "" {
		return DefaultCurrency
	}
	return c
}
