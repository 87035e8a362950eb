package domain

import (
	"errors"
	"strings"
	"unicode"
)

// Phone validation errors returned by NormalizePhone.
var (
	// ErrPhoneLength indicates the digit count is not exactly eleven.
	ErrPhoneLength = errors.New("phone must contain exactly 11 digits")
	// ErrPhonePrefix indicates the leading digit is neither 7 nor 8.
	ErrPhonePrefix = errors.New("phone must start with 7 or 8")
)

// NormalizePhone strips every non-digit rune from raw and validates the
// result: exactly eleven digits, first digit 7 or 8. It returns the digit
// string on success.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 11 {
		return "", ErrPhoneLength
	}
	if digits[0] != '7' && digits[0] != '8' {
		return "", ErrPhonePrefix
	}
	return digits, nil
}

// Validate checks contact completeness for the given delivery method. Every
// field is optional except the address for courier delivery; a phone, when
// given, must pass NormalizePhone.
func (c OrderContact) Validate(method DeliveryMethod) error {
	if strings.TrimSpace(c.Phone) != "" {
		if _, err := NormalizePhone(c.Phone); err != nil {
			return err
		}
	}
	if method == DeliveryMethodCourier && strings.TrimSpace(c.Address) == "" {
		return errors.New("delivery address is required")
	}
	return nil
}

// ValidDeliveryMethod reports whether method is a recognised delivery method.
func ValidDeliveryMethod(method DeliveryMethod) bool {
	switch method {
	case DeliveryMethodCourier, DeliveryMethodPickup:
		return true
	default:
		return false
	}
}
