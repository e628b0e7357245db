// Package phone normalizes candidate phone numbers for outbound dialing.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidNumber = errors.New("phone: invalid number")

// NormalizeE164 formats input as E.164, using region for numbers without a
// country code. Unparseable or invalid numbers return ErrInvalidNumber.
func NormalizeE164(input, region string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidNumber
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalidNumber
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}
