package voice

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"screening-platform/internal/screening"
)

// ProviderError is a classified provider failure.
type ProviderError struct {
	Kind       screening.Reason
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("voice provider: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("voice provider: %s: %s", e.Kind, e.Message)
}

var (
	authMarkers = []string{
		"unauthorized", "invalid api key", "invalid key", "authentication", "forbidden", "not authorized",
	}
	paymentMarkers = []string{
		"payment", "insufficient credit", "insufficient funds", "billing", "out of credits", "out of balance",
	}
)

// Classify maps a provider failure onto the screening taxonomy.
// HTTP status wins over text when it is conclusive.
func Classify(statusCode int, message string) screening.Reason {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return screening.ReasonProviderAuthError
	case http.StatusPaymentRequired:
		return screening.ReasonProviderPaymentError
	}

	msg := strings.ToLower(message)
	for _, m := range paymentMarkers {
		if strings.Contains(msg, m) {
			return screening.ReasonProviderPaymentError
		}
	}
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return screening.ReasonProviderAuthError
		}
	}
	return screening.ReasonProviderTransientError
}

// ReasonOf extracts the classification from err, classifying plain errors by text.
func ReasonOf(err error) screening.Reason {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Classify(0, err.Error())
}

func newProviderError(statusCode int, message string) *ProviderError {
	return &ProviderError{Kind: Classify(statusCode, message), StatusCode: statusCode, Message: message}
}
