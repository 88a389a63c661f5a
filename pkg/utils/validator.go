package utils

import (
	"fmt"
	"regexp"
)

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	controlCharRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrencyCode validates an ISO 4217 style code such as INR or USD
func ValidateCurrencyCode(code string) error {
	if !currencyCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// SanitizeString removes control characters from free text
func SanitizeString(s string) string {
	return controlCharRegex.ReplaceAllString(s, "")
}
