package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reAllSpace   = regexp.MustCompile(`\s+`)
	rePhoneNoise = regexp.MustCompile(`[\s().]+`)
)

func removeSpaces(s string) string {
	return reAllSpace.ReplaceAllString(s, "")
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return Pipeline{strings.TrimSpace, strings.ToLower}.Apply(email)
}

// NormalizeIdentityNumber strips whitespace from an identity card number
// so "900101 - 14 - 5678" and "900101-14-5678" compare equal.
func NormalizeIdentityNumber(id string) string {
	return removeSpaces(id)
}

// NormalizePhone strips spaces, dots and brackets but keeps the dash that
// separates the prefix from the subscriber number.
func NormalizePhone(phone string) string {
	return Pipeline{
		strings.TrimSpace,
		func(s string) string { return rePhoneNoise.ReplaceAllString(s, "") },
	}.Apply(phone)
}

// NormalizeID trims an opaque identifier.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// NormalizePaymentMethod maps case variants of the supported methods to
// their canonical spelling and defaults an empty value to FPX.
func NormalizePaymentMethod(method string) string {
	m := strings.TrimSpace(method)
	switch strings.ToLower(m) {
	case "":
		return "FPX"
	case "fpx":
		return "FPX"
	case "card", "cash", "ewallet":
		return strings.ToLower(m)
	}
	return m
}
