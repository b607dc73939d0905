package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

var (
	emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneShape = regexp.MustCompile(`^07\d{8}$`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// FieldErrors maps shipping-address field names to display-ready messages.
type FieldErrors map[string]string

// Error renders the field messages in a stable order.
func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "address is invalid"
	}
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

// ValidateFullName requires a trimmed length of at least two characters.
func ValidateFullName(fullName string) error {
	if len([]rune(strings.TrimSpace(fullName))) < 2 {
		return errors.New("enter the recipient's full name")
	}
	return nil
}

// ValidateEmail requires a local@domain.tld shape.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("enter an email address")
	}
	if !emailShape.MatchString(strings.TrimSpace(email)) {
		return errors.New("enter a valid email address")
	}
	return nil
}

// ValidatePhone accepts Romanian mobile numbers: exactly ten digits starting
// with 07 once spaces, hyphens, and parentheses are stripped.
func ValidatePhone(phone string) error {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		default:
			return r
		}
	}, phone)
	if stripped == "" {
		return errors.New("enter a phone number")
	}
	if !phoneShape.MatchString(stripped) {
		return errors.New("enter a valid mobile number (07XXXXXXXX)")
	}
	return nil
}

// ValidateStreetAddress requires a trimmed length of at least five characters.
func ValidateStreetAddress(address string) error {
	if len([]rune(strings.TrimSpace(address))) < 5 {
		return errors.New("enter the street address")
	}
	return nil
}

// ValidateCounty requires membership in the canonical county set.
func ValidateCounty(county string) error {
	if strings.TrimSpace(county) == "" {
		return errors.New("select a county")
	}
	if !IsCounty(county) {
		return errors.New("select a county from the list")
	}
	return nil
}

// ValidateCity requires membership in the selected county's city set when
// that set is non-empty; any non-empty city passes otherwise. An invalid
// county makes the city unverifiable and therefore invalid.
func ValidateCity(county, city string) error {
	if strings.TrimSpace(city) == "" {
		return errors.New("enter a city")
	}
	if !IsCityInCounty(county, city) {
		return errors.New("select a city from the chosen county")
	}
	return nil
}

// ValidatePostalCode requires four to six digits.
func ValidatePostalCode(postalCode string) error {
	trimmed := strings.TrimSpace(postalCode)
	if trimmed == "" {
		return errors.New("enter a postal code")
	}
	if !digitsOnly.MatchString(trimmed) || len(trimmed) < 4 || len(trimmed) > 6 {
		return errors.New("enter a postal code of 4 to 6 digits")
	}
	return nil
}

// ValidateShippingAddress runs every field validator and aggregates failures
// into a FieldErrors value. A nil return means the address is submittable.
func ValidateShippingAddress(addr ShippingAddress) error {
	fieldErrs := FieldErrors{}
	record := func(field string, err error) {
		if err != nil {
			fieldErrs[field] = err.Error()
		}
	}
	record("fullName", ValidateFullName(addr.FullName))
	record("email", ValidateEmail(addr.Email))
	record("phone", ValidatePhone(addr.Phone))
	record("address", ValidateStreetAddress(addr.Address))
	record("county", ValidateCounty(addr.County))
	record("city", ValidateCity(addr.County, addr.City))
	record("postalCode", ValidatePostalCode(addr.PostalCode))
	if len(fieldErrs) > 0 {
		return fieldErrs
	}
	return nil
}
