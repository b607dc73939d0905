package domain

import (
	"errors"
	"testing"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{"0712345678", "0712 345 678", "0712-345-678", "(0712) 345678"}
	for _, phone := range valid {
		if err := ValidatePhone(phone); err != nil {
			t.Fatalf("ValidatePhone(%q) = %v, want nil", phone, err)
		}
	}

	invalid := []string{"", "0612345678", "071234567", "07123456789", "07a2345678"}
	for _, phone := range invalid {
		if err := ValidatePhone(phone); err == nil {
			t.Fatalf("ValidatePhone(%q) = nil, want error", phone)
		}
	}
}

func TestValidatePostalCode(t *testing.T) {
	valid := []string{"1234", "12345", "123456"}
	for _, code := range valid {
		if err := ValidatePostalCode(code); err != nil {
			t.Fatalf("ValidatePostalCode(%q) = %v, want nil", code, err)
		}
	}

	invalid := []string{"", "123", "1234567", "12a4"}
	for _, code := range invalid {
		if err := ValidatePostalCode(code); err == nil {
			t.Fatalf("ValidatePostalCode(%q) = nil, want error", code)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("ana@example.com"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}
	for _, email := range []string{"", "ana", "ana@", "ana@example", "ana @example.com"} {
		if err := ValidateEmail(email); err == nil {
			t.Fatalf("ValidateEmail(%q) = nil, want error", email)
		}
	}
}

func TestValidateCityRequiresKnownCounty(t *testing.T) {
	if err := ValidateCity("Brașov", "Brașov"); err != nil {
		t.Fatalf("expected city in county to validate, got %v", err)
	}
	if err := ValidateCity("Brasov", "Rasnov"); err != nil {
		t.Fatalf("expected folded city lookup to validate, got %v", err)
	}
	if err := ValidateCity("Brașov", "Cluj-Napoca"); err == nil {
		t.Fatalf("expected city outside county to fail")
	}
	if err := ValidateCity("", "Brașov"); err == nil {
		t.Fatalf("expected missing county to make the city unverifiable")
	}
}

func TestValidateShippingAddress(t *testing.T) {
	addr := ShippingAddress{
		FullName:   "Ana Pop",
		Phone:      "0712345678",
		Email:      "ana@example.com",
		Address:    "Strada Lungă 12",
		County:     "Brașov",
		City:       "Brașov",
		PostalCode: "500001",
	}
	if err := ValidateShippingAddress(addr); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}

	broken := addr
	broken.Phone = "0612345678"
	broken.PostalCode = "12"
	err := ValidateShippingAddress(broken)
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if _, ok := fieldErrs["phone"]; !ok {
		t.Fatalf("expected phone error, got %v", fieldErrs)
	}
	if _, ok := fieldErrs["postalCode"]; !ok {
		t.Fatalf("expected postalCode error, got %v", fieldErrs)
	}
	if _, ok := fieldErrs["fullName"]; ok {
		t.Fatalf("did not expect fullName error, got %v", fieldErrs)
	}
}
