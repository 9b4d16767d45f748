package validation

import (
	"testing"
	"time"
)

func TestIsValidLuhn(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid example 2",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidLuhn(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidLuhn(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestLuhnCheckDigit(t *testing.T) {
	d, ok := LuhnCheckDigit("7992739871")
	if !ok || d != '3' {
		t.Fatalf("LuhnCheckDigit = %q, %v; want '3', true", d, ok)
	}

	if _, ok := LuhnCheckDigit("12a"); ok {
		t.Fatalf("expected failure for non-digit payload")
	}
	if _, ok := LuhnCheckDigit(""); ok {
		t.Fatalf("expected failure for empty payload")
	}
}

func TestInvoiceNumber(t *testing.T) {
	day := time.Date(2026, time.January, 2, 15, 0, 0, 0, time.UTC)

	got := InvoiceNumber(day, "7992739871")
	if got != "INV-20260102-79927398713" {
		t.Fatalf("InvoiceNumber = %q", got)
	}
	if !IsValidInvoiceNumber(got) {
		t.Fatalf("generated invoice %q must be valid", got)
	}

	short := InvoiceNumber(day, "42")
	if !IsValidInvoiceNumber(short) {
		t.Fatalf("padded invoice %q must be valid", short)
	}
	if len(short) != len(got) {
		t.Fatalf("padded invoice %q has wrong length", short)
	}
}

func TestIsValidInvoiceNumber(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "valid", value: "INV-20260102-79927398713", valid: true},
		{name: "bad check digit", value: "INV-20260102-79927398710", valid: false},
		{name: "bad date", value: "INV-20261302-79927398713", valid: false},
		{name: "no prefix", value: "20260102-79927398713", valid: false},
		{name: "short tail", value: "INV-20260102-12345", valid: false},
		{name: "empty", value: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidInvoiceNumber(tt.value); got != tt.valid {
				t.Fatalf("IsValidInvoiceNumber(%q) = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestDepositReference(t *testing.T) {
	ref := DepositReference("7992739871")
	if ref != "WJ79927398713" {
		t.Fatalf("DepositReference = %q", ref)
	}

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "canonical", value: "WJ79927398713", valid: true},
		{name: "lower case and spaces", value: "  wj79927398713 ", valid: true},
		{name: "bad check digit", value: "WJ79927398714", valid: false},
		{name: "too short", value: "WJ123", valid: false},
		{name: "wrong prefix", value: "XX79927398713", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidDepositReference(tt.value); got != tt.valid {
				t.Fatalf("IsValidDepositReference(%q) = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}

	padded := DepositReference("7")
	if !IsValidDepositReference(padded) {
		t.Fatalf("padded reference %q must be valid", padded)
	}
}
