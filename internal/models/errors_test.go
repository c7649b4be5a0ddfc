package models

import (
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	withValue := &ValidationError{Field: "demand", Value: "high", Message: "demand must be a number or null"}
	want := `demand: demand must be a number or null (got "high")`
	if withValue.Error() != want {
		t.Errorf("Error() = %v, want %v", withValue.Error(), want)
	}

	withoutValue := &ValidationError{Field: "region", Message: "region is required"}
	want = "region: region is required"
	if withoutValue.Error() != want {
		t.Errorf("Error() = %v, want %v", withoutValue.Error(), want)
	}

	if withValue.IsTransient() {
		t.Error("IsTransient() = true, want false")
	}
}

func TestIsValidationError(t *testing.T) {
	vErr := &ValidationError{Field: "region", Message: "region is required"}

	if !IsValidationError(vErr) {
		t.Error("IsValidationError(direct) = false, want true")
	}
	if !IsValidationError(fmt.Errorf("processing failed: %w", vErr)) {
		t.Error("IsValidationError(wrapped) = false, want true")
	}
	if IsValidationError(fmt.Errorf("plain error")) {
		t.Error("IsValidationError(plain) = true, want false")
	}
	if IsValidationError(nil) {
		t.Error("IsValidationError(nil) = true, want false")
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &NotFoundError{Resource: "region", ID: "CAL"}
	if err.Error() != "region not found: CAL" {
		t.Errorf("Error() = %v, want %v", err.Error(), "region not found: CAL")
	}
	if err.IsTransient() {
		t.Error("IsTransient() = true, want false")
	}
}
