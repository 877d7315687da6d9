package testutil

import (
	"errors"
	"testing"

	apperrors "treasurer/internal/errors"
)

// AssertAppError fails unless err is an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("want error %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("want *AppError %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("want error %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError stops the test on any error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
