package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidator(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		wantCode string
	}{
		{name: "accepts strong password", password: "Tr0ub4dour&horse-staple"},
		{name: "rejects short password", password: "Ab1!", wantCode: "min_length"},
		{name: "rejects single class", password: "aaaaaaaaaaaaaa", wantCode: "character_classes"},
		{name: "rejects weak common password", password: "password123456", wantCode: "weak_password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected password to pass, got %v", err)
				}
				return
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %v", err)
			}
			if violation.Code != tc.wantCode {
				t.Fatalf("expected violation %s, got %s", tc.wantCode, violation.Code)
			}
		})
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("old-password-1!")

	if err := rule.Validate("old-password-1!"); err == nil {
		t.Fatalf("expected reuse of current password to be rejected")
	}
	if err := rule.Validate("brand-new-password-2@"); err != nil {
		t.Fatalf("expected different password to pass, got %v", err)
	}
}
