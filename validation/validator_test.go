package validation

import (
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		in   string
		want autherr.Code
	}{
		{in: "ana@example.com", want: ""},
		{in: "  ana.maria+trips@sub.example.travel ", want: ""},
		{in: "", want: autherr.CodeMissingEmail},
		{in: "   ", want: autherr.CodeMissingEmail},
		{in: "ana", want: autherr.CodeInvalidEmail},
		{in: "ana@", want: autherr.CodeInvalidEmail},
		{in: "ana@example", want: autherr.CodeInvalidEmail},
		{in: "ana..b@example.com", want: autherr.CodeInvalidEmail},
		{in: strings.Repeat("a", 250) + "@example.com", want: autherr.CodeInvalidEmail},
	}
	for _, tt := range tests {
		got := ValidateEmail(tt.in)
		if tt.want == "" {
			if got != nil {
				t.Fatalf("ValidateEmail(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || got.Code != tt.want {
			t.Fatalf("ValidateEmail(%q) = %v, want %s", tt.in, got, tt.want)
		}
		if got.Field != FieldEmail {
			t.Fatalf("ValidateEmail(%q) field = %q", tt.in, got.Field)
		}
	}
}

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want autherr.Code
		msg  string
	}{
		{name: "ok", in: "Tr1p!Planner", want: ""},
		{name: "empty", in: "", want: autherr.CodeMissingPassword},
		{name: "short", in: "Ab1!", want: autherr.CodeWeakPassword, msg: "at least 8"},
		{name: "long", in: "Ab1!" + strings.Repeat("x", 130), want: autherr.CodeWeakPassword, msg: "at most 128"},
		{name: "no upper", in: "trip!planner1", want: autherr.CodeWeakPassword, msg: "uppercase"},
		{name: "no digit or symbol", in: "TripPlanner", want: autherr.CodeWeakPassword, msg: "a number and a special character"},
		{name: "common", in: "Password1!", want: autherr.CodeWeakPassword, msg: "too common"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePassword(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("unexpected error: %v", got)
				}
				return
			}
			if got == nil || got.Code != tt.want {
				t.Fatalf("got %v, want %s", got, tt.want)
			}
			if tt.msg != "" && !strings.Contains(got.Message, tt.msg) {
				t.Fatalf("message %q does not mention %q", got.Message, tt.msg)
			}
		})
	}
}

func TestStrengthRuleOptIn(t *testing.T) {
	policy := DefaultPasswordPolicy()
	policy.MinStrengthScore = 4
	v := New(WithPasswordPolicy(policy))

	// Satisfies composition but is a trivially guessable pattern.
	if err := v.ValidatePassword("Aaaaaaa1!"); err == nil || err.Code != autherr.CodeWeakPassword {
		t.Fatalf("expected strength rule to reject, got %v", err)
	}
	if err := New().ValidatePassword("Aaaaaaa1!"); err != nil {
		t.Fatalf("default policy should not score strength, got %v", err)
	}
}

func TestStrengthRuleSharedAcrossGoroutines(t *testing.T) {
	rule := StrengthRule(9)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- rule.Validate("Aaaaaaa1!")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err == nil {
			t.Fatal("score above 4 should clamp to 4 and reject a weak password")
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Mary-Jane O'Neil", FieldFirstName); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateName("José", FieldLastName); err != nil {
		t.Fatalf("unexpected error for accented name: %v", err)
	}
	if err := ValidateName(" ", FieldFirstName); err == nil || err.Code != autherr.CodeMissingName || err.Field != FieldFirstName {
		t.Fatalf("expected MISSING_NAME on firstName, got %v", err)
	}
	if err := ValidateName("R2D2", FieldLastName); err == nil || err.Code != autherr.CodeInvalidName {
		t.Fatalf("expected INVALID_NAME, got %v", err)
	}
	if err := ValidateName(strings.Repeat("a", 51), FieldLastName); err == nil || err.Code != autherr.CodeInvalidName {
		t.Fatalf("expected INVALID_NAME for long name, got %v", err)
	}
}

func TestValidateSignupCredentialsAggregates(t *testing.T) {
	errs := ValidateSignupCredentials(identity.SignupCredentials{
		Email:           "bad",
		FirstName:       "",
		LastName:        "Smith",
		Password:        "Tr1p!Planner",
		ConfirmPassword: "Tr1p!Planner2",
		AcceptTerms:     false,
	})

	got := map[autherr.Code]string{}
	for _, e := range errs {
		got[e.Code] = e.Field
	}
	want := map[autherr.Code]string{
		autherr.CodeInvalidEmail:     FieldEmail,
		autherr.CodeMissingName:      FieldFirstName,
		autherr.CodePasswordMismatch: FieldConfirmPassword,
		autherr.CodeTermsNotAccepted: FieldAcceptTerms,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d errors %v, want %v", len(errs), got, want)
	}
	for code, field := range want {
		if got[code] != field {
			t.Fatalf("expected %s on %q, got %v", code, field, got)
		}
	}
}

func TestValidateSignupCredentialsValid(t *testing.T) {
	errs := ValidateSignupCredentials(identity.SignupCredentials{
		Email:           "ana@example.com",
		FirstName:       "Ana",
		LastName:        "Lima",
		Password:        "Tr1p!Planner",
		ConfirmPassword: "Tr1p!Planner",
		AcceptTerms:     true,
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateLoginCredentials(t *testing.T) {
	if errs := ValidateLoginCredentials(identity.LoginCredentials{Email: "ana@example.com", Password: "Tr1p!Planner"}); len(errs) != 0 {
		t.Fatalf("expected valid login, got %v", errs)
	}

	errs := ValidateLoginCredentials(identity.LoginCredentials{Email: "ana@example.com", Password: "weak"})
	if len(errs) != 1 || errs[0].Code != autherr.CodeWeakPassword {
		t.Fatalf("expected policy to apply on login, got %v", errs)
	}

	lenient := New(WithLoginPolicy(false))
	if errs := lenient.ValidateLoginCredentials(identity.LoginCredentials{Email: "ana@example.com", Password: "weak"}); len(errs) != 0 {
		t.Fatalf("lenient login should only require presence, got %v", errs)
	}
	if errs := lenient.ValidateLoginCredentials(identity.LoginCredentials{Email: "ana@example.com"}); len(errs) != 1 || errs[0].Code != autherr.CodeMissingPassword {
		t.Fatalf("expected MISSING_PASSWORD, got %v", errs)
	}
}
