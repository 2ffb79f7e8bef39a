package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
)

// Field names used to tag validation errors.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldAcceptTerms     = "acceptTerms"
)

const (
	maxEmailLength = 254
	maxNameLength  = 50
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)

// PasswordPolicy is the password composition policy.
type PasswordPolicy struct {
	MinLength       int
	MaxLength       int
	Required        CharacterClasses
	CommonPasswords []string
	// MinStrengthScore is a zxcvbn score in 1..4; 0 disables the check.
	MinStrengthScore int
}

// DefaultPasswordPolicy requires 8-128 characters with upper, lower, digit
// and symbol, and rejects DefaultCommonPasswords.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:       8,
		MaxLength:       128,
		Required:        CharacterClasses{Upper: true, Lower: true, Digit: true, Symbol: true},
		CommonPasswords: DefaultCommonPasswords,
	}
}

// Rules expands the policy into an ordered rule list.
func (p PasswordPolicy) Rules(userInputs ...string) []PasswordRule {
	rules := []PasswordRule{
		MinLengthRule(p.MinLength),
		MaxLengthRule(p.MaxLength),
		CommonPasswordRule(p.CommonPasswords),
		RequireCharacterClassesRule(p.Required),
	}
	if p.MinStrengthScore > 0 {
		rules = append(rules, StrengthRule(p.MinStrengthScore, userInputs...))
	}
	return rules
}

// Validator checks credential payloads. It is stateless and safe for
// concurrent use.
type Validator struct {
	policy PasswordPolicy
	// enforceOnLogin applies the full composition policy to login passwords
	// so policy-failing credentials never reach the identity service.
	enforceOnLogin bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithPasswordPolicy replaces the default policy.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithLoginPolicy toggles composition checks on login passwords.
func WithLoginPolicy(enforce bool) Option {
	return func(v *Validator) { v.enforceOnLogin = enforce }
}

// New returns a Validator with the default policy, adjusted by opts.
func New(opts ...Option) *Validator {
	v := &Validator{policy: DefaultPasswordPolicy(), enforceOnLogin: true}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the active password policy.
func (v *Validator) Policy() PasswordPolicy {
	return v.policy
}

// ValidateEmail checks presence, length and shape of an address.
func (v *Validator) ValidateEmail(s string) *autherr.Error {
	s = strings.TrimSpace(s)
	if s == "" {
		return autherr.NewField(autherr.CodeMissingEmail, FieldEmail, "")
	}
	if len(s) > maxEmailLength || strings.Contains(s, "..") || !emailPattern.MatchString(s) {
		return autherr.NewField(autherr.CodeInvalidEmail, FieldEmail, "")
	}
	return nil
}

// ValidatePassword checks s against the composition policy.
func (v *Validator) ValidatePassword(s string, userInputs ...string) *autherr.Error {
	if s == "" {
		return autherr.NewField(autherr.CodeMissingPassword, FieldPassword, "")
	}
	for _, rule := range v.policy.Rules(userInputs...) {
		if err := rule.Validate(s); err != nil {
			var violation *RuleViolation
			if errors.As(err, &violation) {
				return autherr.NewField(autherr.CodeWeakPassword, FieldPassword, violation.Message)
			}
			return autherr.NewField(autherr.CodeWeakPassword, FieldPassword, "")
		}
	}
	return nil
}

// ValidateName checks a personal name for field.
func (v *Validator) ValidateName(s, field string) *autherr.Error {
	s = strings.TrimSpace(s)
	label := fieldLabel(field)
	if s == "" {
		return autherr.NewField(autherr.CodeMissingName, field, label+" is required")
	}
	if len([]rune(s)) > maxNameLength {
		return autherr.NewField(autherr.CodeInvalidName, field, fmt.Sprintf("%s must be at most %d characters", label, maxNameLength))
	}
	for _, r := range s {
		if unicode.IsLetter(r) || r == ' ' || r == '-' || r == '\'' {
			continue
		}
		return autherr.NewField(autherr.CodeInvalidName, field, label+" may only contain letters, spaces, hyphens and apostrophes")
	}
	return nil
}

// ValidateLoginCredentials aggregates field checks for a login form.
func (v *Validator) ValidateLoginCredentials(c identity.LoginCredentials) []*autherr.Error {
	var errs []*autherr.Error
	if err := v.ValidateEmail(c.Email); err != nil {
		errs = append(errs, err)
	}
	if v.enforceOnLogin {
		if err := v.ValidatePassword(c.Password); err != nil {
			errs = append(errs, err)
		}
	} else if c.Password == "" {
		errs = append(errs, autherr.NewField(autherr.CodeMissingPassword, FieldPassword, ""))
	}
	return errs
}

// ValidateSignupCredentials aggregates field checks for a signup form.
func (v *Validator) ValidateSignupCredentials(c identity.SignupCredentials) []*autherr.Error {
	var errs []*autherr.Error
	if err := v.ValidateEmail(c.Email); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateName(c.FirstName, FieldFirstName); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateName(c.LastName, FieldLastName); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidatePassword(c.Password, c.Email, c.FirstName, c.LastName); err != nil {
		errs = append(errs, err)
	}
	if c.ConfirmPassword == "" {
		errs = append(errs, autherr.NewField(autherr.CodePasswordMismatch, FieldConfirmPassword, "Please confirm your password"))
	} else if c.Password != c.ConfirmPassword {
		errs = append(errs, autherr.NewField(autherr.CodePasswordMismatch, FieldConfirmPassword, ""))
	}
	if !c.AcceptTerms {
		errs = append(errs, autherr.NewField(autherr.CodeTermsNotAccepted, FieldAcceptTerms, ""))
	}
	return errs
}

func fieldLabel(field string) string {
	switch field {
	case FieldFirstName:
		return "First name"
	case FieldLastName:
		return "Last name"
	case "":
		return "Name"
	default:
		return field
	}
}

var defaultValidator = New()

// ValidateEmail runs the default validator.
func ValidateEmail(s string) *autherr.Error { return defaultValidator.ValidateEmail(s) }

// ValidatePassword runs the default validator.
func ValidatePassword(s string) *autherr.Error { return defaultValidator.ValidatePassword(s) }

// ValidateName runs the default validator.
func ValidateName(s, field string) *autherr.Error { return defaultValidator.ValidateName(s, field) }

// ValidateLoginCredentials runs the default validator.
func ValidateLoginCredentials(c identity.LoginCredentials) []*autherr.Error {
	return defaultValidator.ValidateLoginCredentials(c)
}

// ValidateSignupCredentials runs the default validator.
func ValidateSignupCredentials(c identity.SignupCredentials) []*autherr.Error {
	return defaultValidator.ValidateSignupCredentials(c)
}
