package validation

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// RuleViolation is a single password policy failure.
type RuleViolation struct {
	Rule    string
	Message string
}

func (v *RuleViolation) Error() string {
	if v == nil {
		return ""
	}
	return v.Message
}

// PasswordRule validates one aspect of a password.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate calls f.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// MinLengthRule requires at least min runes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &RuleViolation{
				Rule:    "min_length",
				Message: fmt.Sprintf("Password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// MaxLengthRule caps the password at max runes.
func MaxLengthRule(max int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if max > 0 && len([]rune(password)) > max {
			return &RuleViolation{
				Rule:    "max_length",
				Message: fmt.Sprintf("Password must be at most %d characters long", max),
			}
		}
		return nil
	})
}

// CharacterClasses selects which classes a password must contain.
type CharacterClasses struct {
	Upper  bool
	Lower  bool
	Digit  bool
	Symbol bool
}

// RequireCharacterClassesRule demands one rune from each selected class.
func RequireCharacterClassesRule(required CharacterClasses) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		var hasUpper, hasLower, hasDigit, hasSymbol bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			case unicode.IsSymbol(r) || unicode.IsPunct(r):
				hasSymbol = true
			}
		}

		var missing []string
		if required.Upper && !hasUpper {
			missing = append(missing, "an uppercase letter")
		}
		if required.Lower && !hasLower {
			missing = append(missing, "a lowercase letter")
		}
		if required.Digit && !hasDigit {
			missing = append(missing, "a number")
		}
		if required.Symbol && !hasSymbol {
			missing = append(missing, "a special character")
		}
		if len(missing) == 0 {
			return nil
		}
		return &RuleViolation{
			Rule:    "character_classes",
			Message: "Password must contain " + joinList(missing),
		}
	})
}

// CommonPasswordRule rejects any password on list, compared case-insensitively.
func CommonPasswordRule(list []string) PasswordRule {
	set := make(map[string]struct{}, len(list))
	for _, p := range list {
		set[strings.ToLower(p)] = struct{}{}
	}
	return PasswordRuleFunc(func(password string) error {
		if _, ok := set[strings.ToLower(password)]; ok {
			return &RuleViolation{
				Rule:    "common_password",
				Message: "This password is too common, please choose another",
			}
		}
		return nil
	})
}

// StrengthRule enforces a minimum zxcvbn score (0-4). A score of 0 disables it.
func StrengthRule(minScore int, userInputs ...string) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}
		return &RuleViolation{
			Rule:    "strength",
			Message: "Password is too easy to guess",
		}
	})
}

// DefaultCommonPasswords is the fixed deny list applied by the default policy.
var DefaultCommonPasswords = []string{
	"password", "password1", "password123", "password1!", "passw0rd", "p@ssw0rd", "p@ssword1",
	"123456", "12345678", "123456789", "1234567890", "qwerty", "qwerty123", "qwertyuiop",
	"abc123", "abc12345", "111111", "000000", "iloveyou", "admin", "admin123", "welcome",
	"welcome1", "welcome123", "letmein", "monkey", "dragon", "football", "baseball",
	"sunshine", "princess", "trustno1", "changeme", "secret", "login123", "master",
	"Password1!", "Qwerty123!", "Welcome1!", "Admin123!",
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
