package validation

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	// Phone number validation - optional +, 10-15 digits
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

	// XSS-like fragments in user-supplied strings
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)data:text/html`),
	}

	// SQL keywords followed by a space; a naive but effective screen for
	// values that will only ever be bound as parameters anyway
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|union|exec|execute|alter|create|truncate)\s`),
		regexp.MustCompile(`(?i)('\s*(or|and)\s)`),
		regexp.MustCompile(`;\s*--`),
	}

	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// commonPasswords is a small embedded set of passwords rejected outright.
var commonPasswords = map[string]struct{}{
	"password1234": {}, "qwertyuiop12": {}, "letmein12345": {},
	"welcome12345": {}, "admin1234567": {}, "changeme1234": {},
}

// ValidEmail reports whether s is a well-formed email address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 254 {
		return false
	}
	return validate.Var(s, "email") == nil
}

// ValidPhone reports whether s looks like an E.164-style phone number.
func ValidPhone(s string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+':
			return r
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	return phoneRegex.MatchString(cleaned)
}

// PasswordStrength checks a candidate password against the password policy.
// The returned problems are safe to surface to the end user.
func PasswordStrength(s string) (bool, []string) {
	var problems []string

	if len(s) < 12 {
		problems = append(problems, "password must be at least 12 characters")
	}
	if len(s) > 128 {
		problems = append(problems, "password must be at most 128 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		problems = append(problems, "password must contain an uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "password must contain a lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "password must contain a digit")
	}
	if !hasSymbol {
		problems = append(problems, "password must contain a symbol")
	}
	if _, known := commonPasswords[strings.ToLower(s)]; known {
		problems = append(problems, "password is too common")
	}

	return len(problems) == 0, problems
}

// SanitizeText strips control characters, trims whitespace and HTML-escapes
// the result. Intended for free-text fields persisted verbatim.
func SanitizeText(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	return html.EscapeString(strings.TrimSpace(s))
}

// ContainsXSS reports whether s carries script-injection fragments.
func ContainsXSS(s string) bool {
	for _, p := range xssPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// ContainsSQLInjection reports whether s carries SQL-injection fragments.
func ContainsSQLInjection(s string) bool {
	for _, p := range sqlPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// FieldError describes a validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
