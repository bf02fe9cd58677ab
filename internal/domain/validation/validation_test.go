package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"guest@example.com", true},
		{"first.last+tag@sub.example.co.uk", true},
		{" spaced@example.com ", true},
		{"", false},
		{"not-an-email", false},
		{"missing@tld@example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.email), "email %q", tt.email)
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+33612345678", true},
		{"+1 (555) 123-4567", true},
		{"06.12.34.56.78", false},
		{"12345", false},
		{"phone", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPhone(tt.phone), "phone %q", tt.phone)
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"strong", "Corr3ct-Horse-Battery", true},
		{"too short", "Ab1!x", false},
		{"no uppercase", "weakpassword1!", false},
		{"no lowercase", "WEAKPASSWORD1!", false},
		{"no digit", "WeakPassword!!", false},
		{"no symbol", "WeakPassword11", false},
		{"common", "Password1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, problems := PasswordStrength(tt.password)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.NotEmpty(t, problems)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  hello \x00\x1f"))
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", SanitizeText("<b>bold</b>"))
}

func TestContainsXSS(t *testing.T) {
	hits := []string{
		"<script>alert(1)</script>",
		"<SCRIPT src=x>",
		"javascript:alert(1)",
		"vbscript:msgbox",
		`<img onerror=alert(1)>`,
		"data:text/html;base64,xxx",
	}
	for _, s := range hits {
		assert.True(t, ContainsXSS(s), "expected XSS hit for %q", s)
	}

	clean := []string{"Lovely seaside villa", "on-site parking", "javascript tutorials"}
	for _, s := range clean {
		assert.False(t, ContainsXSS(s), "false positive for %q", s)
	}
}

func TestContainsSQLInjection(t *testing.T) {
	hits := []string{
		"SELECT * FROM users",
		"1'; DROP TABLE bookings; --",
		"' OR 1=1",
		"union select password",
	}
	for _, s := range hits {
		assert.True(t, ContainsSQLInjection(s), "expected SQL hit for %q", s)
	}

	clean := []string{"a lovely selection of wines", "updated kitchen"}
	for _, s := range clean {
		assert.False(t, ContainsSQLInjection(s), "false positive for %q", s)
	}
}
