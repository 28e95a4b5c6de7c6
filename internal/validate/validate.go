// Package validate holds the form rules applied before any store or network call.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted signup password.
const MinPasswordLength = 6

// Form field names used as FieldErrors keys.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldWebhookURL      = "webhook_url"
	FieldVariables       = "variables"
	FieldTitle           = "title"
	FieldContent         = "content"
)

// ErrInvalid is matched by every FieldErrors value via errors.Is.
var ErrInvalid = errors.New("validation failed")

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// FieldErrors maps a form field to its inline error message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Is(target error) bool { return target == ErrInvalid }

// Err returns nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Email checks a signup email. It returns "" when valid.
func Email(email string) string {
	switch {
	case email == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Email is invalid"
	}
	return ""
}

// Password checks the signup password length rule. It returns "" when valid.
func Password(password string) string {
	switch {
	case password == "":
		return "Password is required"
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	return ""
}

// ConfirmPassword checks the confirmation independently of the length rule.
func ConfirmPassword(password, confirm string) string {
	switch {
	case confirm == "":
		return "Please confirm your password"
	case password != confirm:
		return "Passwords do not match"
	}
	return ""
}

// Signup validates the three signup fields together.
func Signup(email, password, confirm string) FieldErrors {
	fe := FieldErrors{}
	if msg := Email(email); msg != "" {
		fe[FieldEmail] = msg
	}
	if msg := Password(password); msg != "" {
		fe[FieldPassword] = msg
	}
	if msg := ConfirmPassword(password, confirm); msg != "" {
		fe[FieldConfirmPassword] = msg
	}
	return fe
}

// WebhookURL requires an absolute http or https URL with a host.
func WebhookURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Webhook URL is required"
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Webhook URL must be a valid http(s) URL"
	}
	return ""
}

// VariableKey rejects blank variable names.
func VariableKey(key string) string {
	if strings.TrimSpace(key) == "" {
		return "Variable name is required"
	}
	return ""
}

// Title rejects blank session titles.
func Title(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Title cannot be empty"
	}
	return ""
}

// VariableRow is one editable key/value row of the webhook settings form.
type VariableRow struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// VariableRows folds form rows into a variable map. Keys are trimmed, rows
// that are entirely blank are skipped, and a later duplicate key wins.
func VariableRows(rows []VariableRow) (map[string]string, string) {
	vars := make(map[string]string, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			if row.Value == "" {
				continue
			}
			return nil, VariableKey(key)
		}
		vars[key] = row.Value
	}
	return vars, ""
}
