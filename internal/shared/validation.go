package shared

import (
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password the backend accepts.
const MinPasswordLength = 6

// ValidateLogin checks the login form.
func ValidateLogin(email, password string) error {
	v := NewValidationError()
	checkEmail(v, email)
	if password == "" {
		v.Add("password", "Please enter your password")
	}
	return v.OrNil()
}

// ValidateSignup checks the signup form.
func ValidateSignup(name, email, password string) error {
	v := NewValidationError()
	if strings.TrimSpace(name) == "" {
		v.Add("name", "Please enter your name")
	}
	checkEmail(v, email)
	if len(password) < MinPasswordLength {
		v.Add("password", "Password must be at least 6 characters")
	}
	return v.OrNil()
}

// ValidatePasswordChange checks the change-password form.
func ValidatePasswordChange(current, next, confirm string) error {
	v := NewValidationError()
	if current == "" {
		v.Add("current_password", "Please enter your current password")
	}
	if len(next) < MinPasswordLength {
		v.Add("new_password", "Password must be at least 6 characters")
	}
	if next != confirm {
		v.Add("confirm_password", "Passwords do not match")
	}
	if !v.Has("current_password") && !v.Has("new_password") && current == next {
		v.Add("new_password", "New password must be different from current password")
	}
	return v.OrNil()
}

// ValidateName checks a single required name field (prawn, location).
func ValidateName(field, value string) error {
	v := NewValidationError()
	if strings.TrimSpace(value) == "" {
		v.Add(field, "Please enter a name")
	}
	return v.OrNil()
}

func checkEmail(v *ValidationError, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		v.Add("email", "Please enter your email")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		v.Add("email", "Please enter a valid email address")
	}
}
