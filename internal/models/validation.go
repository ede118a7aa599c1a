package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gianverdum/member-registry/pkg/errors"
)

// Validation messages returned to API callers
const (
	MsgFieldRequired  = "Field required"
	MsgNameEmpty      = "Name field must not be empty"
	MsgNameNotFull    = "Name must contain at least a first name and a last name"
	MsgPhoneInvalid   = "Phone number must have exactly 11 digits and contain only numbers"
	MsgClubEmpty      = "Club field must not be empty"
	PhoneDigitsLength = 11
)

// Column widths of the members table, counted in characters
const (
	MaxNameLength = 100
	MaxClubLength = 100
)

var (
	MsgNameTooLong = fmt.Sprintf("Name must have at most %d characters", MaxNameLength)
	MsgClubTooLong = fmt.Sprintf("Club must have at most %d characters", MaxClubLength)
)

// ValidationOptions toggles the optional rules
type ValidationOptions struct {
	// RequireFullName rejects names with fewer than two whitespace-separated tokens
	RequireFullName bool
}

// DefaultValidationOptions returns the strict rule set
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{RequireFullName: true}
}

// ValidMember is a candidate that passed every rule, with trimmed values
type ValidMember struct {
	Name  string
	Phone string
	Club  string
}

// ValidationError lists every rejected field
type ValidationError struct {
	Fields []errors.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, errors.FieldError{Field: field, Message: message})
}

// ValidateMember checks every rule independently and reports all violations together
func ValidateMember(input MemberRequest, opts ValidationOptions) (ValidMember, *ValidationError) {
	verr := &ValidationError{}
	var out ValidMember

	switch {
	case input.Name == nil:
		verr.add("name", MsgFieldRequired)
	case trim(*input.Name) == "":
		verr.add("name", MsgNameEmpty)
	default:
		out.Name = trim(*input.Name)
		switch {
		case utf8.RuneCountInString(out.Name) > MaxNameLength:
			verr.add("name", MsgNameTooLong)
		case opts.RequireFullName && len(strings.Fields(out.Name)) < 2:
			verr.add("name", MsgNameNotFull)
		}
	}

	switch {
	case input.Phone == nil:
		verr.add("phone", MsgFieldRequired)
	case !IsValidPhone(trim(*input.Phone)):
		verr.add("phone", MsgPhoneInvalid)
	default:
		out.Phone = trim(*input.Phone)
	}

	switch {
	case input.Club == nil:
		verr.add("club", MsgFieldRequired)
	case trim(*input.Club) == "":
		verr.add("club", MsgClubEmpty)
	case utf8.RuneCountInString(trim(*input.Club)) > MaxClubLength:
		verr.add("club", MsgClubTooLong)
	default:
		out.Club = trim(*input.Club)
	}

	if len(verr.Fields) > 0 {
		return ValidMember{}, verr
	}
	return out, nil
}

// IsValidPhone reports whether phone is exactly 11 ASCII digits
func IsValidPhone(phone string) bool {
	if len(phone) != PhoneDigitsLength {
		return false
	}
	for i := 0; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
