// Package validate checks contact form values before anything is sent.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/util"
)

const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldEmail   = "email"
	FieldAddress = "address"
	FieldMessage = "message"
)

const (
	minNameLen    = 2
	minPhoneDigit = 10
	minAddressLen = 5
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Rules selects which optional checks apply to a form.
type Rules struct {
	RequireEmail bool // primary contact form: true; generic forms: false
	HasAddress   bool // the form renders an address field
}

// Primary is the rule set of the main contact form.
var Primary = Rules{RequireEmail: true}

// Generic is the rule set of any other form on the site.
var Generic = Rules{}

// FieldError is one failed field with the message shown next to it.
type FieldError struct {
	Field   string
	Message string
}

// Errors lists failures in form order (name, phone, email, address).
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// First returns the first invalid field, or "" when e is empty.
func (e Errors) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Field
}

// Get returns the message for field, or "".
func (e Errors) Get(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Submission validates every field of s under r. A nil result means s may be sent.
func Submission(s model.Submission, r Rules) Errors {
	s = s.Trimmed()
	var errs Errors

	add := func(field, msg string) {
		if msg != "" {
			errs = append(errs, FieldError{Field: field, Message: msg})
		}
	}

	if s.Name == "" {
		add(FieldName, "Name is required")
	} else {
		add(FieldName, checkName(s.Name))
	}

	if s.Phone == "" {
		add(FieldPhone, "Phone number is required")
	} else {
		add(FieldPhone, checkPhone(s.Phone))
	}

	if s.Email == "" {
		if r.RequireEmail {
			add(FieldEmail, "Email is required")
		}
	} else {
		add(FieldEmail, checkEmail(s.Email))
	}

	if r.HasAddress {
		if s.Address == "" {
			add(FieldAddress, "Address is required")
		} else {
			add(FieldAddress, checkAddress(s.Address))
		}
	}

	return errs
}

// Field is the on-blur check of a single value: empty values pass,
// malformed ones return the message to display.
func Field(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	switch field {
	case FieldName:
		return checkName(value)
	case FieldPhone:
		return checkPhone(value)
	case FieldEmail:
		return checkEmail(value)
	case FieldAddress:
		return checkAddress(value)
	default:
		return ""
	}
}

func checkName(v string) string {
	if utf8.RuneCountInString(v) < minNameLen {
		return "Name must be at least 2 characters"
	}
	return ""
}

func checkPhone(v string) string {
	if !util.PhoneCharsAllowed(v) || len(util.PhoneDigits(v)) < minPhoneDigit {
		return "Please enter a valid phone number"
	}
	return ""
}

func checkEmail(v string) string {
	if !emailRe.MatchString(v) {
		return "Please enter a valid email address"
	}
	return ""
}

func checkAddress(v string) string {
	if utf8.RuneCountInString(v) < minAddressLen {
		return "Please enter a complete address"
	}
	return ""
}
