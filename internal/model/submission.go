package model

import "strings"

// Submission is the set of contact form values for one user action.
// It is never persisted.
type Submission struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Message string `json:"message,omitempty"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s Submission) Trimmed() Submission {
	return Submission{
		Name:    strings.TrimSpace(s.Name),
		Phone:   strings.TrimSpace(s.Phone),
		Email:   strings.TrimSpace(s.Email),
		Address: strings.TrimSpace(s.Address),
		Message: strings.TrimSpace(s.Message),
	}
}

// Complete reports whether the fields required by every transport are set.
func (s Submission) Complete() bool {
	return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.Phone) != ""
}
