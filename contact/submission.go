// Package contact holds the contact-form submission and the checks that
// decide whether it may be relayed.
package contact

import (
	"golang.org/x/text/unicode/norm"
)

// Submission is one contact-form post. It only lives for the duration of
// the request that carried it. Fields are checked exactly as received.
type Submission struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	Identifier string `json:"identifier"`
}

// NFC returns a copy with the free-text fields (name and message) in
// Unicode NFC, for rendering into the notification. Whitespace is kept.
func (s Submission) NFC() Submission {
	s.Name = norm.NFC.String(s.Name)
	s.Message = norm.NFC.String(s.Message)
	return s
}

// HasPhone reports whether a phone number was supplied.
func (s Submission) HasPhone() bool {
	return s.Phone != ""
}
