package contact

import (
	"fmt"

	"github.com/dalemusser/contactrelay/config"
)

// Fixed limits; the name and message limits come from the endpoint.
const (
	MaxEmailLength = 254
	MinEmailLength = 3
	MaxPhoneLength = 32
	MinPhoneLength = 4
)

// CheckLength evaluates every length rule and collects all violations.
// Lengths are measured in UTF-8 bytes of the value as received.
func CheckLength(s Submission, ep config.EndpointConfig) Verdict {
	var v Verdict

	if n := len(s.Name); n > ep.MaxNameLength {
		v.Add("name", "max", tooLong("name", n, ep.MaxNameLength))
	}

	if n := len(s.Email); n > MaxEmailLength {
		v.Add("email", "max", tooLong("email", n, MaxEmailLength))
	} else if n < MinEmailLength {
		v.Add("email", "min", tooShort("email", n, MinEmailLength))
	}

	// phone is optional
	if n := len(s.Phone); n > MaxPhoneLength {
		v.Add("phone", "max", tooLong("phone", n, MaxPhoneLength))
	} else if n != 0 && n < MinPhoneLength {
		v.Add("phone", "min", tooShort("phone", n, MinPhoneLength))
	}

	if n := len(s.Message); n > ep.MaxMessageLength {
		v.Add("message", "max", tooLong("message", n, ep.MaxMessageLength))
	}

	return v
}

func tooLong(field string, n, limit int) string {
	return fmt.Sprintf("Field %q was too long: %d characters (%d is maximum)", field, n, limit)
}

func tooShort(field string, n, limit int) string {
	return fmt.Sprintf("Field %q was too short: %d characters (%d is minimum)", field, n, limit)
}
