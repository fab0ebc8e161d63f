// Package mailer turns a contact submission into an email and delivers it
// to the endpoint owner over SMTP.
//
// The plain-text part carries the submitted values verbatim. In the HTML
// part the name, message and email are HTML-escaped, so its bytes differ
// from the bare template whenever a value contains &, <, >, " or '.
package mailer

import (
	"html"
	"strings"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/contact"
)

// Message is a composed notification ready to send.
type Message struct {
	ToName    string
	ToAddress string
	From      string
	ReplyTo   string
	Subject   string
	Text      string
	HTML      string
}

// Compose builds the notification for sub addressed to ep's target.
func Compose(sub contact.Submission, ep config.EndpointConfig) Message {
	sub = sub.NFC()
	phone := ""
	if sub.HasPhone() {
		phone = " or call " + sub.Phone
	}

	email := html.EscapeString(sub.Email)
	body := strings.ReplaceAll(html.EscapeString(sub.Message), "\n", "<br>")

	return Message{
		ToName:    ep.Target.EmailName,
		ToAddress: ep.Target.Email,
		From:      ep.FromEmail,
		ReplyTo:   sub.Email,
		Subject:   "[" + ep.Name + "] Contact from " + sub.Name,
		Text: sub.Name + " wrote:\n\n> " + sub.Message +
			"\n\nReply to <" + sub.Email + "> or " + phone,
		HTML: "<p>" + html.EscapeString(sub.Name) + " wrote:</p><br><i>" + body +
			"</i><br><br><p>Reply to <a href=\"mailto:" + email + "\">" + email + "</a> or " + phone + "</p>",
	}
}
