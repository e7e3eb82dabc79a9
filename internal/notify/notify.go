// Package notify delivers alert events to operators. Delivery is
// best-effort: a failed send is logged and never rolls back an alert state
// transition or blocks batch consumption.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// DeliveryError reports a failed notification attempt.
type DeliveryError struct {
	Recipient string
	Subject   string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notifying %s (%q): %v", e.Recipient, e.Subject, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// SMTPNotifier sends plain-text mail through a relay. No mail framework is
// involved; the message format is the minimal RFC 5322 header block the
// relay needs.
type SMTPNotifier struct {
	Addr string // host:port of the relay
	From string
	To   string
}

func NewSMTPNotifier(addr, from, to string) *SMTPNotifier {
	return &SMTPNotifier{Addr: addr, From: from, To: to}
}

func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.From,
		"To: " + n.To,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(n.Addr, nil, n.From, []string{n.To}, []byte(msg)); err != nil {
		return &DeliveryError{Recipient: n.To, Subject: subject, Err: err}
	}
	return nil
}
