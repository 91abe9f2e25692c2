// Package mailer composes and sends the transactional notification
// emails.  Sending is always best-effort: callers log failures and move
// on, so a dead SMTP relay can never fail a committed bid or purchase
// request.
package mailer

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/tigerpop/marketplace/internal/queue"
)

// Mailer sends notification emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New returns a Mailer for the given SMTP relay.  An empty username
// disables authentication, which matches local development relays.
func New(host string, port int, user, pass, from string) *Mailer {
	d := gomail.NewDialer(host, port, user, pass)
	return &Mailer{dialer: d, from: from}
}

// Send composes the email for a notification event and delivers it.
func (m *Mailer) Send(ev queue.NotificationEvent) error {
	if ev.ToEmail == "" {
		return fmt.Errorf("mailer: event %s has no recipient", ev.Type)
	}
	subject, body := Compose(ev)
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", ev.ToEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}

// Compose maps a notification event onto an email subject and plain
// text body.  Unknown event types get a generic wrapper so nothing is
// silently dropped.
func Compose(ev queue.NotificationEvent) (subject, body string) {
	switch ev.Type {
	case queue.EventNewBid:
		subject = fmt.Sprintf("New bid on %q", ev.ListingTitle)
		body = fmt.Sprintf("A new bid of $%.2f was placed on your listing %q.\n\nLog in to review the bidding.", ev.Amount, ev.ListingTitle)
	case queue.EventOutbid:
		subject = fmt.Sprintf("You have been outbid on %q", ev.ListingTitle)
		body = fmt.Sprintf("Someone bid $%.2f on %q, ahead of your bid.\n\nPlace a higher bid to stay in the running.", ev.Amount, ev.ListingTitle)
	case queue.EventAuctionWon:
		subject = fmt.Sprintf("You won the auction for %q", ev.ListingTitle)
		body = fmt.Sprintf("Congratulations! You won the auction for %q at $%.2f.\n\nThe seller will be in touch to arrange the handoff.", ev.ListingTitle, ev.Amount)
	case queue.EventPurchaseRequest:
		subject = fmt.Sprintf("New purchase request for %q", ev.ListingTitle)
		body = fmt.Sprintf(
			"%s wants to buy your item %q.\n\nMessage from buyer:\n%s\n\nContact information:\n%s\n\nYou can respond directly to arrange the sale.",
			ev.FromNetID, ev.ListingTitle, ev.Message, ev.Contact)
	case queue.EventNewInterest:
		subject = fmt.Sprintf("Someone hearted %q", ev.ListingTitle)
		body = fmt.Sprintf("Your listing %q was just added to a buyer's favorites.", ev.ListingTitle)
	default:
		subject = "Marketplace notification"
		body = fmt.Sprintf("Notification (%s) for listing %q.", ev.Type, ev.ListingTitle)
	}
	return subject, body
}
