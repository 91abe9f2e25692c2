// Package queue defines the message payloads exchanged over the
// notification broker and the background consumer that delivers them.
package queue

// Notification event types.  Each one maps to an email template in the
// mailer.
const (
	EventNewBid          = "new_bid"
	EventOutbid          = "outbid"
	EventAuctionWon      = "auction_won"
	EventPurchaseRequest = "purchase_request"
	EventNewInterest     = "new_interest"
)

// NotificationEvent is published whenever a marketplace operation needs
// to email a user.  It carries enough information for the consumer to
// compose the message without querying the primary database.
type NotificationEvent struct {
	Type         string  `json:"type"`
	ToEmail      string  `json:"to_email"`
	ToNetID      string  `json:"to_netid"`
	ListingID    uint64  `json:"listing_id"`
	ListingTitle string  `json:"listing_title"`
	Amount       float64 `json:"amount,omitempty"`
	FromNetID    string  `json:"from_netid,omitempty"`
	Message      string  `json:"message,omitempty"`
	Contact      string  `json:"contact,omitempty"`
	OccurredAt   string  `json:"occurred_at"`
}
