package domain

import "time"

// Delivery is the audit record of one message handed to the webhook.
// CheckinID is the triggering check-in, or 0 for a combined message that
// covers the whole run.
type Delivery struct {
	CheckinID int64       `db:"checkin_id" json:"checkin_id"`
	Kind      MessageKind `db:"kind" json:"kind"`
	UserName  string      `db:"user_name" json:"user_name"`
	BeerName  string      `db:"beer_name" json:"beer_name"`
	SentAt    time.Time   `db:"sent_at" json:"sent_at"`
}
