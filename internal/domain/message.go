package domain

// MessageKind selects the webhook payload shape.
type MessageKind string

const (
	// MessageText is a plain text message, possibly covering several
	// check-ins when sending is deferred.
	MessageText MessageKind = "text"
	// MessageBadge is a badge announcement: attachment with thumbnail,
	// stripped description and title, top-level text cleared.
	MessageBadge MessageKind = "badge"
	// MessagePhoto is a check-in with its photo attached: attachment with
	// image URL and title, top-level text preserved.
	MessagePhoto MessageKind = "photo"
)

// Message is one notification to deliver. Transient; constructed and
// immediately sent.
type Message struct {
	Kind    MessageKind
	IconURL string
	Text    string

	// Attachment fields, used by badge and photo messages.
	Title    string
	ThumbURL string
	ImageURL string
}
