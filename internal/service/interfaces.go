package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"slackbrew/internal/domain"
)

// Source fetches check-in activity newer than the given watermark.
type Source interface {
	FetchCheckins(ctx context.Context, minID int64) (*domain.Activity, error)
}

// Notifier delivers one formatted message to the chat endpoint.
type Notifier interface {
	Send(ctx context.Context, msg domain.Message) error
}

// WatermarkStore reads and persists the last-seen check-in id.
type WatermarkStore interface {
	LastSeen() int64
	SetLastSeen(id int64) error
}

// HistoryStore records delivered messages for auditing. Recording never
// gates delivery; failures are logged and ignored.
type HistoryStore interface {
	Record(ctx context.Context, d domain.Delivery) error
}

// EventPublisher mirrors delivered notifications to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, msg domain.Message, d domain.Delivery) error
	Close() error
}
