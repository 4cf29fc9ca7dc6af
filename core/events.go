package core

import "context"

// EventPublisher publishes domain events (e.g. "quiz.attempt.graded") to a message broker.
// Publishing is best-effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}
