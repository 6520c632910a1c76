package notices

import "context"

// Store defines the persistence interface for notifications.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateNotification inserts a notification and assigns the next id.
	CreateNotification(ctx context.Context, n *Notification) error

	// GetNotification returns the notification with the given id, or
	// moderr.ErrNotFound.
	GetNotification(ctx context.Context, id int64) (*Notification, error)

	// MarkExpired sets the expired flag. The row is kept.
	MarkExpired(ctx context.Context, id int64) error

	// MarkNotified sets the notified flag.
	MarkNotified(ctx context.Context, id int64) error

	// ListActive returns all notifications not yet expired.
	ListActive(ctx context.Context) ([]Notification, error)
}
