package notifications

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification does not exist
	// or does not belong to the requesting recipient. Ownership violations
	// are indistinguishable from missing rows on purpose.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrRecipientRequired is returned when creating a notification without a recipient.
	ErrRecipientRequired = errors.New("notification recipient is required")

	// ErrInvalidType is returned when creating a notification with a missing or unknown type.
	ErrInvalidType = errors.New("invalid notification type")
)
