package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
)

// Store is the notification-ledger persistence consumed by the service.
type Store interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*Notification, error)
	ListActiveByUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkDisplayed(ctx context.Context, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RecipientMarker propagates a read mark to the recipient ledger so the two
// derived collections agree on who has read a communication.
type RecipientMarker interface {
	MarkRead(ctx context.Context, commID, userID primitive.ObjectID) error
}

// NotificationService exposes the per-entry lifecycle. Every operation is
// scoped to the owning user: an entry belonging to someone else behaves as if
// it did not exist.
type NotificationService struct {
	store      Store
	recipients RecipientMarker
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewNotificationService(store Store, recipients RecipientMarker, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{store: store, recipients: recipients, logger: logger, now: time.Now}
}

func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID) ([]Notification, error) {
	return s.store.ListActiveByUser(ctx, userID, false)
}

func (s *NotificationService) Unread(ctx context.Context, userID primitive.ObjectID) ([]Notification, error) {
	return s.store.ListActiveByUser(ctx, userID, true)
}

// MarkRead marks the entry read and mirrors the mark onto the recipient
// ledger. Re-invoking on an already-read entry is a no-op success.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id primitive.ObjectID) error {
	entry, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if entry.Read {
		return nil
	}
	if err := s.store.MarkRead(ctx, id); err != nil {
		return err
	}
	if entry.CommunicationID != nil {
		if err := s.recipients.MarkRead(ctx, *entry.CommunicationID, userID); err != nil {
			return err
		}
	}
	return nil
}

// MarkDisplayed records that the client surfaced the entry, distinct from the
// user opening it. Idempotent.
func (s *NotificationService) MarkDisplayed(ctx context.Context, userID, id primitive.ObjectID) error {
	entry, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if entry.Displayed {
		return nil
	}
	return s.store.MarkDisplayed(ctx, id)
}

// MarkAllRead marks every unread, non-expired entry for the user and returns
// the count mutated. Recipient-ledger mirrors follow per entry.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	unread, err := s.store.ListActiveByUser(ctx, userID, true)
	if err != nil {
		return 0, err
	}

	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, entry := range unread {
		if entry.CommunicationID == nil {
			continue
		}
		if err := s.recipients.MarkRead(ctx, *entry.CommunicationID, userID); err != nil {
			s.logger.Warn().Err(err).
				Str("notification_id", entry.ID.Hex()).
				Msg("failed to mirror read mark to recipient ledger")
		}
	}
	return count, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// PurgeExpired removes entries past their expiry and returns the count.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// owned loads an entry and hides it (NotFound) when it belongs to another
// user or has expired.
func (s *NotificationService) owned(ctx context.Context, userID, id primitive.ObjectID) (*Notification, error) {
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, apperrors.NotFound("notification")
	}
	if entry.Expired(s.now()) {
		return nil, apperrors.NotFound("notification")
	}
	return entry, nil
}
