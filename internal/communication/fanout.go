package communication

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
	"MemberPortal/internal/notification"
	"MemberPortal/internal/realtime"
)

// maxNotificationMessage bounds the notification-center snippet derived from
// the communication body.
const maxNotificationMessage = 200

// EmailSender is the best-effort email side channel.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Fanout is the only component that writes both ledgers. It turns a
// communication into a consistent pair of ledger snapshots: audience is
// re-resolved on every run, and each ledger is replaced wholesale
// (delete-then-insert), so repeated runs are idempotent. The recipient ledger
// is always replaced strictly before the notification ledger.
type Fanout struct {
	comms         CommunicationStore
	recipients    RecipientLedger
	notifications NotificationLedger
	resolver      *AudienceResolver
	notifier      realtime.Notifier
	email         EmailSender
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewFanout(comms CommunicationStore, recipients RecipientLedger, notifications NotificationLedger, resolver *AudienceResolver, notifier realtime.Notifier, email EmailSender, logger *zerolog.Logger) *Fanout {
	return &Fanout{
		comms:         comms,
		recipients:    recipients,
		notifications: notifications,
		resolver:      resolver,
		notifier:      notifier,
		email:         email,
		logger:        logger,
		now:           time.Now,
	}
}

// Send fans out a draft and transitions it to SENT. The transition is an
// optimistic filtered update, so a concurrent send of the same draft leaves
// exactly one winner.
func (f *Fanout) Send(ctx context.Context, actor Actor, id primitive.ObjectID) (*Communication, error) {
	comm, err := f.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}
	if comm.Status != StatusDraft {
		return nil, apperrors.InvalidState("communication has already been %s", strings.ToLower(string(comm.Status)))
	}
	return f.dispatch(ctx, comm, StatusDraft)
}

// Dispatch sends a SCHEDULED communication whose time has come. It is the
// trigger the dispatch sweep uses; everything after the status precondition
// is identical to Send.
func (f *Fanout) Dispatch(ctx context.Context, id primitive.ObjectID) (*Communication, error) {
	comm, err := f.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comm.Status != StatusScheduled {
		return nil, apperrors.InvalidState("communication is not scheduled")
	}
	return f.dispatch(ctx, comm, StatusScheduled)
}

func (f *Fanout) dispatch(ctx context.Context, comm *Communication, from Status) (*Communication, error) {
	users, err := f.replaceLedgers(ctx, comm)
	if err != nil {
		return nil, err
	}

	sentAt := f.now()
	err = f.comms.TransitionStatus(ctx, comm.ID, []Status{from}, bson.M{
		"status":  StatusSent,
		"sent_at": sentAt,
	})
	if err != nil {
		return nil, err
	}
	comm.Status = StatusSent
	comm.SentAt = &sentAt

	f.sideChannels(ctx, comm, users)

	f.logger.Info().
		Str("communication_id", comm.ID.Hex()).
		Int("recipients", len(users)).
		Msg("communication sent")
	return comm, nil
}

// Schedule pre-computes both ledgers from the current audience resolution and
// parks the communication in SCHEDULED. The dispatch sweep (or a manual
// dispatch) flips it to SENT later.
func (f *Fanout) Schedule(ctx context.Context, actor Actor, id primitive.ObjectID, scheduledFor time.Time) (*Communication, error) {
	if !scheduledFor.After(f.now()) {
		return nil, apperrors.Validation("scheduledDate must be in the future")
	}

	comm, err := f.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}
	if comm.Status != StatusDraft {
		return nil, apperrors.InvalidState("only draft communications can be scheduled")
	}

	if _, err := f.replaceLedgers(ctx, comm); err != nil {
		return nil, err
	}

	err = f.comms.TransitionStatus(ctx, comm.ID, []Status{StatusDraft}, bson.M{
		"status":        StatusScheduled,
		"scheduled_for": scheduledFor,
	})
	if err != nil {
		return nil, err
	}
	comm.Status = StatusScheduled
	comm.ScheduledFor = &scheduledFor

	f.logger.Info().
		Str("communication_id", comm.ID.Hex()).
		Time("scheduled_for", scheduledFor).
		Msg("communication scheduled")
	return comm, nil
}

// DispatchDue sends every scheduled communication whose time has passed and
// returns how many were dispatched. Transient failures are logged and retried
// on the next sweep. A ValidationError means the audience no longer resolves
// (a SPECIFIC recipient was deactivated); retrying cannot fix that, so the
// communication is flagged with the error and dropped from future sweeps
// until an operator repairs it.
func (f *Fanout) DispatchDue(ctx context.Context) int {
	due, err := f.comms.ListDueScheduled(ctx, f.now())
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to list due communications")
		return 0
	}

	dispatched := 0
	for _, comm := range due {
		if _, err := f.Dispatch(ctx, comm.ID); err != nil {
			var verr *apperrors.ValidationError
			if errors.As(err, &verr) {
				f.flagUndispatchable(ctx, comm.ID, err)
			} else {
				f.logger.Error().Err(err).
					Str("communication_id", comm.ID.Hex()).
					Msg("failed to dispatch scheduled communication")
			}
			continue
		}
		dispatched++
	}
	return dispatched
}

func (f *Fanout) flagUndispatchable(ctx context.Context, id primitive.ObjectID, cause error) {
	set := bson.M{"dispatch_error": cause.Error()}
	if err := f.comms.TransitionStatus(ctx, id, []Status{StatusScheduled}, set); err != nil {
		f.logger.Error().Err(err).
			Str("communication_id", id.Hex()).
			Msg("failed to flag undispatchable communication")
		return
	}
	f.logger.Warn().Err(cause).
		Str("communication_id", id.Hex()).
		Msg("scheduled communication cannot be dispatched, flagged for repair")
}

// RebuildNotifications re-derives and replaces only the notification ledger
// for an already-sent communication. Repair path for the window where the
// recipient replacement succeeded but the notification replacement failed.
func (f *Fanout) RebuildNotifications(ctx context.Context, id primitive.ObjectID) (int, error) {
	comm, err := f.comms.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if comm.Status == StatusDraft {
		return 0, apperrors.InvalidState("communication has not been sent")
	}

	users, err := f.resolver.Resolve(ctx, comm.Audience, comm.RecipientIDs)
	if err != nil {
		return 0, err
	}
	entries := f.deriveNotifications(comm, users)
	if err := f.notifications.ReplaceForCommunication(ctx, comm.ID, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// replaceLedgers performs the ordered, idempotent core of fan-out:
// resolve the audience, replace the recipient ledger, then replace the
// notification ledger. A failure after the first replacement leaves the two
// ledgers inconsistent until the next run; re-running is always safe.
func (f *Fanout) replaceLedgers(ctx context.Context, comm *Communication) ([]auth.User, error) {
	users, err := f.resolver.Resolve(ctx, comm.Audience, comm.RecipientIDs)
	if err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, Recipient{
			ID:              primitive.NewObjectID(),
			CommunicationID: comm.ID,
			UserID:          u.ID,
		})
	}
	if err := f.recipients.ReplaceForCommunication(ctx, comm.ID, recipients); err != nil {
		return nil, err
	}

	entries := f.deriveNotifications(comm, users)
	if err := f.notifications.ReplaceForCommunication(ctx, comm.ID, entries); err != nil {
		return nil, err
	}
	return users, nil
}

// deriveNotifications maps the communication snapshot onto one notification
// entry per resolved user. Priority and sender identity are frozen here;
// later edits to the communication do not rewrite entries.
func (f *Fanout) deriveNotifications(comm *Communication, users []auth.User) []notification.Notification {
	now := f.now()
	commID := comm.ID
	entries := make([]notification.Notification, 0, len(users))
	for _, u := range users {
		entries = append(entries, notification.Notification{
			ID:              primitive.NewObjectID(),
			UserID:          u.ID,
			CommunicationID: &commID,
			Kind:            kindFor(comm.MessageType),
			Title:           comm.Subject,
			Message:         truncateMessage(comm.Body, maxNotificationMessage),
			Priority:        string(comm.Priority),
			Data: bson.M{
				"sender_name":  comm.SenderName,
				"message_type": string(comm.MessageType),
				"sent_date":    now,
			},
			ExpiresAt: now.Add(notification.DefaultTTL),
			CreatedAt: now,
		})
	}
	return entries
}

// sideChannels emits the advisory deliveries: a realtime push per user and,
// for high/urgent priority, an email. Failures are logged and swallowed; they
// never fail the fan-out.
func (f *Fanout) sideChannels(ctx context.Context, comm *Communication, users []auth.User) {
	urgent := comm.Priority == PriorityHigh || comm.Priority == PriorityUrgent
	for _, u := range users {
		payload := map[string]any{
			"communicationId": comm.ID.Hex(),
			"title":           comm.Subject,
			"priority":        string(comm.Priority),
		}
		if err := f.notifier.Notify(ctx, u.ID.Hex(), "notification.new", payload); err != nil {
			f.logger.Warn().Err(err).
				Str("user_id", u.ID.Hex()).
				Msg("realtime push failed")
		}
		if urgent {
			if err := f.email.SendEmail(ctx, u.Email, comm.Subject, comm.Body); err != nil {
				f.logger.Warn().Err(err).
					Str("user_id", u.ID.Hex()).
					Msg("notification email failed")
			}
		}
	}
}

func kindFor(t MessageType) notification.Kind {
	if t == TypeAnnouncement {
		return notification.KindAnnouncement
	}
	return notification.KindCommunication
}

// truncateMessage cuts the body to max runes, appending an ellipsis marker
// when anything was dropped.
func truncateMessage(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
