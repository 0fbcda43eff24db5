package communication

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
	"MemberPortal/internal/notification"
)

// CommunicationStore owns the authored records.
type CommunicationStore interface {
	Insert(ctx context.Context, c *Communication) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Communication, error)
	UpdateDraft(ctx context.Context, c *Communication) error
	TransitionStatus(ctx context.Context, id primitive.ObjectID, allowed []Status, set bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListBySender(ctx context.Context, senderID primitive.ObjectID) ([]Communication, error)
	ListAll(ctx context.Context) ([]Communication, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]Communication, error)
}

// RecipientLedger holds the per-(communication, user) read-tracking rows.
// Only fan-out writes it in bulk; users mutate single rows via MarkRead.
type RecipientLedger interface {
	ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []Recipient) error
	DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error
	ListByCommunication(ctx context.Context, commID primitive.ObjectID) ([]Recipient, error)
	MarkRead(ctx context.Context, commID, userID primitive.ObjectID) error
	CountByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error)
	CountReadByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error)
}

// NotificationLedger is the notification-center side of fan-out, written
// strictly after the recipient ledger.
type NotificationLedger interface {
	ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []notification.Notification) error
	DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error
}

// Actor is the authenticated identity an operation runs as.
type Actor struct {
	ID   primitive.ObjectID
	Name string
	Role auth.Role
}

func (a Actor) canManage(c *Communication) bool {
	return a.Role.Elevated() || c.SenderID == a.ID
}

// Service implements the communication record store operations: create and
// mutate drafts, cascade deletion, listings. Fan-out lives in Fanout.
type Service struct {
	comms         CommunicationStore
	recipients    RecipientLedger
	notifications NotificationLedger
	resolver      *AudienceResolver
	users         UserDirectory
}

func NewService(comms CommunicationStore, recipients RecipientLedger, notifications NotificationLedger, resolver *AudienceResolver, users UserDirectory) *Service {
	return &Service{
		comms:         comms,
		recipients:    recipients,
		notifications: notifications,
		resolver:      resolver,
		users:         users,
	}
}

// Create stores a new DRAFT. Announcements and newsletters require an
// elevated role; a SPECIFIC audience is resolved immediately so bad ids fail
// at authoring time (and again at send time, since accounts change).
func (s *Service) Create(ctx context.Context, actor Actor, req CreateCommunicationRequest) (*Communication, error) {
	msgType := MessageType(req.MessageType)
	if (msgType == TypeAnnouncement || msgType == TypeNewsletter) && !actor.Role.Elevated() {
		return nil, apperrors.Unauthorized("only admins can create announcements or newsletters")
	}

	priority := Priority(req.Priority)
	if req.Priority == "" {
		priority = PriorityNormal
	}

	recipientIDs, err := parseObjectIDs(req.RecipientIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	comm := &Communication{
		ID:            primitive.NewObjectID(),
		Subject:       req.Subject,
		Body:          req.Content,
		SenderID:      actor.ID,
		SenderName:    actor.Name,
		MessageType:   msgType,
		Audience:      Audience(req.RecipientType),
		RecipientIDs:  recipientIDs,
		Status:        StatusDraft,
		Priority:      priority,
		AttachmentURL: req.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := comm.Validate(); err != nil {
		return nil, err
	}
	if comm.Audience == AudienceSpecific {
		if _, err := s.resolver.Resolve(ctx, comm.Audience, comm.RecipientIDs); err != nil {
			return nil, err
		}
	}

	if err := s.comms.Insert(ctx, comm); err != nil {
		return nil, err
	}
	return comm, nil
}

// Update mutates a draft. Non-drafts fail with InvalidState.
func (s *Service) Update(ctx context.Context, actor Actor, id primitive.ObjectID, req UpdateCommunicationRequest) (*Communication, error) {
	comm, err := s.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}
	if comm.Status != StatusDraft {
		return nil, apperrors.InvalidState("only draft communications can be updated")
	}

	if req.Subject != nil {
		comm.Subject = *req.Subject
	}
	if req.Content != nil {
		comm.Body = *req.Content
	}
	if req.RecipientType != nil {
		comm.Audience = Audience(*req.RecipientType)
	}
	if req.RecipientIDs != nil {
		ids, err := parseObjectIDs(req.RecipientIDs)
		if err != nil {
			return nil, err
		}
		comm.RecipientIDs = ids
	}
	if req.Priority != nil {
		comm.Priority = Priority(*req.Priority)
	}
	if req.AttachmentURL != nil {
		comm.AttachmentURL = *req.AttachmentURL
	}

	if err := comm.Validate(); err != nil {
		return nil, err
	}
	if comm.Audience == AudienceSpecific {
		if _, err := s.resolver.Resolve(ctx, comm.Audience, comm.RecipientIDs); err != nil {
			return nil, err
		}
	}

	if err := s.comms.UpdateDraft(ctx, comm); err != nil {
		return nil, err
	}
	return comm, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*Communication, error) {
	comm, err := s.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}
	return comm, nil
}

// Delete removes a communication and cascades: recipient ledger first, then
// notification ledger, then the record itself, so no ledger row ever outlives
// its communication.
func (s *Service) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	comm, err := s.comms.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canManage(comm) {
		return apperrors.Unauthorized("not the sender of this communication")
	}

	if err := s.recipients.DeleteForCommunication(ctx, id); err != nil {
		return err
	}
	if err := s.notifications.DeleteForCommunication(ctx, id); err != nil {
		return err
	}
	return s.comms.Delete(ctx, id)
}

func (s *Service) ListOwn(ctx context.Context, actor Actor) ([]Communication, error) {
	return s.comms.ListBySender(ctx, actor.ID)
}

func (s *Service) ListAll(ctx context.Context) ([]Communication, error) {
	return s.comms.ListAll(ctx)
}

// ListRecipients returns the recipient ledger for a communication with user
// details joined in.
func (s *Service) ListRecipients(ctx context.Context, actor Actor, id primitive.ObjectID) ([]RecipientView, error) {
	comm, err := s.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}

	rows, err := s.recipients.ListByCommunication(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]auth.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]RecipientView, 0, len(rows))
	for _, row := range rows {
		view := RecipientView{
			UserID: row.UserID.Hex(),
			Read:   row.Read,
			ReadAt: row.ReadAt,
		}
		if u, ok := byID[row.UserID]; ok {
			view.Name = u.Name
			view.Email = u.Email
		}
		views = append(views, view)
	}
	return views, nil
}

func parseObjectIDs(hexes []string) ([]primitive.ObjectID, error) {
	if len(hexes) == 0 {
		return nil, nil
	}
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, apperrors.Validation("invalid recipient id %q", h)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
