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

type fakeDirectory struct {
	users []auth.User
}

func (d *fakeDirectory) FindActive(ctx context.Context) ([]auth.User, error) {
	var out []auth.User
	for _, u := range d.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindActiveByRoles(ctx context.Context, roles []auth.Role) ([]auth.User, error) {
	var out []auth.User
	for _, u := range d.users {
		if !u.Active {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]auth.User, error) {
	var out []auth.User
	for _, u := range d.users {
		if !u.Active {
			continue
		}
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]auth.User, error) {
	var out []auth.User
	for _, u := range d.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

type fakeCommStore struct {
	comms map[primitive.ObjectID]*Communication
	ops   *[]string
}

func newFakeCommStore(ops *[]string) *fakeCommStore {
	return &fakeCommStore{comms: make(map[primitive.ObjectID]*Communication), ops: ops}
}

func (s *fakeCommStore) log(op string) {
	if s.ops != nil {
		*s.ops = append(*s.ops, op)
	}
}

func (s *fakeCommStore) Insert(ctx context.Context, c *Communication) error {
	cp := *c
	s.comms[c.ID] = &cp
	return nil
}

func (s *fakeCommStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Communication, error) {
	c, ok := s.comms[id]
	if !ok {
		return nil, apperrors.NotFound("communication")
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCommStore) UpdateDraft(ctx context.Context, c *Communication) error {
	stored, ok := s.comms[c.ID]
	if !ok {
		return apperrors.NotFound("communication")
	}
	if stored.Status != StatusDraft {
		return apperrors.InvalidState("only draft communications can be updated")
	}
	cp := *c
	s.comms[c.ID] = &cp
	return nil
}

func (s *fakeCommStore) TransitionStatus(ctx context.Context, id primitive.ObjectID, allowed []Status, set bson.M) error {
	stored, ok := s.comms[id]
	if !ok {
		return apperrors.InvalidState("communication is not in a dispatchable status")
	}
	permitted := false
	for _, st := range allowed {
		if stored.Status == st {
			permitted = true
			break
		}
	}
	if !permitted {
		return apperrors.InvalidState("communication is not in a dispatchable status")
	}
	if v, ok := set["status"]; ok {
		stored.Status = v.(Status)
	}
	if v, ok := set["sent_at"]; ok {
		t := v.(time.Time)
		stored.SentAt = &t
	}
	if v, ok := set["scheduled_for"]; ok {
		t := v.(time.Time)
		stored.ScheduledFor = &t
	}
	if v, ok := set["dispatch_error"]; ok {
		stored.DispatchError = v.(string)
	}
	return nil
}

func (s *fakeCommStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := s.comms[id]; !ok {
		return apperrors.NotFound("communication")
	}
	delete(s.comms, id)
	s.log("communications.delete")
	return nil
}

func (s *fakeCommStore) ListBySender(ctx context.Context, senderID primitive.ObjectID) ([]Communication, error) {
	var out []Communication
	for _, c := range s.comms {
		if c.SenderID == senderID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCommStore) ListAll(ctx context.Context) ([]Communication, error) {
	var out []Communication
	for _, c := range s.comms {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeCommStore) ListDueScheduled(ctx context.Context, now time.Time) ([]Communication, error) {
	var out []Communication
	for _, c := range s.comms {
		if c.Status == StatusScheduled && c.DispatchError == "" && c.ScheduledFor != nil && !c.ScheduledFor.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeRecipientLedger struct {
	rows map[primitive.ObjectID][]Recipient
	ops  *[]string
}

func newFakeRecipientLedger(ops *[]string) *fakeRecipientLedger {
	return &fakeRecipientLedger{rows: make(map[primitive.ObjectID][]Recipient), ops: ops}
}

func (l *fakeRecipientLedger) log(op string) {
	if l.ops != nil {
		*l.ops = append(*l.ops, op)
	}
}

func (l *fakeRecipientLedger) ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []Recipient) error {
	l.log("recipients.replace")
	l.rows[commID] = append([]Recipient(nil), entries...)
	return nil
}

func (l *fakeRecipientLedger) DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error {
	l.log("recipients.delete")
	delete(l.rows, commID)
	return nil
}

func (l *fakeRecipientLedger) ListByCommunication(ctx context.Context, commID primitive.ObjectID) ([]Recipient, error) {
	return append([]Recipient(nil), l.rows[commID]...), nil
}

func (l *fakeRecipientLedger) MarkRead(ctx context.Context, commID, userID primitive.ObjectID) error {
	now := time.Now()
	rows := l.rows[commID]
	for i := range rows {
		if rows[i].UserID == userID && !rows[i].Read {
			rows[i].Read = true
			rows[i].ReadAt = &now
		}
	}
	return nil
}

func (l *fakeRecipientLedger) CountByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error) {
	return int64(len(l.rows[commID])), nil
}

func (l *fakeRecipientLedger) CountReadByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error) {
	var n int64
	for _, r := range l.rows[commID] {
		if r.Read {
			n++
		}
	}
	return n, nil
}

type fakeNotificationLedger struct {
	rows       map[primitive.ObjectID][]notification.Notification
	replaceErr error
	ops        *[]string
}

func newFakeNotificationLedger(ops *[]string) *fakeNotificationLedger {
	return &fakeNotificationLedger{rows: make(map[primitive.ObjectID][]notification.Notification), ops: ops}
}

func (l *fakeNotificationLedger) log(op string) {
	if l.ops != nil {
		*l.ops = append(*l.ops, op)
	}
}

func (l *fakeNotificationLedger) ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []notification.Notification) error {
	l.log("notifications.replace")
	if l.replaceErr != nil {
		return l.replaceErr
	}
	l.rows[commID] = append([]notification.Notification(nil), entries...)
	return nil
}

func (l *fakeNotificationLedger) DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error {
	l.log("notifications.delete")
	delete(l.rows, commID)
	return nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (e *fakeEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, to)
	return nil
}

type fakeNotifier struct {
	events []string
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, event string, payload any) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, userID+":"+event)
	return nil
}

func activeUser(role auth.Role) auth.User {
	return auth.User{
		ID:     primitive.NewObjectID(),
		Name:   "user-" + primitive.NewObjectID().Hex()[:6],
		Email:  primitive.NewObjectID().Hex() + "@example.org",
		Role:   role,
		Active: true,
	}
}

func draftCommunication(sender auth.User, audience Audience, recipientIDs []primitive.ObjectID) *Communication {
	now := time.Now()
	return &Communication{
		ID:           primitive.NewObjectID(),
		Subject:      "Monthly update",
		Body:         "The board met on Tuesday.",
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		MessageType:  TypeAnnouncement,
		Audience:     audience,
		RecipientIDs: recipientIDs,
		Status:       StatusDraft,
		Priority:     PriorityNormal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
