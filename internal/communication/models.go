package communication

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
)

// Audience is the rule used to resolve which users receive a communication.
type Audience string

const (
	AudienceAll      Audience = "ALL"
	AudienceAdmins   Audience = "ADMINS"
	AudienceSpecific Audience = "SPECIFIC"
)

// Status is the communication lifecycle state. Transitions are monotonic:
// DRAFT may move to SCHEDULED or SENT; nothing leaves SENT.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusSent      Status = "SENT"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type MessageType string

const (
	TypeAnnouncement MessageType = "ANNOUNCEMENT"
	TypeNewsletter   MessageType = "NEWSLETTER"
	TypeDirect       MessageType = "DIRECT"
)

// Communication is the authored message: the source of truth for what was
// said and to whom it was addressed. Ledger rows are derived from it at
// fan-out time.
type Communication struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Subject       string               `bson:"subject"`
	Body          string               `bson:"body"`
	SenderID      primitive.ObjectID   `bson:"sender_id"`
	SenderName    string               `bson:"sender_name"`
	MessageType   MessageType          `bson:"message_type"`
	Audience      Audience             `bson:"recipient_type"`
	RecipientIDs  []primitive.ObjectID `bson:"recipient_ids,omitempty"`
	Status        Status               `bson:"status"`
	Priority      Priority             `bson:"priority"`
	AttachmentURL string               `bson:"attachment_url,omitempty"`
	SentAt        *time.Time           `bson:"sent_at,omitempty"`
	ScheduledFor  *time.Time           `bson:"scheduled_for,omitempty"`
	DispatchError string               `bson:"dispatch_error,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

// Recipient is one recipient-ledger row: per-(communication, user) read
// tracking. At most one row exists per pair, enforced by a unique index and
// by the delete-then-insert replacement in fan-out.
type Recipient struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	CommunicationID primitive.ObjectID `bson:"communication_id"`
	UserID          primitive.ObjectID `bson:"user_id"`
	Read            bool               `bson:"read"`
	ReadAt          *time.Time         `bson:"read_at,omitempty"`
}

type CreateCommunicationRequest struct {
	Subject       string   `json:"subject"`
	Content       string   `json:"content"`
	MessageType   string   `json:"messageType"`
	RecipientType string   `json:"recipientType"`
	RecipientIDs  []string `json:"recipientIds,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	AttachmentURL string   `json:"attachmentUrl,omitempty"`
}

type UpdateCommunicationRequest struct {
	Subject       *string  `json:"subject,omitempty"`
	Content       *string  `json:"content,omitempty"`
	RecipientType *string  `json:"recipientType,omitempty"`
	RecipientIDs  []string `json:"recipientIds,omitempty"`
	Priority      *string  `json:"priority,omitempty"`
	AttachmentURL *string  `json:"attachmentUrl,omitempty"`
}

type ScheduleRequest struct {
	ScheduledDate time.Time `json:"scheduledDate"`
}

// RecipientView is a recipient-ledger row with user details joined in.
type RecipientView struct {
	UserID string     `json:"userId"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"readAt,omitempty"`
}

func validAudience(a Audience) bool {
	return a == AudienceAll || a == AudienceAdmins || a == AudienceSpecific
}

func validPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

func validMessageType(t MessageType) bool {
	return t == TypeAnnouncement || t == TypeNewsletter || t == TypeDirect
}

// Validate checks the record-level invariants of a draft: non-empty subject
// and body, known enum values, and the explicit recipient list present iff
// the audience is SPECIFIC.
func (c *Communication) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return apperrors.Validation("subject is required")
	}
	if strings.TrimSpace(c.Body) == "" {
		return apperrors.Validation("content is required")
	}
	if !validMessageType(c.MessageType) {
		return apperrors.Validation("unknown message type %q", c.MessageType)
	}
	if !validAudience(c.Audience) {
		return apperrors.Validation("unknown recipient type %q", c.Audience)
	}
	if !validPriority(c.Priority) {
		return apperrors.Validation("unknown priority %q", c.Priority)
	}
	if c.Audience == AudienceSpecific && len(c.RecipientIDs) == 0 {
		return apperrors.Validation("recipientIds are required for SPECIFIC recipient type")
	}
	if c.Audience != AudienceSpecific && len(c.RecipientIDs) > 0 {
		return apperrors.Validation("recipientIds are only allowed for SPECIFIC recipient type")
	}
	return nil
}
