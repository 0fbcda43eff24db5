package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind string

const (
	KindCommunication Kind = "communication"
	KindAnnouncement  Kind = "announcement"
	KindSystem        Kind = "system"
)

// DefaultTTL is how long a notification stays visible after fan-out.
const DefaultTTL = 30 * 24 * time.Hour

// Notification is one notification-center entry for a single user. It is a
// frozen snapshot taken from the communication at fan-out time: later edits to
// the communication never rewrite existing entries, only a new fan-out does.
type Notification struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty"`
	UserID          primitive.ObjectID  `bson:"user_id"`
	CommunicationID *primitive.ObjectID `bson:"communication_id,omitempty"`
	Kind            Kind                `bson:"kind"`
	Title           string              `bson:"title"`
	Message         string              `bson:"message"`
	Priority        string              `bson:"priority"`
	Read            bool                `bson:"read"`
	ReadAt          *time.Time          `bson:"read_at,omitempty"`
	Displayed       bool                `bson:"displayed"`
	DisplayedAt     *time.Time          `bson:"displayed_at,omitempty"`
	Data            bson.M              `bson:"data,omitempty"`
	ExpiresAt       time.Time           `bson:"expires_at"`
	CreatedAt       time.Time           `bson:"created_at"`
}

// Expired reports whether the entry is past its expiry at the given instant.
// Expired entries are invisible to every active query even before the TTL
// monitor physically deletes them.
func (n *Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}
