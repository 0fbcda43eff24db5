package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a user's access tier. Authorization decisions go through
// Elevated() rather than comparing role strings at call sites.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Elevated reports whether the role may author announcements/newsletters and
// manage other members' communications.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// ElevatedRoles is the fixed set used by ADMINS audience resolution.
func ElevatedRoles() []Role {
	return []Role{RoleAdmin, RoleSuperadmin}
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         Role               `bson:"role"`
	Active       bool               `bson:"active"`
	CreatedAt    time.Time          `bson:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
