package communication

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
)

// UserDirectory is the read-only view of the user population that audience
// resolution runs against.
type UserDirectory interface {
	FindActive(ctx context.Context) ([]auth.User, error)
	FindActiveByRoles(ctx context.Context, roles []auth.Role) ([]auth.User, error)
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]auth.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]auth.User, error)
}

// AudienceResolver turns an audience policy into the concrete set of target
// users. It is side-effect free: it reads the user directory and never writes
// a ledger. Callers re-resolve at send time because accounts change state
// between authoring and sending.
type AudienceResolver struct {
	users UserDirectory
}

func NewAudienceResolver(users UserDirectory) *AudienceResolver {
	return &AudienceResolver{users: users}
}

// Resolve returns the active users addressed by the policy. For SPECIFIC it
// fails with a ValidationError when any explicit id does not resolve to an
// active user, and resolves nothing partially.
func (r *AudienceResolver) Resolve(ctx context.Context, audience Audience, explicit []primitive.ObjectID) ([]auth.User, error) {
	switch audience {
	case AudienceAll:
		return r.users.FindActive(ctx)
	case AudienceAdmins:
		return r.users.FindActiveByRoles(ctx, auth.ElevatedRoles())
	case AudienceSpecific:
		if len(explicit) == 0 {
			return nil, apperrors.Validation("recipientIds are required for SPECIFIC recipient type")
		}
		unique := dedupeIDs(explicit)
		users, err := r.users.FindActiveByIDs(ctx, unique)
		if err != nil {
			return nil, err
		}
		if len(users) != len(unique) {
			missing := missingIDs(unique, users)
			return nil, apperrors.Validation("recipients not found or inactive: %v", missing)
		}
		return users, nil
	default:
		return nil, apperrors.Validation("unknown recipient type %q", audience)
	}
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(wanted []primitive.ObjectID, found []auth.User) []string {
	present := make(map[primitive.ObjectID]struct{}, len(found))
	for _, u := range found {
		present[u.ID] = struct{}{}
	}
	var missing []string
	for _, id := range wanted {
		if _, ok := present[id]; !ok {
			missing = append(missing, id.Hex())
		}
	}
	return missing
}
