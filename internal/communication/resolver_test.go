package communication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
)

func TestResolveAll(t *testing.T) {
	t.Parallel()

	member := activeUser(auth.RoleMember)
	admin := activeUser(auth.RoleAdmin)
	inactive := activeUser(auth.RoleMember)
	inactive.Active = false

	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{member, admin, inactive}})

	users, err := resolver.Resolve(context.Background(), AudienceAll, nil)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestResolveAdmins(t *testing.T) {
	t.Parallel()

	member := activeUser(auth.RoleMember)
	admin := activeUser(auth.RoleAdmin)
	superadmin := activeUser(auth.RoleSuperadmin)

	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{member, admin, superadmin}})

	users, err := resolver.Resolve(context.Background(), AudienceAdmins, nil)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.True(t, u.Role.Elevated())
	}
}

func TestResolveSpecific(t *testing.T) {
	t.Parallel()

	a := activeUser(auth.RoleMember)
	b := activeUser(auth.RoleMember)
	c := activeUser(auth.RoleMember)

	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{a, b, c}})

	users, err := resolver.Resolve(context.Background(), AudienceSpecific, []primitive.ObjectID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestResolveSpecificDeduplicates(t *testing.T) {
	t.Parallel()

	a := activeUser(auth.RoleMember)
	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{a}})

	users, err := resolver.Resolve(context.Background(), AudienceSpecific, []primitive.ObjectID{a.ID, a.ID})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestResolveSpecificInactiveFails(t *testing.T) {
	t.Parallel()

	a := activeUser(auth.RoleMember)
	gone := activeUser(auth.RoleMember)
	gone.Active = false

	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{a, gone}})

	_, err := resolver.Resolve(context.Background(), AudienceSpecific, []primitive.ObjectID{a.ID, gone.ID})
	require.Error(t, err)
	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestResolveSpecificUnknownIDFails(t *testing.T) {
	t.Parallel()

	a := activeUser(auth.RoleMember)
	resolver := NewAudienceResolver(&fakeDirectory{users: []auth.User{a}})

	_, err := resolver.Resolve(context.Background(), AudienceSpecific, []primitive.ObjectID{a.ID, primitive.NewObjectID()})
	require.Error(t, err)
	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestResolveSpecificEmptyListFails(t *testing.T) {
	t.Parallel()

	resolver := NewAudienceResolver(&fakeDirectory{})

	_, err := resolver.Resolve(context.Background(), AudienceSpecific, nil)
	require.Error(t, err)
	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestResolveUnknownAudienceFails(t *testing.T) {
	t.Parallel()

	resolver := NewAudienceResolver(&fakeDirectory{})

	_, err := resolver.Resolve(context.Background(), Audience("EVERYONE"), nil)
	require.Error(t, err)
	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}
