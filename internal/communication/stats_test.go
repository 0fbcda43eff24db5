package communication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
)

func TestReadPercentage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		read  int64
		total int64
		want  int
	}{
		{0, 0, 0},
		{1, 4, 25},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{4, 4, 100},
		{0, 10, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ReadPercentage(tc.read, tc.total), "read=%d total=%d", tc.read, tc.total)
	}
}

func TestForCommunicationStats(t *testing.T) {
	t.Parallel()

	admin := activeUser(auth.RoleAdmin)
	a := activeUser(auth.RoleMember)
	b := activeUser(auth.RoleMember)
	c := activeUser(auth.RoleMember)
	d := activeUser(auth.RoleMember)
	f := newServiceFixture(admin, a, b, c, d)

	comm := draftCommunication(admin, AudienceAll, nil)
	require.NoError(t, f.comms.Insert(context.Background(), comm))

	_, err := f.fanout.Send(context.Background(), asActor(admin), comm.ID)
	require.NoError(t, err)

	require.NoError(t, f.recipients.MarkRead(context.Background(), comm.ID, a.ID))

	stats, err := f.stats.ForCommunication(context.Background(), asActor(admin), comm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.RecipientCount)
	assert.Equal(t, int64(1), stats.ReadCount)
	assert.Equal(t, 20, stats.ReadPercentage)
}

func TestForCommunicationStatsStranger(t *testing.T) {
	t.Parallel()

	sender := activeUser(auth.RoleAdmin)
	stranger := activeUser(auth.RoleMember)
	f := newServiceFixture(sender, stranger)

	comm := draftCommunication(sender, AudienceAll, nil)
	require.NoError(t, f.comms.Insert(context.Background(), comm))

	_, err := f.fanout.Send(context.Background(), asActor(sender), comm.ID)
	require.NoError(t, err)

	_, err = f.stats.ForCommunication(context.Background(), asActor(stranger), comm.ID)
	var authErr *apperrors.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestForCommunicationStatsMissing(t *testing.T) {
	t.Parallel()

	admin := activeUser(auth.RoleAdmin)
	f := newServiceFixture(admin)

	comm := draftCommunication(admin, AudienceAll, nil)

	_, err := f.stats.ForCommunication(context.Background(), asActor(admin), comm.ID)
	require.Error(t, err)
}

type staticFleet struct{}

func (staticFleet) CountByMessageType(context.Context) (map[string]int64, error) {
	return map[string]int64{"ANNOUNCEMENT": 3, "DIRECT": 1}, nil
}

func (staticFleet) CountByStatus(context.Context) (map[string]int64, error) {
	return map[string]int64{"SENT": 3, "DRAFT": 1}, nil
}

func (staticFleet) MonthlySendVolume(context.Context, int) ([12]int64, error) {
	var v [12]int64
	v[0] = 2
	v[5] = 1
	return v, nil
}

func (staticFleet) ReadTotals(context.Context) (ReadTotals, error) {
	return ReadTotals{Total: 8, Read: 2}, nil
}

func (staticFleet) ReadTotalsByMessageType(context.Context) (map[string]ReadTotals, error) {
	return map[string]ReadTotals{
		"ANNOUNCEMENT": {Total: 6, Read: 2},
		"DIRECT":       {Total: 2, Read: 0},
	}, nil
}

func TestFleetStats(t *testing.T) {
	t.Parallel()

	admin := activeUser(auth.RoleAdmin)
	f := newServiceFixture(admin)
	stats := NewStatsService(f.comms, f.recipients, staticFleet{})

	fleet, err := stats.Fleet(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), fleet.ByMessageType["ANNOUNCEMENT"])
	assert.Equal(t, int64(1), fleet.ByStatus["DRAFT"])
	assert.Equal(t, int64(2), fleet.MonthlySendVolume[0])
	assert.Equal(t, int64(8), fleet.TotalRecipients)
	assert.Equal(t, 25, fleet.OverallReadRate)

	require.Len(t, fleet.ReadRateByType, 2)
	byType := make(map[string]KindReadRate)
	for _, r := range fleet.ReadRateByType {
		byType[r.MessageType] = r
	}
	assert.Equal(t, 33, byType["ANNOUNCEMENT"].ReadPercentage)
	assert.Equal(t, 0, byType["DIRECT"].ReadPercentage)
}
