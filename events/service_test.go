package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

func seedUser(t *testing.T, m *store.Memory, name string) *store.User {
	t.Helper()
	u, err := m.CreateUser(context.Background(), &store.User{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u
}

func futureTime() time.Time {
	return time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
}

func TestCreateSetsOrganizerFromCaller(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")

	// Whatever organizer the payload claims is overwritten.
	bogus := int64(999)
	created, err := svc.Create(ctx, alice, &EventRequest{
		Name:      "gig",
		Location:  "downtown",
		Time:      futureTime(),
		Organizer: &bogus,
	})
	require.NoError(t, err)
	require.NotNil(t, created.Organizer)
	assert.Equal(t, alice.ID, *created.Organizer)
}

func TestCreateRejectsPastTime(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")

	_, err := svc.Create(ctx, alice, &EventRequest{
		Name:     "yesterday",
		Location: "downtown",
		Time:     time.Now().Add(-time.Minute),
	})
	require.Error(t, err)
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.BadRequestError, appErr.Type)
}

func TestUpdateRequiresOrganizer(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")
	bob := seedUser(t, mem, "bob")

	event, err := svc.Create(ctx, alice, &EventRequest{Name: "gig", Location: "downtown", Time: futureTime()})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, event, &EventRequest{Name: "gig", Location: "elsewhere", Time: event.Time})
	assert.True(t, apperror.IsForbidden(err))

	err = svc.Delete(ctx, bob, event)
	assert.True(t, apperror.IsForbidden(err))
}

func TestUpdateRejectsOrganizerMismatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")

	event, err := svc.Create(ctx, alice, &EventRequest{Name: "gig", Location: "downtown", Time: futureTime()})
	require.NoError(t, err)

	other := int64(999)
	_, err = svc.Update(ctx, alice, event, &EventRequest{
		Name:      "gig",
		Location:  "downtown",
		Time:      event.Time,
		Organizer: &other,
	})
	require.Error(t, err)
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.BadRequestError, appErr.Type)
}

func TestUpdateTimeRules(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")

	event, err := svc.Create(ctx, alice, &EventRequest{Name: "gig", Location: "downtown", Time: futureTime()})
	require.NoError(t, err)

	// Moving the time into the past is rejected.
	_, err = svc.Update(ctx, alice, event, &EventRequest{
		Name:     "gig",
		Location: "downtown",
		Time:     time.Now().Add(-time.Hour),
	})
	require.Error(t, err)

	// Keeping the existing time untouched is always allowed, so the rest of
	// an event stays editable after the event has happened.
	_, err = svc.Update(ctx, alice, event, &EventRequest{
		Name:     "gig",
		Location: "moved next door",
		Time:     event.Time,
	})
	assert.NoError(t, err)
}

func TestUpdateKeepsOrganizerWhenOmitted(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem)
	alice := seedUser(t, mem, "alice")

	event, err := svc.Create(ctx, alice, &EventRequest{Name: "gig", Location: "downtown", Time: futureTime()})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, event, &EventRequest{
		Name:     "gig",
		Location: "elsewhere",
		Time:     event.Time,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Organizer)
	assert.Equal(t, alice.ID, *updated.Organizer)
}
