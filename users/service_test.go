package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

func newService(mem *store.Memory) *Service {
	return NewService(mem, apikey.NewService(mem))
}

func TestCreateIssuesWorkingKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	user, secret, err := svc.Create(ctx, &UserRequest{Name: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	ok, err := apikey.NewService(mem).Verify(ctx, apikey.UserPrincipal(user.ID), secret)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateRollsBackUserOnKeyFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	// Occupy the key slot the next created user would get, so issuing
	// its credential fails after the user row exists.
	nextID := int64(1)
	require.NoError(t, mem.InsertKey(ctx, &store.APIKey{Digest: []byte("squatter"), UserID: &nextID}))

	_, _, err := svc.Create(ctx, &UserRequest{Name: "alice", Email: "alice@example.com"})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	// The half-created user was removed again.
	_, err = mem.UserByName(ctx, "alice")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteReturnsCascadedEvents(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	alice, _, err := svc.Create(ctx, &UserRequest{Name: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	gig, err := mem.CreateEvent(ctx, &store.Event{
		Name: "gig", Location: "downtown", Time: time.Now().Add(time.Hour), Organizer: &alice.ID,
	})
	require.NoError(t, err)

	cascaded, err := svc.Delete(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cascaded, 1)
	assert.Equal(t, gig.ID, cascaded[0].ID)

	_, err = mem.UserByName(ctx, "alice")
	assert.True(t, apperror.IsNotFound(err))
	_, err = mem.EventByName(ctx, "gig")
	assert.True(t, apperror.IsNotFound(err))
}

func TestEventsListingIsNeverNil(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	alice, _, err := svc.Create(ctx, &UserRequest{Name: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	resp, err := svc.Events(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.UserName)
	assert.NotNil(t, resp.EventInfos.AttendedEvents)
	assert.NotNil(t, resp.EventInfos.OrganizedEvents)
	assert.Empty(t, resp.EventInfos.AttendedEvents)
	assert.Empty(t, resp.EventInfos.OrganizedEvents)
}

func TestUpdateRejectsTakenName(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(mem)

	alice, _, err := svc.Create(ctx, &UserRequest{Name: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, &UserRequest{Name: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice, &UserRequest{Name: "bob", Email: "alice@example.com"})
	assert.True(t, apperror.IsConflict(err))
}
