package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ems-go/api"
	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/config"
	"github.com/user/ems-go/events"
	"github.com/user/ems-go/store"
	"github.com/user/ems-go/users"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	router := api.NewRouter(api.Options{
		Store: mem,
		Keys:  &config.KeysConfig{UserHeader: "User-Api-Key", AdminHeader: "EMS-Api-Key"},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mem
}

func futureTime() time.Time {
	return time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
}

func TestCreateUserStoresIssuedKey(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))
	assert.Equal(t, "alice", c.CurrentUser())
	assert.NotEmpty(t, c.APIKey())

	got, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestRequestsWithoutKeyFailLocally(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(srv.URL)

	_, err := c.GetUser(context.Background())
	assert.True(t, apperror.IsForbidden(err))
}

func TestForbiddenResponseDropsCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	// Register alice so the name resolves, then present a bad key for her.
	setup := New(srv.URL)
	require.NoError(t, setup.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))

	c := New(srv.URL)
	c.Login("alice", "not-the-real-key")

	_, err := c.GetUser(ctx)
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, c.CurrentUser())
	assert.Empty(t, c.APIKey())
}

func TestUpdateUserFollowsRename(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))

	updated, err := c.UpdateUser(ctx, users.UserRequest{Name: "alicia", Email: "alicia@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Name)
	assert.Equal(t, "alicia", c.CurrentUser())

	// The stored key keeps working under the new name.
	got, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Name)
}

func TestEventFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	alice := New(srv.URL)
	require.NoError(t, alice.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))
	bob := New(srv.URL)
	require.NoError(t, bob.CreateUser(ctx, users.UserRequest{Name: "bob", Email: "bob@example.com"}))

	require.NoError(t, alice.CreateEvent(ctx, events.EventRequest{
		Name:     "garage gig",
		Location: "the garage",
		Time:     futureTime(),
	}))

	// Reads need no credentials.
	anon := New(srv.URL)
	got, err := anon.GetEvent(ctx, "garage gig")
	require.NoError(t, err)
	assert.Equal(t, "the garage", got.Location)
	all, err := anon.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Bob attends, and the listing reflects it.
	require.NoError(t, bob.JoinEvent(ctx, "garage gig"))
	err = bob.JoinEvent(ctx, "garage gig")
	assert.True(t, apperror.IsConflict(err))

	listing, err := bob.UserEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", listing.UserName)
	require.Len(t, listing.EventInfos.AttendedEvents, 1)
	assert.Equal(t, "garage gig", listing.EventInfos.AttendedEvents[0].Name)

	require.NoError(t, bob.LeaveEvent(ctx, "garage gig"))
	err = bob.LeaveEvent(ctx, "garage gig")
	assert.True(t, apperror.IsNotFound(err))

	// Only the organizer mutates the event.
	updated, err := alice.UpdateEvent(ctx, "garage gig", events.EventRequest{
		Name:     "garage gig",
		Location: "the big garage",
		Time:     got.Time,
	})
	require.NoError(t, err)
	assert.Equal(t, "the big garage", updated.Location)

	require.NoError(t, alice.DeleteEvent(ctx, "garage gig"))
	_, err = anon.GetEvent(ctx, "garage gig")
	assert.True(t, apperror.IsNotFound(err))
}

func TestListUsersWithAdminKey(t *testing.T) {
	srv, mem := newTestServer(t)
	ctx := context.Background()

	c := New(srv.URL)
	require.NoError(t, c.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))

	adminKey, err := apikey.NewService(mem).Issue(ctx, apikey.AdminPrincipal())
	require.NoError(t, err)

	listed, err := c.ListUsers(ctx, adminKey)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "alice", listed[0].Name)

	// A user key is not an admin credential.
	_, err = c.ListUsers(ctx, c.APIKey())
	assert.True(t, apperror.IsForbidden(err))
	// The client's own user credential stays untouched.
	assert.Equal(t, "alice", c.CurrentUser())
}

func TestDeleteUserClearsClient(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.CreateUser(ctx, users.UserRequest{Name: "alice", Email: "alice@example.com"}))
	require.NoError(t, c.DeleteUser(ctx))
	assert.Empty(t, c.CurrentUser())
	assert.Empty(t, c.APIKey())
}
