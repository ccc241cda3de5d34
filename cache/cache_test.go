package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareStoresSuccessfulGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	body := `{"name":"gig"}`
	raw, err := json.Marshal(entry{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(body),
	})
	require.NoError(t, err)

	mock.ExpectGet(Key("/api/events/")).RedisNil()
	mock.ExpectSet(Key("/api/events/"), raw, time.Minute).SetVal("OK")

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareServesHitWithoutHandler(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	raw, err := json.Marshal(entry{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"cached":true}`),
	})
	require.NoError(t, err)
	mock.ExpectGet(Key("/api/events/")).SetVal(string(raw))

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on a cache hit")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"cached":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareIgnoresNonGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareDoesNotStoreErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	mock.ExpectGet(Key("/api/events/nope/")).RedisNil()

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/nope/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareDegradesOnRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	mock.ExpectGet(Key("/api/events/")).SetErr(context.DeadlineExceeded)

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestDrop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	mock.ExpectDel(Key("/api/events/"), Key("/api/events/gig/")).SetVal(2)
	c.Drop(context.Background(), "/api/events/", "/api/events/gig/")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilCacheIsTransparent(t *testing.T) {
	var c *Cache

	handler := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Drop on a disabled cache is a no-op, not a panic.
	c.Drop(context.Background(), "/api/events/")
}
