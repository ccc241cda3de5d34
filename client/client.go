// Package client is a small typed HTTP client for the event management API.
// It remembers the API key issued at user creation and attaches it to every
// request that addresses the current user. A Forbidden response drops the
// stored credentials, since a rejected key is never going to start working
// again on its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/events"
	"github.com/user/ems-go/store"
	"github.com/user/ems-go/users"
)

// Path builders mirror the server's canonical, percent-encoded URLs.
func userPath(name string) string {
	return "/api/users/" + url.PathEscape(name) + "/"
}

func userEventsPath(name string) string {
	return userPath(name) + "events/"
}

func userEventPath(user, event string) string {
	return userEventsPath(user) + url.PathEscape(event) + "/"
}

func eventPath(name string) string {
	return "/api/events/" + url.PathEscape(name) + "/"
}

func participantPath(event, user string) string {
	return eventPath(event) + "participants/" + url.PathEscape(user) + "/"
}

const defaultTimeout = 10 * time.Second

// Client talks to one API server on behalf of at most one user at a time.
// It is not safe for concurrent use.
type Client struct {
	base        string
	httpClient  *http.Client
	userHeader  string
	adminHeader string
	apiKey      string
	currentUser string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserKeyHeader overrides the header name the API key is sent in. It must
// match the server's configured user key header.
func WithUserKeyHeader(name string) Option {
	return func(c *Client) { c.userHeader = name }
}

// WithAdminKeyHeader overrides the header name admin credentials are sent in.
func WithAdminKeyHeader(name string) Option {
	return func(c *Client) { c.adminHeader = name }
}

// New creates a Client for the API at base, e.g. "http://127.0.0.1:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:        base,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		userHeader:  "User-Api-Key",
		adminHeader: "EMS-Api-Key",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser returns the name of the user the client acts as, or "" when no
// user is logged in.
func (c *Client) CurrentUser() string { return c.currentUser }

// APIKey returns the stored API key, or "" when none is held. Callers that
// persist credentials across runs read it here after CreateUser.
func (c *Client) APIKey() string { return c.apiKey }

// Login adopts a previously issued key for the named user without contacting
// the server. The key is validated lazily by the next authenticated request.
func (c *Client) Login(name, key string) {
	c.currentUser = name
	c.apiKey = key
}

// Logout drops the stored credentials.
func (c *Client) Logout() {
	c.currentUser = ""
	c.apiKey = ""
}

// do runs one request and translates failure responses back into the typed
// errors the server raised them as. When authed is set the stored key rides
// along, and a 403 clears the stored credentials before returning.
func (c *Client) do(ctx context.Context, method, path string, body any, authed bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, apperror.NewInternalError("failed to encode request body", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, apperror.NewInternalError("failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.apiKey == "" {
			return nil, apperror.NewForbiddenError("no API key held, create a user or log in first", nil)
		}
		req.Header.Set(c.userHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.NewInternalError("request failed", err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.Logout()
	}

	var errResp apperror.ErrorResponse
	message := fmt.Sprintf("server returned status %d", resp.StatusCode)
	if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return nil, apperror.NewForbiddenError(message, nil)
	case http.StatusNotFound:
		return nil, apperror.NewNotFoundError(message, nil)
	case http.StatusConflict:
		return nil, apperror.NewConflictError(message, nil)
	case http.StatusBadRequest:
		return nil, apperror.NewBadRequestError(message, nil)
	case http.StatusUnsupportedMediaType:
		return nil, apperror.NewUnsupportedMediaTypeError(message, nil)
	default:
		return nil, apperror.NewInternalError(message, nil)
	}
}

// decodeInto drains and closes the response body into dst.
func decodeInto(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperror.NewInternalError("failed to decode response body", err)
	}
	return nil
}

// CreateUser registers a new user and stores the API key the server issues
// for it. The key is only ever transmitted in the creation response, so
// losing it means deleting and recreating the user.
func (c *Client) CreateUser(ctx context.Context, req users.UserRequest) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/users/", req, false)
	if err != nil {
		return err
	}
	resp.Body.Close()

	key := resp.Header.Get(c.userHeader)
	if key == "" {
		return apperror.NewInternalError("server did not return an API key", nil)
	}
	c.currentUser = req.Name
	c.apiKey = key
	return nil
}

// GetUser fetches the current user's record.
func (c *Client) GetUser(ctx context.Context) (store.User, error) {
	var u store.User
	resp, err := c.do(ctx, http.MethodGet, userPath(c.currentUser), nil, true)
	if err != nil {
		return u, err
	}
	err = decodeInto(resp, &u)
	return u, err
}

// UpdateUser replaces the current user's record. A rename is tracked so
// subsequent requests address the new name.
func (c *Client) UpdateUser(ctx context.Context, req users.UserRequest) (store.User, error) {
	var u store.User
	resp, err := c.do(ctx, http.MethodPut, userPath(c.currentUser), req, true)
	if err != nil {
		return u, err
	}
	if err := decodeInto(resp, &u); err != nil {
		return u, err
	}
	c.currentUser = u.Name
	return u, nil
}

// DeleteUser removes the current user, all events they organize, and the
// stored credentials.
func (c *Client) DeleteUser(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, userPath(c.currentUser), nil, true)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.Logout()
	return nil
}

// UserEvents returns the events the current user attends and organizes.
func (c *Client) UserEvents(ctx context.Context) (users.UserEventsResponse, error) {
	var out users.UserEventsResponse
	resp, err := c.do(ctx, http.MethodGet, userEventsPath(c.currentUser), nil, true)
	if err != nil {
		return out, err
	}
	err = decodeInto(resp, &out)
	return out, err
}

// CreateEvent creates an event organized by the current user.
func (c *Client) CreateEvent(ctx context.Context, req events.EventRequest) error {
	resp, err := c.do(ctx, http.MethodPost, userEventsPath(c.currentUser), req, true)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UpdateEvent replaces the named event. Only its organizer may do so.
func (c *Client) UpdateEvent(ctx context.Context, name string, req events.EventRequest) (store.Event, error) {
	var e store.Event
	resp, err := c.do(ctx, http.MethodPut, userEventPath(c.currentUser, name), req, true)
	if err != nil {
		return e, err
	}
	err = decodeInto(resp, &e)
	return e, err
}

// DeleteEvent removes the named event. Only its organizer may do so.
func (c *Client) DeleteEvent(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, userEventPath(c.currentUser, name), nil, true)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetEvent fetches one event by name. No credentials are needed.
func (c *Client) GetEvent(ctx context.Context, name string) (store.Event, error) {
	var e store.Event
	resp, err := c.do(ctx, http.MethodGet, eventPath(name), nil, false)
	if err != nil {
		return e, err
	}
	err = decodeInto(resp, &e)
	return e, err
}

// ListEvents fetches every event. No credentials are needed.
func (c *Client) ListEvents(ctx context.Context) ([]store.Event, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/events/", nil, false)
	if err != nil {
		return nil, err
	}
	var out []store.Event
	err = decodeInto(resp, &out)
	return out, err
}

// ListUsers fetches every registered user. This is the one admin operation:
// the given key rides in the admin header and is not stored on the client.
func (c *Client) ListUsers(ctx context.Context, adminKey string) ([]store.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/users/", nil)
	if err != nil {
		return nil, apperror.NewInternalError("failed to build request", err)
	}
	req.Header.Set(c.adminHeader, adminKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.NewInternalError("request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp apperror.ErrorResponse
		message := fmt.Sprintf("server returned status %d", resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		if resp.StatusCode == http.StatusForbidden {
			return nil, apperror.NewForbiddenError(message, nil)
		}
		return nil, apperror.NewInternalError(message, nil)
	}

	var out []store.User
	err = decodeInto(resp, &out)
	return out, err
}

// JoinEvent registers the current user as a participant of the named event.
func (c *Client) JoinEvent(ctx context.Context, eventName string) error {
	resp, err := c.do(ctx, http.MethodPost, participantPath(eventName, c.currentUser), nil, true)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// LeaveEvent removes the current user from the named event's participants.
func (c *Client) LeaveEvent(ctx context.Context, eventName string) error {
	resp, err := c.do(ctx, http.MethodDelete, participantPath(eventName, c.currentUser), nil, true)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
