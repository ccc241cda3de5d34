package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

// PostgreSQL error codes checked when mapping storage failures to the
// application error taxonomy.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the Postgres-backed implementation of store.Store. All identity
// lookups go through the unique name indexes; the user-delete cascade runs
// as a single transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool as a store.Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	query := `INSERT INTO users (name, email, phone_number)
              VALUES ($1, $2, $3)
              RETURNING id`
	created := *u
	err := s.pool.QueryRow(ctx, query, u.Name, u.Email, u.PhoneNumber).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.NewConflictError(fmt.Sprintf("user '%s' already exists", u.Name), nil)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return &created, nil
}

// UserByName resolves a user by exact name match. The name column carries a
// unique index, so the multi-row branch below is unreachable on a healthy
// schema; it still resolves deterministically to the lowest id and logs a
// consistency warning, per the resolver contract.
func (s *Store) UserByName(ctx context.Context, name string) (*store.User, error) {
	query := `SELECT id, name, email, phone_number FROM users WHERE name = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to query user by name", err)
	}
	defer rows.Close()

	var matches []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan user", err)
		}
		matches = append(matches, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read users", err)
	}
	if len(matches) == 0 {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("user '%s' not found", name), nil)
	}
	if len(matches) > 1 {
		log.Printf("consistency warning: %d users share the name '%s', resolving to id %d", len(matches), name, matches[0].ID)
	}
	return &matches[0], nil
}

// Users lists all users ordered by id.
func (s *Store) Users(ctx context.Context) ([]store.User, error) {
	query := `SELECT id, name, email, phone_number FROM users ORDER BY id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list users", err)
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read users", err)
	}
	return users, nil
}

// UpdateUser replaces the stored attributes of the user with the given id.
func (s *Store) UpdateUser(ctx context.Context, id int64, u *store.User) (*store.User, error) {
	query := `UPDATE users SET name = $1, email = $2, phone_number = $3
              WHERE id = $4
              RETURNING id, name, email, phone_number`
	var updated store.User
	err := s.pool.QueryRow(ctx, query, u.Name, u.Email, u.PhoneNumber, id).
		Scan(&updated.ID, &updated.Name, &updated.Email, &updated.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("user with id %d not found", id), nil)
		}
		if isUniqueViolation(err) {
			return nil, apperror.NewConflictError(fmt.Sprintf("user '%s' already exists", u.Name), nil)
		}
		return nil, apperror.NewDatabaseError("failed to update user", err)
	}
	return &updated, nil
}

// DeleteUser removes the user and every event the user organizes in one
// transaction. Foreign keys clean up the participation links and the user's
// API key; any failure rolls the whole cascade back.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperror.NewDatabaseError("failed to begin user delete transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE organizer = $1`, id); err != nil {
		return apperror.NewDatabaseError("failed to delete organized events", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperror.NewDatabaseError("failed to delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("user with id %d not found", id), nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.NewDatabaseError("failed to commit user delete transaction", err)
	}
	return nil
}

func scanEvent(row pgx.Row, e *store.Event) error {
	return row.Scan(&e.ID, &e.Name, &e.Location, &e.Time, &e.Organizer, &e.Description, &e.Category, &e.Tags)
}

// CreateEvent inserts an event and returns it with its assigned id.
func (s *Store) CreateEvent(ctx context.Context, e *store.Event) (*store.Event, error) {
	query := `INSERT INTO events (name, location, time, organizer, description, category, tags)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              RETURNING id`
	created := *e
	err := s.pool.QueryRow(ctx, query,
		e.Name, e.Location, e.Time, e.Organizer, e.Description, normalized(e.Category), normalized(e.Tags),
	).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.NewConflictError(fmt.Sprintf("event '%s' already exists", e.Name), nil)
		}
		if isForeignKeyViolation(err) {
			return nil, apperror.NewNotFoundError("organizer does not exist", err)
		}
		return nil, apperror.NewDatabaseError("failed to create event", err)
	}
	return &created, nil
}

// normalized keeps array columns non-null so scans into []string stay simple.
func normalized(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

// EventByName resolves an event by exact name match, with the same
// lowest-id-plus-warning contract as UserByName.
func (s *Store) EventByName(ctx context.Context, name string) (*store.Event, error) {
	query := `SELECT id, name, location, time, organizer, description, category, tags
              FROM events WHERE name = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to query event by name", err)
	}
	defer rows.Close()

	var matches []store.Event
	for rows.Next() {
		var e store.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan event", err)
		}
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read events", err)
	}
	if len(matches) == 0 {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("event '%s' not found", name), nil)
	}
	if len(matches) > 1 {
		log.Printf("consistency warning: %d events share the name '%s', resolving to id %d", len(matches), name, matches[0].ID)
	}
	return &matches[0], nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...interface{}) ([]store.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to query events", err)
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var e store.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read events", err)
	}
	return events, nil
}

// Events lists all events ordered by id.
func (s *Store) Events(ctx context.Context) ([]store.Event, error) {
	return s.queryEvents(ctx, `SELECT id, name, location, time, organizer, description, category, tags
                               FROM events ORDER BY id`)
}

// UpdateEvent replaces the stored attributes of the event with the given id.
func (s *Store) UpdateEvent(ctx context.Context, id int64, e *store.Event) (*store.Event, error) {
	query := `UPDATE events
              SET name = $1, location = $2, time = $3, organizer = $4, description = $5, category = $6, tags = $7
              WHERE id = $8
              RETURNING id, name, location, time, organizer, description, category, tags`
	var updated store.Event
	err := scanEvent(s.pool.QueryRow(ctx, query,
		e.Name, e.Location, e.Time, e.Organizer, e.Description, normalized(e.Category), normalized(e.Tags), id,
	), &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("event with id %d not found", id), nil)
		}
		if isUniqueViolation(err) {
			return nil, apperror.NewConflictError(fmt.Sprintf("event '%s' already exists", e.Name), nil)
		}
		return nil, apperror.NewDatabaseError("failed to update event", err)
	}
	return &updated, nil
}

// DeleteEvent removes the event; the participation-link foreign keys cascade.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return apperror.NewDatabaseError("failed to delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("event with id %d not found", id), nil)
	}
	return nil
}

// EventsOrganizedBy lists events organized by the user, ordered by id.
func (s *Store) EventsOrganizedBy(ctx context.Context, userID int64) ([]store.Event, error) {
	return s.queryEvents(ctx, `SELECT id, name, location, time, organizer, description, category, tags
                               FROM events WHERE organizer = $1 ORDER BY id`, userID)
}

// EventsAttendedBy lists events the user participates in, ordered by id.
func (s *Store) EventsAttendedBy(ctx context.Context, userID int64) ([]store.Event, error) {
	return s.queryEvents(ctx, `SELECT e.id, e.name, e.location, e.time, e.organizer, e.description, e.category, e.tags
                               FROM events e
                               JOIN event_participants p ON p.event_id = e.id
                               WHERE p.user_id = $1
                               ORDER BY e.id`, userID)
}

// AddParticipant links the user to the event.
func (s *Store) AddParticipant(ctx context.Context, eventID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2)`, eventID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflictError("user is already participating in this event", nil)
		}
		if isForeignKeyViolation(err) {
			return apperror.NewNotFoundError("event or user does not exist", err)
		}
		return apperror.NewDatabaseError("failed to add participant", err)
	}
	return nil
}

// RemoveParticipant deletes the participation link.
func (s *Store) RemoveParticipant(ctx context.Context, eventID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return apperror.NewDatabaseError("failed to remove participant", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError("user is not participating in this event", nil)
	}
	return nil
}

// Participants lists the users attending the event, ordered by id.
func (s *Store) Participants(ctx context.Context, eventID int64) ([]store.User, error) {
	query := `SELECT u.id, u.name, u.email, u.phone_number
              FROM users u
              JOIN event_participants p ON p.user_id = u.id
              WHERE p.event_id = $1
              ORDER BY u.id`
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list participants", err)
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan participant", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read participants", err)
	}
	return users, nil
}

// InsertKey stores a key digest for its principal. The unique constraints
// (one key per user, a single admin key) surface as conflicts.
func (s *Store) InsertKey(ctx context.Context, k *store.APIKey) error {
	if !k.Admin && k.UserID == nil {
		return apperror.NewBadRequestError("API key must belong to a user or the admin role", nil)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (digest, user_id, admin) VALUES ($1, $2, $3)`, k.Digest, k.UserID, k.Admin)
	if err != nil {
		if isUniqueViolation(err) {
			if k.Admin {
				return apperror.NewConflictError("an admin API key already exists", nil)
			}
			return apperror.NewConflictError("user already holds an API key", nil)
		}
		if isForeignKeyViolation(err) {
			return apperror.NewNotFoundError("key owner does not exist", err)
		}
		return apperror.NewDatabaseError("failed to store API key", err)
	}
	return nil
}

// KeyForUser returns the key held by the user, if any.
func (s *Store) KeyForUser(ctx context.Context, userID int64) (*store.APIKey, error) {
	var k store.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT digest, user_id, admin FROM api_keys WHERE user_id = $1`, userID).
		Scan(&k.Digest, &k.UserID, &k.Admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("no API key for user %d", userID), nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user API key", err)
	}
	return &k, nil
}

// AdminKey returns the deployment's admin key, if any.
func (s *Store) AdminKey(ctx context.Context) (*store.APIKey, error) {
	var k store.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT digest, user_id, admin FROM api_keys WHERE admin`).
		Scan(&k.Digest, &k.UserID, &k.Admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("no admin API key", nil)
		}
		return nil, apperror.NewDatabaseError("failed to get admin API key", err)
	}
	return &k, nil
}

// DeleteKeyForUser removes the user's key. No-op when none exists.
func (s *Store) DeleteKeyForUser(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID); err != nil {
		return apperror.NewDatabaseError("failed to delete user API key", err)
	}
	return nil
}

// DeleteAdminKey removes the admin key. No-op when none exists.
func (s *Store) DeleteAdminKey(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE admin`); err != nil {
		return apperror.NewDatabaseError("failed to delete admin API key", err)
	}
	return nil
}
