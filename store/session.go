package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Session is a bearer token issued to a user on login.
type Session struct {
	ID           int
	Token        string
	UserID       int
	CreatedAt    time.Time
	LastActivity time.Time
	// User is populated by SessionByToken.
	User *User
}

// CreateSession stores a new session for userID.
func (s *Store) CreateSession(ctx context.Context, userID int, token string) (*Session, error) {
	now := time.Now().UTC()
	ins := s.builder().Insert(tableSessions).
		Columns("token", "created_at", "last_activity", "user_id").
		Values(token, now, now, userID)
	id, err := insertReturningID(ctx, s.drv, ins)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &Session{
		ID:           id,
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}, nil
}

// SessionByToken returns the session holding token together with its user,
// or ErrNotFound.
func (s *Store) SessionByToken(ctx context.Context, token string) (*Session, error) {
	// Both tables carry explicit aliases: Join assigns one to an unaliased
	// table, which would invalidate column references taken earlier.
	b := s.builder()
	st := b.Table(tableSessions).As("s")
	ut := b.Table(tableUsers).As("u")
	sel := b.Select(
		st.C("id"), st.C("token"), st.C("user_id"), st.C("created_at"), st.C("last_activity"),
		ut.C("username"), ut.C("hashed_password"), ut.C("is_active"), ut.C("created_at"),
	).
		From(st).
		Join(ut).
		On(st.C("user_id"), ut.C("id")).
		Where(entsql.EQ(st.C("token"), token))

	var found *Session
	err := query(ctx, s.drv, sel, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return rows.Err()
		}
		var (
			sess Session
			u    User
		)
		if err := rows.Scan(
			&sess.ID, &sess.Token, &sess.UserID, &sess.CreatedAt, &sess.LastActivity,
			&u.Username, &u.HashedPassword, &u.IsActive, &u.CreatedAt,
		); err != nil {
			return err
		}
		u.ID = sess.UserID
		sess.User = &u
		found = &sess
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// TouchSession records activity on the session at the given time.
func (s *Store) TouchSession(ctx context.Context, id int, at time.Time) error {
	upd := s.builder().Update(tableSessions).
		Set("last_activity", at.UTC()).
		Where(entsql.EQ("id", id))
	if _, err := exec(ctx, s.drv, upd); err != nil {
		return fmt.Errorf("store: touch session %d: %w", id, err)
	}
	return nil
}

// DeleteSession removes a single session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, id int) error {
	if _, err := exec(ctx, s.drv, s.builder().Delete(tableSessions).Where(entsql.EQ("id", id))); err != nil {
		return fmt.Errorf("store: delete session %d: %w", id, err)
	}
	return nil
}

// DeleteSessionsBefore removes sessions idle since before cutoff and returns
// how many were deleted.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := exec(ctx, s.drv, s.builder().Delete(tableSessions).Where(entsql.LT("last_activity", cutoff.UTC())))
	if err != nil {
		return 0, fmt.Errorf("store: delete expired sessions: %w", err)
	}
	return n, nil
}
