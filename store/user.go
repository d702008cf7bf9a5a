package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// User is a local account allowed to obtain session tokens.
type User struct {
	ID             int
	Username       string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
}

var userSelect = []string{"id", "username", "hashed_password", "is_active", "created_at"}

// CreateUser inserts an active user. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	ins := s.builder().Insert(tableUsers).
		Columns("username", "hashed_password", "is_active", "created_at").
		Values(username, hashedPassword, true, now)
	id, err := insertReturningID(ctx, s.drv, ins)
	if err != nil {
		return nil, fmt.Errorf("store: create user %q: %w", username, err)
	}
	return &User{
		ID:             id,
		Username:       username,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      now,
	}, nil
}

// UserByUsername returns the user with the given username or ErrNotFound.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	b := s.builder()
	sel := b.Select(userSelect...).
		From(b.Table(tableUsers)).
		Where(entsql.EQ("username", username))
	var found *User
	err := query(ctx, s.drv, sel, func(rows *entsql.Rows) error {
		if !rows.Next() {
			return rows.Err()
		}
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.IsActive, &u.CreatedAt); err != nil {
			return err
		}
		found = &u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get user %q: %w", username, err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// CountUsers returns the number of user accounts.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	n, err := count(ctx, s.drv, s.builder(), tableUsers, nil)
	if err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
