package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStore provides user-related database operations.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new user store.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{db: store.DB}
}

// CreateUser inserts a user. A taken username returns ErrConflict.
func (s *UserStore) CreateUser(ctx context.Context, username string) (*User, error) {
	user := &User{Username: username, CreatedAt: time.Now().UTC()}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).
		Create(user)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: username %q taken", ErrConflict, username)
	}
	return user, nil
}

// GetUser returns a user by id.
func (s *UserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByUsername returns a user by username.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// maxUsernameAttempts bounds the suffixes EnsureUser tries when "user_<id>"
// is already taken by another user.
const maxUsernameAttempts = 5

// EnsureUser returns user id, creating "user_<id>" when absent. A taken
// username gets a numeric suffix ("user_<id>_2", ...).
// The boolean reports whether this call created the row.
func (s *UserStore) EnsureUser(ctx context.Context, id int64) (*User, bool, error) {
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		username := fmt.Sprintf("user_%d", id)
		if attempt > 1 {
			username = fmt.Sprintf("user_%d_%d", id, attempt)
		}
		user := &User{ID: id, Username: username, CreatedAt: time.Now().UTC()}

		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Create(user)
		if err := translate(result.Error); errors.Is(err, ErrConflict) {
			// Username taken; the id may still have been created concurrently.
			if existing, err := s.GetUser(ctx, id); err == nil {
				return existing, false, nil
			}
			continue
		} else if err != nil {
			return nil, false, err
		}
		if result.RowsAffected == 1 {
			// An explicit id does not advance the serial sequence on PostgreSQL.
			if s.db.Dialector.Name() == "postgres" {
				if err := s.db.WithContext(ctx).Exec(
					`SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT MAX(id) FROM users))`,
				).Error; err != nil {
					return nil, false, fmt.Errorf("resync users sequence: %w", err)
				}
			}
			return user, true, nil
		}

		existing, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return nil, false, fmt.Errorf("ensure user %d: no free username: %w", id, ErrConflict)
}

// ListUsers returns all users ordered by id.
func (s *UserStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

// CountUsers returns the number of users.
func (s *UserStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&User{}).Count(&n).Error
	return n, err
}
