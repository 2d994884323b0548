package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/slotswap/internal/domain"
)

// Users is the account directory.
type Users struct {
	q     querier
	clock Clock
}

// Create registers a user. The email is stored in normalized form; a
// duplicate fails with DUPLICATE.
func (u *Users) Create(ctx context.Context, name, email, passwordHash string) (domain.User, error) {
	name = domain.NormalizeText(name)
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.NewValidation("email", "must not be empty")
	}

	res, err := u.q.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, name, email, passwordHash, formatTime(u.clock.Now()))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return domain.User{}, domain.Errorf(domain.ErrCodeDuplicate, "Email already registered")
		}
		return domain.User{}, fmt.Errorf("create user: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}
	return u.ByID(ctx, id)
}

// ByID returns the user with the given id, or NOT_FOUND.
func (u *Users) ByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := u.one(ctx, `WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.NewNotFound("user", id)
	}
	return user, err
}

// ByEmail looks a user up by email, normalizing it first.
func (u *Users) ByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := u.one(ctx, `WHERE email = ?`, domain.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.Errorf(domain.ErrCodeNotFound, "user %q not found", email)
	}
	return user, err
}

func (u *Users) one(ctx context.Context, where string, arg any) (domain.User, error) {
	var (
		user      domain.User
		createdAt string
	)
	err := u.q.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users `+where, arg).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
