package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrEmailTaken            = errors.New("email already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrGoogleAccountConflict = errors.New("email is linked to another google account")
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Users struct {
	DB *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{DB: db}
}

func (u *Users) Create(ctx context.Context, email, passwordHash string) (User, error) {
	user := User{
		ID:       uuid.New().String(),
		Email:    normalizeEmail(email),
		Password: passwordHash,
	}

	err := u.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, user.ID, user.Email, user.Password).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

func (u *Users) ByEmail(ctx context.Context, email string) (User, error) {
	return u.scanOne(ctx, `
		SELECT id, email, password, name, avatar_url, created_at
		FROM users WHERE email = $1
	`, normalizeEmail(email))
}

func (u *Users) ByID(ctx context.Context, id string) (User, error) {
	return u.scanOne(ctx, `
		SELECT id, email, password, name, avatar_url, created_at
		FROM users WHERE id = $1
	`, id)
}

// UpsertGoogle signs in a Google account. The account is found by its
// Google subject first, and its email, name and avatar are refreshed from
// Google. On first sign-in a password account with the same email is
// linked and its password cleared, so only the Google identity can use it
// afterwards; an email already linked to a different subject is refused.
func (u *Users) UpsertGoogle(ctx context.Context, sub, email, name, avatarURL string) (User, error) {
	email = normalizeEmail(email)

	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM users WHERE google_sub = $1 FOR UPDATE
	`, sub).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, err = linkGoogle(ctx, tx, sub, email)
		if err != nil {
			return User{}, err
		}
	case err != nil:
		return User{}, err
	}

	var user User
	err = tx.QueryRowContext(ctx, `
		UPDATE users SET email = $1, name = $2, avatar_url = $3
		WHERE id = $4
		RETURNING id, email, name, avatar_url, created_at
	`, email, name, avatarURL, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}
	return user, nil
}

// linkGoogle attaches sub to the user owning email, creating the user when
// there is none. It returns the user id.
func linkGoogle(ctx context.Context, tx *sql.Tx, sub, email string) (string, error) {
	var (
		id       string
		existing string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, COALESCE(google_sub, '') FROM users WHERE email = $1 FOR UPDATE
	`, email).Scan(&id, &existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, email, google_sub)
			VALUES ($1, $2, $3)
		`, id, email, sub)
		if isUniqueViolation(err) {
			return "", ErrEmailTaken
		}
		return id, err
	case err != nil:
		return "", err
	case existing != "":
		return "", ErrGoogleAccountConflict
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET google_sub = $1, password = '' WHERE id = $2
	`, sub, id); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the user and everything owned by them in one transaction.
func (u *Users) Delete(ctx context.Context, id string) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analytics_events WHERE user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}

	return tx.Commit()
}

func (u *Users) scanOne(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := u.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Password, &user.Name, &user.AvatarURL, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
