package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

const userColumns = `
	username, password, email, spotify_user_id, spotify_display_name, user_image, market,
	is_admin, access_token, refresh_token, token_expiry, created_at, updated_at
`

// UserRepository implements [models.Repository] for user [models.User] persistence.
//
// Users are keyed on username and are never hard-deleted.
type UserRepository struct {
	db Querier
}

var _ models.Repository[*models.User, string] = (*UserRepository)(nil)

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A taken username or email is reported as a [shared.ValidationError].
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Market == "" {
		user.Market = "US"
	}

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	user.CreatedAt, user.UpdatedAt = ts, ts

	query := `
		INSERT INTO users (username, password, email, market, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := exec(ctx, r.db, query, user.Username, user.Password, user.Email, user.Market, user.IsAdmin, ts, ts)
	if isUniqueViolation(err) {
		return shared.NewValidationError("username", "username or email is already taken")
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by username
func (r *UserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"

	err := r.db.GetContext(ctx, &user, r.db.Rebind(query), username)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"

	err := r.db.GetContext(ctx, &user, r.db.Rebind(query), email)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// Exists reports whether a user with the given username or email is registered.
func (r *UserRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	query := r.db.Rebind("SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)")
	if err := r.db.QueryRowxContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

// Update modifies the profile fields of an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	user.UpdatedAt = now()

	query := `
		UPDATE users
		SET email = ?, market = ?, is_admin = ?, spotify_user_id = ?, spotify_display_name = ?,
			user_image = ?, updated_at = ?
		WHERE username = ?
	`

	rows, err := exec(ctx, r.db, query,
		user.Email,
		user.Market,
		user.IsAdmin,
		user.SpotifyUserID,
		user.SpotifyDisplayName,
		user.UserImage,
		user.UpdatedAt,
		user.Username,
	)
	if isUniqueViolation(err) {
		return shared.NewValidationError("email", "email is already taken")
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("user", user.Username)
	}

	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, username, hash string) error {
	query := "UPDATE users SET password = ?, updated_at = ? WHERE username = ?"

	rows, err := exec(ctx, r.db, query, hash, now(), username)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("user", username)
	}
	return nil
}

// SaveToken stores the OAuth2 token pair. An empty refresh token keeps the stored one.
func (r *UserRepository) SaveToken(ctx context.Context, username, access, refresh string, expiry time.Time) error {
	query := `
		UPDATE users
		SET access_token = ?, refresh_token = COALESCE(NULLIF(?, ''), refresh_token), token_expiry = ?, updated_at = ?
		WHERE username = ?
	`

	var exp any
	if !expiry.IsZero() {
		exp = expiry.UTC()
	}

	rows, err := exec(ctx, r.db, query, access, refresh, exp, now(), username)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("user", username)
	}
	return nil
}

// LinkProfile stores the remote profile of a linked account. Empty values leave the stored ones unchanged.
func (r *UserRepository) LinkProfile(ctx context.Context, username, spotifyID, displayName, image, market string) error {
	query := `
		UPDATE users
		SET spotify_user_id = COALESCE(NULLIF(?, ''), spotify_user_id),
			spotify_display_name = COALESCE(NULLIF(?, ''), spotify_display_name),
			user_image = COALESCE(NULLIF(?, ''), user_image),
			market = COALESCE(NULLIF(?, ''), market),
			updated_at = ?
		WHERE username = ?
	`

	rows, err := exec(ctx, r.db, query, spotifyID, displayName, image, market, now(), username)
	if err != nil {
		return fmt.Errorf("failed to link profile: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("user", username)
	}
	return nil
}

// List retrieves all users ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at ASC, username ASC"

	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}
