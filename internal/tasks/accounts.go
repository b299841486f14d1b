package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/repositories"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// CodeExchanger trades an authorization code for a token pair.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
}

// Accounts manages local users and their link to the remote service.
type Accounts struct {
	db     *sqlx.DB
	tokens CodeExchanger
	remote services.Service
	logger *log.Logger
}

// NewAccounts creates [Accounts]. remote is used for the profile fetch after linking.
func NewAccounts(db *sqlx.DB, tokens CodeExchanger, remote services.Service, logger *log.Logger) *Accounts {
	return &Accounts{db: db, tokens: tokens, remote: remote, logger: logger}
}

// Signup creates a local user with a bcrypt-hashed password.
func (a *Accounts) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	if err := shared.Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: req.Username, Email: req.Email, Password: string(hash)}
	if err := repositories.NewUserRepository(a.db).Create(ctx, user); err != nil {
		return nil, err
	}

	a.logger.Info("user created", "user", user.Username)
	return user, nil
}

// Login checks username and password. A wrong password and an unknown user both fail with
// [shared.ErrInvalidCredentials].
func (a *Accounts) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := repositories.NewUserRepository(a.db).Get(ctx, username)
	if errors.Is(err, shared.ErrUserNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one. next must equal confirm.
func (a *Accounts) ChangePassword(ctx context.Context, username, current, next, confirm string) error {
	if next != confirm {
		return shared.NewValidationError("confirm", "passwords do not match")
	}
	if len(next) < 6 {
		return shared.NewValidationError("password", "Password must be at least 6 characters")
	}

	if _, err := a.Login(ctx, username, current); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return repositories.NewUserRepository(a.db).UpdatePassword(ctx, username, string(hash))
}

// User retrieves a user by username.
func (a *Accounts) User(ctx context.Context, username string) (*models.User, error) {
	return repositories.NewUserRepository(a.db).Get(ctx, username)
}

// LinkSpotify completes the authorization code flow for username and stores the token pair.
//
// The remote profile is then fetched on a best-effort basis; a failure there is logged.
func (a *Accounts) LinkSpotify(ctx context.Context, username, code string) (*models.User, error) {
	users := repositories.NewUserRepository(a.db)
	if _, err := users.Get(ctx, username); err != nil {
		return nil, err
	}

	token, err := a.tokens.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := users.SaveToken(ctx, username, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		return nil, err
	}

	if a.remote != nil {
		creds := services.NewCredentials(username, token, a.persistToken(username))
		profile, err := a.remote.Me(services.WithCredentials(ctx, creds))
		if err != nil {
			a.logger.Warn("failed to fetch remote profile", "user", username, "err", err)
		} else if err := users.LinkProfile(ctx, username, profile.ID, profile.DisplayName, profile.Image(), profile.Country); err != nil {
			a.logger.Warn("failed to store remote profile", "user", username, "err", err)
		}
	}

	a.logger.Info("spotify account linked", "user", username)
	return users.Get(ctx, username)
}

// Credentials builds request-scoped credentials from the user's stored tokens. Refreshed tokens are
// written back to the user.
func (a *Accounts) Credentials(ctx context.Context, username string) (*services.Credentials, error) {
	user, err := repositories.NewUserRepository(a.db).Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.Linked() {
		return nil, shared.ErrNotLinked
	}

	token := &oauth2.Token{AccessToken: *user.AccessToken, TokenType: "Bearer"}
	if user.RefreshToken != nil {
		token.RefreshToken = *user.RefreshToken
	}
	if user.TokenExpiry != nil {
		token.Expiry = *user.TokenExpiry
	}
	return services.NewCredentials(username, token, a.persistToken(username)), nil
}

// WithCredentials returns ctx carrying the credentials of username.
func (a *Accounts) WithCredentials(ctx context.Context, username string) (context.Context, error) {
	creds, err := a.Credentials(ctx, username)
	if err != nil {
		return nil, err
	}
	return services.WithCredentials(ctx, creds), nil
}

func (a *Accounts) persistToken(username string) func(context.Context, *oauth2.Token) error {
	return func(ctx context.Context, token *oauth2.Token) error {
		return repositories.NewUserRepository(a.db).SaveToken(ctx, username, token.AccessToken, token.RefreshToken, token.Expiry)
	}
}
