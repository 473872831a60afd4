// Package service implements the credential lifecycle: registration,
// password login, refresh token rotation with replay detection, and the
// account administration built on top of it.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/apperr"
	"github.com/iliyamo/restful-api/internal/metrics"
	"github.com/iliyamo/restful-api/internal/model"
	"github.com/iliyamo/restful-api/internal/queue"
	"github.com/iliyamo/restful-api/internal/repository"
	"github.com/iliyamo/restful-api/internal/security"
	"github.com/iliyamo/restful-api/internal/validation"
)

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// TokenPair is returned by Login and Refresh. Expiries are UTC.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// Deps groups the collaborators of CredentialService.
type Deps struct {
	Accounts   *repository.AccountRepo
	Tokens     *repository.TokenRepo
	Hasher     *security.PasswordHasher
	Issuer     *security.TokenIssuer
	Validator  *validation.Validator
	Events     queue.Publisher
	RefreshTTL time.Duration
	Log        zerolog.Logger
}

// CredentialService is the only writer of accounts and refresh tokens.
type CredentialService struct {
	accounts   *repository.AccountRepo
	tokens     *repository.TokenRepo
	hasher     *security.PasswordHasher
	issuer     *security.TokenIssuer
	validator  *validation.Validator
	events     queue.Publisher
	refreshTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewCredentialService(d Deps) *CredentialService {
	events := d.Events
	if events == nil {
		events = queue.NewLogPublisher(d.Log)
	}
	v := d.Validator
	if v == nil {
		v = validation.New()
	}
	return &CredentialService{
		accounts:   d.Accounts,
		tokens:     d.Tokens,
		hasher:     d.Hasher,
		issuer:     d.Issuer,
		validator:  v,
		events:     events,
		refreshTTL: d.RefreshTTL,
		log:        d.Log.With().Str("component", "credentials").Logger(),
		now:        time.Now,
	}
}

// clock returns the current UTC time at second precision, which is what
// both supported databases store.
func (s *CredentialService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// Register creates an account with role User. Username and email must be
// unused; the email is compared and stored lower-cased.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (model.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validator.Validate(in); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return model.Account{}, err
	}

	userTaken, emailTaken, err := s.accounts.Taken(ctx, in.Username, in.Email)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "error").Inc()
		return model.Account{}, err
	}
	switch {
	case userTaken:
		metrics.AuthAttemptsTotal.WithLabelValues("register", "conflict").Inc()
		return model.Account{}, apperr.Conflict("username already taken", nil)
	case emailTaken:
		metrics.AuthAttemptsTotal.WithLabelValues("register", "conflict").Inc()
		return model.Account{}, apperr.Conflict("email already registered", nil)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return model.Account{}, apperr.Validation("password is too long")
		}
		return model.Account{}, err
	}

	acc, err := s.accounts.Create(ctx, model.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    s.clock(),
	})
	if err != nil {
		// a concurrent registration can still win the unique index
		outcome := "error"
		if errors.Is(err, apperr.ErrConflict) {
			outcome = "conflict"
		}
		metrics.AuthAttemptsTotal.WithLabelValues("register", outcome).Inc()
		return model.Account{}, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.log.Info().Int64("account_id", acc.ID).Str("username", acc.Username).Msg("account registered")
	s.publish(ctx, queue.AccountRegistered(acc.ID, acc.Username, acc.CreatedAt))
	return acc.Public(), nil
}

// Login verifies a password against the account matching usernameOrEmail
// and starts a new refresh token family. Every failure returns the same
// apperr.ErrInvalidCredentials.
func (s *CredentialService) Login(ctx context.Context, usernameOrEmail, password string) (TokenPair, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return TokenPair{}, errInvalidCredentials
	}

	acc, err := s.accounts.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
			s.log.Warn().Str("login", login).Msg("login failed")
			return TokenPair{}, errInvalidCredentials
		}
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return TokenPair{}, err
	}
	if !s.hasher.Verify(acc.PasswordHash, password) {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		s.log.Warn().Str("login", login).Msg("login failed")
		return TokenPair{}, errInvalidCredentials
	}

	pair, err := s.startFamily(ctx, acc)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return TokenPair{}, err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	s.log.Info().Int64("account_id", acc.ID).Msg("login succeeded")
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor, so it can be
// used at most once. Presenting an already revoked token revokes its whole
// family.
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	raw := strings.TrimSpace(refreshToken)
	if raw == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("refresh", "invalid").Inc()
		return TokenPair{}, errInvalidRefresh
	}

	secret, err := security.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}
	now := s.clock()
	next := model.RefreshToken{
		TokenHash: security.HashRefresh(secret),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	_, stored, err := s.tokens.Rotate(ctx, security.HashRefresh(raw), next, now)
	if err != nil {
		var reuse *repository.ReuseError
		switch {
		case errors.As(err, &reuse):
			metrics.RefreshReuseTotal.Inc()
			metrics.AuthAttemptsTotal.WithLabelValues("refresh", "invalid").Inc()
			s.log.Warn().
				Int64("account_id", reuse.AccountID).
				Str("family_id", reuse.FamilyID).
				Int64("revoked", reuse.Revoked).
				Msg("refresh token reuse detected, family revoked")
			s.publish(ctx, queue.RefreshReuseDetected(reuse.AccountID, reuse.FamilyID, reuse.Revoked, now))
			return TokenPair{}, errInvalidRefresh
		case errors.Is(err, apperr.ErrInvalidRefreshToken):
			metrics.AuthAttemptsTotal.WithLabelValues("refresh", "invalid").Inc()
			s.log.Warn().Msg("refresh rejected")
			return TokenPair{}, errInvalidRefresh
		}
		metrics.AuthAttemptsTotal.WithLabelValues("refresh", "error").Inc()
		return TokenPair{}, err
	}

	// Role changes since login are picked up here.
	acc, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, errInvalidRefresh
		}
		return TokenPair{}, err
	}
	access, accessExp, err := s.issuer.Issue(acc)
	if err != nil {
		return TokenPair{}, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("refresh", "success").Inc()
	return TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          secret,
		RefreshTokenExpiresAt: stored.ExpiresAt,
	}, nil
}

// Logout revokes one refresh token. Unknown or already revoked tokens are
// reported as apperr.ErrInvalidRefreshToken.
func (s *CredentialService) Logout(ctx context.Context, refreshToken string) error {
	raw := strings.TrimSpace(refreshToken)
	if raw == "" {
		return errInvalidRefresh
	}
	ok, err := s.tokens.RevokeByHash(ctx, security.HashRefresh(raw), s.clock())
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidRefresh
	}
	metrics.AuthAttemptsTotal.WithLabelValues("logout", "success").Inc()
	return nil
}

// LogoutAll revokes every active refresh token of accountID.
func (s *CredentialService) LogoutAll(ctx context.Context, accountID int64) (int64, error) {
	n, err := s.tokens.RevokeAllForAccount(ctx, accountID, s.clock())
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("account_id", accountID).Int64("revoked", n).Msg("all sessions revoked")
	return n, nil
}

// AssignRole changes the role of an account. Tokens already issued keep
// the old role until they expire or are refreshed.
func (s *CredentialService) AssignRole(ctx context.Context, accountID int64, role model.Role) (model.Account, error) {
	if !role.Valid() {
		return model.Account{}, apperr.Validation("role must be one of: User Moderator Admin")
	}
	acc, err := s.accounts.Update(ctx, accountID, model.Account{Role: role})
	if err != nil {
		return model.Account{}, err
	}
	s.log.Info().Int64("account_id", accountID).Str("role", string(role)).Msg("role assigned")
	return acc.Public(), nil
}

// DeleteAccount removes an account; its refresh tokens go with it.
func (s *CredentialService) DeleteAccount(ctx context.Context, accountID int64) (model.Account, error) {
	acc, err := s.accounts.Delete(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	s.log.Info().Int64("account_id", accountID).Msg("account deleted")
	return acc.Public(), nil
}

// PurgeExpired deletes refresh tokens past their expiry.
func (s *CredentialService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired refresh tokens purged")
	}
	return n, nil
}

// startFamily issues an access token and the first refresh token of a new
// family for acc.
func (s *CredentialService) startFamily(ctx context.Context, acc model.Account) (TokenPair, error) {
	access, accessExp, err := s.issuer.Issue(acc)
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}
	now := s.clock()
	rt := model.RefreshToken{
		AccountID: acc.ID,
		TokenHash: security.HashRefresh(secret),
		FamilyID:  uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if _, err := s.tokens.Store(ctx, rt); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          secret,
		RefreshTokenExpiresAt: rt.ExpiresAt,
	}, nil
}

func (s *CredentialService) publish(ctx context.Context, ev queue.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Msg("publish audit event failed")
	}
}

var (
	errInvalidCredentials = &apperr.Error{Kind: apperr.ErrInvalidCredentials, Msg: "invalid username/email or password"}
	errInvalidRefresh     = &apperr.Error{Kind: apperr.ErrInvalidRefreshToken, Msg: "invalid refresh token"}
)
