package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/scope"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLocalDisabled      = errors.New("auth: local authentication disabled")
	ErrOIDCDisabled       = errors.New("auth: oidc authentication disabled")
	ErrStateMismatch      = errors.New("auth: unknown or expired login state")
)

const (
	refreshKeyPrefix   = "teamlens:refresh:"
	oidcStateKeyPrefix = "teamlens:oidcstate:"
	oidcStateTTL       = 10 * time.Minute
)

// Account is an authenticated dashboard user.
type Account struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Teams []string `json:"teams,omitempty"`
}

// Identity maps the account onto the scope model.
func (a Account) Identity() scope.Identity {
	role, ok := scope.ParseRole(a.Role)
	if !ok {
		role = scope.RoleMember
	}
	return scope.Identity{UserID: a.ID, Role: role, ManagedTeamIDs: a.Teams}
}

// Service owns login, token refresh, and the OIDC flow. Refresh token ids
// and OIDC state live in redis so restarts do not strand sessions.
type Service struct {
	cfg    config.AuthConfig
	tokens *TokenManager
	oidc   *OIDCProvider
	redis  *redis.Client
}

func NewService(ctx context.Context, cfg config.AuthConfig, redisClient *redis.Client) (*Service, error) {
	tokens, err := NewTokenManager(cfg.Session.JWTSecret, cfg.Session.AccessTokenTTL, cfg.Session.RefreshTokenTTL, "teamlens")
	if err != nil {
		return nil, err
	}

	var provider *OIDCProvider
	if cfg.OIDC.Enabled {
		provider, err = NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return nil, err
		}
	}

	return &Service{cfg: cfg, tokens: tokens, oidc: provider, redis: redisClient}, nil
}

// Tokens exposes the manager for request middleware.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// AuthenticateLocal verifies a statically provisioned account's password and
// mints a token pair.
func (s *Service) AuthenticateLocal(ctx context.Context, email, password string) (*TokenPair, Account, error) {
	if !s.cfg.Local.Enabled {
		return nil, Account{}, ErrLocalDisabled
	}

	user, ok := s.lookupLocal(email)
	if !ok {
		return nil, Account{}, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return nil, Account{}, ErrInvalidCredentials
	}

	account := Account{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role, Teams: user.Teams}
	pair, err := s.mint(ctx, account)
	if err != nil {
		return nil, Account{}, err
	}
	return pair, account, nil
}

// Refresh rotates a refresh token into a new pair. The old token id is
// invalidated before the new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, Account, error) {
	sub, jti, err := s.tokens.AuthorizeRefreshToken(refreshToken)
	if err != nil {
		return nil, Account{}, err
	}

	stored, err := s.redis.GetDel(ctx, refreshKeyPrefix+jti).Bytes()
	if err != nil {
		return nil, Account{}, ErrInvalidToken
	}
	var account Account
	if err := json.Unmarshal(stored, &account); err != nil || account.ID != sub {
		return nil, Account{}, ErrInvalidToken
	}

	pair, err := s.mint(ctx, account)
	if err != nil {
		return nil, Account{}, err
	}
	return pair, account, nil
}

// Logout drops the refresh token so it cannot be rotated again.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if _, jti, err := s.tokens.AuthorizeRefreshToken(refreshToken); err == nil {
		s.redis.Del(ctx, refreshKeyPrefix+jti)
	}
}

// BeginOIDC starts the authorization-code flow, parking state and nonce in
// redis until the callback.
func (s *Service) BeginOIDC(ctx context.Context) (string, error) {
	if s.oidc == nil {
		return "", ErrOIDCDisabled
	}
	state, err := GenerateState(32)
	if err != nil {
		return "", err
	}
	nonce, err := GenerateState(32)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, oidcStateKeyPrefix+state, nonce, oidcStateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oidc state: %w", err)
	}
	return s.oidc.AuthCodeURL(state, nonce), nil
}

// CompleteOIDC finishes the flow and mints a token pair for the mapped
// identity.
func (s *Service) CompleteOIDC(ctx context.Context, state, code string) (*TokenPair, Account, error) {
	if s.oidc == nil {
		return nil, Account{}, ErrOIDCDisabled
	}
	nonce, err := s.redis.GetDel(ctx, oidcStateKeyPrefix+state).Result()
	if err != nil {
		return nil, Account{}, ErrStateMismatch
	}

	identity, err := s.oidc.Exchange(ctx, code, nonce)
	if err != nil {
		return nil, Account{}, err
	}

	account := Account{
		ID:    identity.Subject,
		Email: identity.Email,
		Name:  identity.Name,
		Role:  string(identity.Role),
		Teams: identity.Teams,
	}
	pair, err := s.mint(ctx, account)
	if err != nil {
		return nil, Account{}, err
	}
	return pair, account, nil
}

func (s *Service) mint(ctx context.Context, account Account) (*TokenPair, error) {
	pair, err := s.tokens.Generate(account.Identity(), account.Email)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("encode session account: %w", err)
	}
	ttl := time.Until(pair.RefreshExpiresAt)
	if err := s.redis.Set(ctx, refreshKeyPrefix+pair.RefreshTokenID, payload, ttl).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

func (s *Service) lookupLocal(email string) (config.LocalUser, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.cfg.Local.Users {
		if strings.ToLower(u.Email) == email {
			return u, true
		}
	}
	return config.LocalUser{}, false
}
