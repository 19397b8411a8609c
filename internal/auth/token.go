package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teamlens/teamlens/internal/scope"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// TokenPair represents access and refresh tokens with expiry metadata.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	RefreshTokenID   string
}

// TokenManager mints and verifies session JWTs. Access tokens carry the
// caller's role and managed team ids so every request can rebuild its
// scope.Identity without a directory lookup.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret required")
	}
	if accessTTL <= 0 {
		return nil, errors.New("access ttl must be > 0")
	}
	if refreshTTL <= 0 {
		return nil, errors.New("refresh ttl must be > 0")
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
	}, nil
}

func (tm *TokenManager) Generate(id scope.Identity, email string) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(tm.accessTTL)
	refreshExp := now.Add(tm.refreshTTL)

	accessClaims := jwt.MapClaims{
		"sub":   id.UserID,
		"email": email,
		"role":  string(id.Role),
		"iat":   now.Unix(),
		"exp":   accessExp.Unix(),
		"iss":   tm.issuer,
		"typ":   "access",
		"jti":   uuid.NewString(),
	}
	if len(id.ManagedTeamIDs) > 0 {
		accessClaims["teams"] = id.ManagedTeamIDs
	}
	accessToken, err := tm.sign(accessClaims)
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refreshClaims := jwt.MapClaims{
		"sub": id.UserID,
		"iat": now.Unix(),
		"iss": tm.issuer,
		"exp": refreshExp.Unix(),
		"typ": "refresh",
		"jti": refreshID,
	}
	refreshToken, err := tm.sign(refreshClaims)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		RefreshTokenID:   refreshID,
	}, nil
}

// AuthorizeAccessToken verifies an access token and rebuilds the identity it
// carries.
func (tm *TokenManager) AuthorizeAccessToken(raw string) (scope.Identity, string, error) {
	claims, err := tm.parse(raw, "access")
	if err != nil {
		return scope.Identity{}, "", err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return scope.Identity{}, "", ErrInvalidToken
	}
	roleRaw, _ := claims["role"].(string)
	role, ok := scope.ParseRole(roleRaw)
	if !ok {
		return scope.Identity{}, "", ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	var teams []string
	if rawTeams, ok := claims["teams"].([]any); ok {
		for _, t := range rawTeams {
			if s, ok := t.(string); ok && s != "" {
				teams = append(teams, s)
			}
		}
	}

	return scope.Identity{UserID: sub, Role: role, ManagedTeamIDs: teams}, email, nil
}

// AuthorizeRefreshToken verifies a refresh token and returns its subject and
// token id.
func (tm *TokenManager) AuthorizeRefreshToken(raw string) (string, string, error) {
	claims, err := tm.parse(raw, "refresh")
	if err != nil {
		return "", "", err
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return "", "", ErrInvalidToken
	}
	return sub, jti, nil
}

func (tm *TokenManager) parse(raw, typ string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claimed, _ := claims["typ"].(string); claimed != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (tm *TokenManager) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// GenerateState returns a random URL-safe value for OAuth state and nonce
// parameters.
func GenerateState(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
