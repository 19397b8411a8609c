package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	oidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/scope"
)

// OIDCIdentity is the outcome of a completed authorization-code exchange:
// the provider claims mapped onto a dashboard role and managed team set.
type OIDCIdentity struct {
	Subject string
	Email   string
	Name    string
	Role    scope.Role
	Teams   []string
}

// OIDCProvider handles the authorization-code flow and maps provider role
// claims onto dashboard roles. Admin and observer role names come from
// configuration; anything else is an ordinary member.
type OIDCProvider struct {
	cfg           config.OIDCConfig
	provider      *oidc.Provider
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	rolesClaim    string
	teamsClaim    string
	adminRoles    map[string]struct{}
	observerRoles map[string]struct{}
}

func NewOIDCProvider(ctx context.Context, cfg config.OIDCConfig) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	return &OIDCProvider{
		cfg:           cfg,
		provider:      provider,
		oauth2Config:  oauth2Config,
		verifier:      verifier,
		rolesClaim:    strings.TrimSpace(cfg.RolesClaim),
		teamsClaim:    strings.TrimSpace(cfg.TeamsClaim),
		adminRoles:    normalizeRoleSet(cfg.AdminRoles),
		observerRoles: normalizeRoleSet(cfg.ObserverRoles),
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state string, nonce string) string {
	opts := []oauth2.AuthCodeOption{}
	if nonce != "" {
		opts = append(opts, oidc.Nonce(nonce))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code string, expectedNonce string) (*OIDCIdentity, error) {
	timeout := p.cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	exchangeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	oauth2Token, err := p.oauth2Config.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange auth code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("oidc: missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(exchangeCtx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	if expectedNonce != "" && idToken.Nonce != expectedNonce {
		return nil, errors.New("oidc: nonce mismatch")
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id token claims: %w", err)
	}

	var rawClaims map[string]any
	if err := idToken.Claims(&rawClaims); err != nil {
		return nil, fmt.Errorf("parse raw id token claims: %w", err)
	}

	identity := &OIDCIdentity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Teams:   extractStringsFromClaims(rawClaims, p.teamsClaim),
	}

	providerRoles := extractStringsFromClaims(rawClaims, p.rolesClaim)
	if identity.Email == "" || (p.rolesClaim != "" && len(providerRoles) == 0) {
		userClaims, err := p.populateFromUserInfo(exchangeCtx, oauth2Token, identity)
		if err != nil {
			return nil, err
		}
		if len(providerRoles) == 0 {
			providerRoles = extractStringsFromClaims(userClaims, p.rolesClaim)
		}
		if len(identity.Teams) == 0 {
			identity.Teams = extractStringsFromClaims(userClaims, p.teamsClaim)
		}
	}

	identity.Role = p.mapRole(providerRoles)
	if identity.Role != scope.RoleObserver {
		identity.Teams = nil
	}
	return identity, nil
}

// mapRole picks the strongest dashboard role the provider roles grant.
func (p *OIDCProvider) mapRole(providerRoles []string) scope.Role {
	if hasMatchingRole(providerRoles, p.adminRoles) {
		return scope.RoleAdmin
	}
	if hasMatchingRole(providerRoles, p.observerRoles) {
		return scope.RoleObserver
	}
	return scope.RoleMember
}

func (p *OIDCProvider) populateFromUserInfo(ctx context.Context, token *oauth2.Token, identity *OIDCIdentity) (map[string]any, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}

	var claims map[string]any
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse userinfo claims: %w", err)
	}

	if identity.Email == "" {
		email, _ := claims["email"].(string)
		if email == "" {
			return nil, errors.New("oidc: email not present in claims")
		}
		identity.Email = email
	}

	if identity.Name == "" {
		if name, ok := claims["name"].(string); ok && name != "" {
			identity.Name = name
		}
	}

	return claims, nil
}

func extractStringsFromClaims(claims map[string]any, field string) []string {
	if len(claims) == 0 || strings.TrimSpace(field) == "" {
		return nil
	}
	value, ok := claims[field]
	if !ok || value == nil {
		return nil
	}
	var out []string
	switch v := value.(type) {
	case string:
		if s := normalizeClaim(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if n := normalizeClaim(s); n != "" {
					out = append(out, n)
				}
			}
		}
	case []string:
		for _, s := range v {
			if n := normalizeClaim(s); n != "" {
				out = append(out, n)
			}
		}
	}
	return dedupe(out)
}

func normalizeClaim(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func normalizeRoleSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := normalizeClaim(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func hasMatchingRole(roles []string, set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for _, role := range roles {
		if _, ok := set[role]; ok {
			return true
		}
	}
	return false
}
