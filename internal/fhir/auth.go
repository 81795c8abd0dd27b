package fhir

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"consentsync/internal/platform/config"
	"consentsync/internal/platform/httpclient"
	"consentsync/internal/secrets"
	dErrors "consentsync/pkg/domain-errors"
)

// HeaderIntrospect carries base64(client_id:client_secret) alongside the
// bearer token on every FHIR call.
const HeaderIntrospect = "x-introspect-basic-authorization-header"

// Access selects the credential pair used for a call.
type Access uint8

const (
	AccessRead Access = iota
	// AccessWrite selects the write-scoped client that every tenant secret
	// carries alongside the read client. The sync itself only reads.
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "write"
	}
	return "read"
}

// Credentials is one client identity of the token exchange.
type Credentials struct {
	ClientID string
	Scope    string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource exchanges tenant client credentials for bearer tokens and caches
// them until shortly before expiry. Concurrent requests for the same tenant
// and scope share one exchange.
type TokenSource struct {
	http   *httpclient.Client
	cache  TokenCache
	read   Credentials
	write  Credentials
	skew   time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewTokenSource builds a TokenSource. A nil cache disables caching.
func NewTokenSource(client *httpclient.Client, cache TokenCache, cfg config.FHIRConfig, logger *slog.Logger) *TokenSource {
	if cache == nil {
		cache = noCache{}
	}
	return &TokenSource{
		http:   client,
		cache:  cache,
		read:   Credentials{ClientID: cfg.ReadClientID, Scope: cfg.ReadScope},
		write:  Credentials{ClientID: cfg.WriteClientID, Scope: cfg.WriteScope},
		skew:   cfg.TokenSkew,
		logger: logger,
	}
}

func (s *TokenSource) credentials(conn secrets.Connection, access Access) (Credentials, string) {
	if access == AccessWrite {
		return s.write, conn.WriteSecret
	}
	return s.read, conn.ReadSecret
}

// IntrospectHeader returns the value of HeaderIntrospect for access.
func (s *TokenSource) IntrospectHeader(conn secrets.Connection, access Access) string {
	creds, secret := s.credentials(conn, access)
	return base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + secret))
}

// Token returns a bearer token for the tenant. Exchange failures are returned
// as-is; retrying is the caller's decision.
func (s *TokenSource) Token(ctx context.Context, tenantID string, conn secrets.Connection, access Access) (string, error) {
	creds, secret := s.credentials(conn, access)
	key := cacheKey(tenantID, creds)

	if token, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "token cache read failed", "tenant_id", tenantID, "error", err.Error())
	} else if ok {
		return token, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.exchange(ctx, tenantID, conn.LoginURL, creds, secret, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token for the tenant so the next call exchanges
// credentials again. Used when the FHIR server rejects a token it issued.
func (s *TokenSource) Invalidate(ctx context.Context, tenantID string, access Access) {
	creds, _ := s.credentials(secrets.Connection{}, access)
	key := cacheKey(tenantID, creds)
	s.group.Forget(key)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "token cache eviction failed", "tenant_id", tenantID, "error", err.Error())
	}
}

func (s *TokenSource) exchange(ctx context.Context, tenantID, loginURL string, creds Credentials, secret, key string) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"scope":         {creds.Scope},
		"client_id":     {creds.ClientID},
		"client_secret": {secret},
	}
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	resp, err := s.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    loginURL,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return "", httpclient.ToDomainError(err, "retrieve FHIR bearer token")
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil || tok.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeInvalidData, "token endpoint returned no access_token")
	}

	if ttl := s.ttl(tok); ttl > 0 {
		if err := s.cache.Set(ctx, key, tok.AccessToken, ttl); err != nil {
			s.logger.WarnContext(ctx, "token cache write failed", "tenant_id", tenantID, "error", err.Error())
		}
	}
	s.logger.DebugContext(ctx, "retrieved FHIR bearer token", "tenant_id", tenantID, "scope", creds.Scope)
	return tok.AccessToken, nil
}

// ttl prefers expires_in and falls back to the JWT exp claim. Tokens that
// expire within the skew are not cached.
func (s *TokenSource) ttl(tok tokenResponse) time.Duration {
	var ttl time.Duration
	if tok.ExpiresIn > 0 {
		ttl = time.Duration(tok.ExpiresIn) * time.Second
	} else if exp, ok := jwtExpiry(tok.AccessToken); ok {
		ttl = time.Until(exp)
	}
	return ttl - s.skew
}

// jwtExpiry reads exp without verifying the signature; the token is only
// inspected to size the cache entry.
func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func cacheKey(tenantID string, creds Credentials) string {
	return fmt.Sprintf("fhir-token:%s:%s:%s", tenantID, creds.ClientID, creds.Scope)
}
