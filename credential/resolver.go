package credential

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// TokenTimeout bounds one token exchange.
	TokenTimeout = 10 * time.Second

	defaultExpiresIn = 3600
	expirySkew       = 30
	defaultCacheSize = 1024
)

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// Resolver turns credentials into request headers. It is safe for
// concurrent use; concurrent cache misses for one credential share a single
// token exchange.
type Resolver struct {
	client *http.Client
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, cachedToken]
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for token exchanges.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithClock replaces the resolver's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the resolver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver with an empty token cache.
func NewResolver(opts ...Option) *Resolver {
	cache, err := lru.New[string, cachedToken](defaultCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}

	r := &Resolver{
		client: &http.Client{Timeout: TokenTimeout},
		now:    time.Now,
		logger: slog.Default(),
		cache:  cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildHeaders returns the headers that authenticate a request with cred.
// A nil credential needs no headers.
func (r *Resolver) BuildHeaders(ctx context.Context, cred *Credential) (map[string]string, error) {
	if cred == nil {
		return map[string]string{}, nil
	}

	switch cred.Type {
	case TypeAPIKey:
		key := cred.str("api_key")
		if key == "" {
			return nil, cred.missing("api_key")
		}
		header := cred.str("header_name")
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		return map[string]string{header: key}, nil

	case TypeBearerToken:
		token := cred.str("token")
		if token == "" {
			return nil, cred.missing("token")
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil

	case TypeOAuth2ClientCredentials:
		token, err := r.clientCredentialsToken(ctx, cred)
		if err != nil {
			return nil, err
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil

	default:
		return nil, &AuthError{CredentialID: cred.ID, Type: cred.Type, Reason: "unsupported auth type " + strconv.Quote(string(cred.Type))}
	}
}

// Invalidate drops the cached token for cred, so the next BuildHeaders
// exchanges a new one. Static credentials have nothing to drop.
func (r *Resolver) Invalidate(cred *Credential) {
	if cred == nil || cred.Type != TypeOAuth2ClientCredentials {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(tokenCacheKey(cred))
}

// tokenCacheKey is the credential ID, or the token endpoint and client for
// an anonymous credential.
func tokenCacheKey(cred *Credential) string {
	if cred.ID != "" {
		return cred.ID
	}
	return cred.str("token_url") + "|" + cred.str("client_id")
}

func (r *Resolver) clientCredentialsToken(ctx context.Context, cred *Credential) (string, error) {
	cfg := clientcredentials.Config{
		TokenURL:     cred.str("token_url"),
		ClientID:     cred.str("client_id"),
		ClientSecret: cred.str("client_secret"),
		Scopes:       strings.Fields(cred.str("scope")),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	switch {
	case cfg.TokenURL == "":
		return "", cred.missing("token_url")
	case cfg.ClientID == "":
		return "", cred.missing("client_id")
	case cfg.ClientSecret == "":
		return "", cred.missing("client_secret")
	}

	key := tokenCacheKey(cred)
	if tok, ok := r.cached(key); ok {
		return tok, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if tok, ok := r.cached(key); ok {
			return tok, nil
		}
		return r.exchange(ctx, cred, key, &cfg)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache.Get(key)
	if !ok {
		return "", false
	}
	if !r.now().Before(entry.expiresAt) {
		r.cache.Remove(key)
		return "", false
	}
	return entry.accessToken, true
}

func (r *Resolver) exchange(ctx context.Context, cred *Credential, key string, cfg *clientcredentials.Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, TokenTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", &AuthError{CredentialID: cred.ID, Type: cred.Type, Reason: "token exchange failed", Err: err}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{CredentialID: cred.ID, Type: cred.Type, Reason: "token response missing access_token"}
	}

	now := r.now()
	expiresIn := expiresInSeconds(tok, now)
	ttl := max(expirySkew, expiresIn-expirySkew)

	r.mu.Lock()
	r.cache.Add(key, cachedToken{
		accessToken: tok.AccessToken,
		expiresAt:   now.Add(time.Duration(ttl) * time.Second),
	})
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "oauth2 token cached",
		"credential_id", cred.ID,
		"ttl_seconds", ttl,
	)

	return tok.AccessToken, nil
}

// expiresInSeconds reads expires_in from the raw token response, falling
// back to the parsed expiry and then to one hour.
func expiresInSeconds(tok *oauth2.Token, now time.Time) int {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}

	if !tok.Expiry.IsZero() {
		return int(math.Round(tok.Expiry.Sub(now).Seconds()))
	}
	return defaultExpiresIn
}
