// Package credential builds outbound authentication headers for a delivery
// target, caching short-lived OAuth2 client-credentials tokens.
package credential

import (
	"fmt"
	"strings"
)

// Type names a supported authentication scheme.
type Type string

const (
	TypeAPIKey                  Type = "api_key"
	TypeBearerToken             Type = "bearer_token"
	TypeOAuth2ClientCredentials Type = "oauth2_client_credentials"
)

// DefaultAPIKeyHeader is used when an api_key credential sets no header_name.
const DefaultAPIKeyHeader = "X-API-Key"

// Credential is a named authentication configuration attached to a route.
//
// Config keys by type:
//   - api_key: api_key, header_name
//   - bearer_token: token
//   - oauth2_client_credentials: token_url, client_id, client_secret, scope
type Credential struct {
	// ID keys the token cache. Two routes sharing a credential share its token.
	ID     string         `json:"id"          yaml:"id"`
	Type   Type           `json:"auth_type"   yaml:"auth_type"`
	Config map[string]any `json:"auth_config" yaml:"auth_config"`
}

// AuthError reports a misconfigured credential or a failed token exchange.
type AuthError struct {
	CredentialID string
	Type         Type
	Reason       string
	Err          error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("credential %q (%s): %s", e.CredentialID, e.Type, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// str reads a config value as a trimmed string. Non-string scalars are
// formatted with fmt.
func (c *Credential) str(key string) string {
	v, ok := c.Config[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Credential) missing(key string) *AuthError {
	return &AuthError{CredentialID: c.ID, Type: c.Type, Reason: "missing " + key}
}
