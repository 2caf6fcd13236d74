// Package auth covers both directions of credentials: bearer tokens
// accepted on the inbound API and keys attached to outbound webhook calls.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/shawn/tankwatch/internal/webhook"
)

// DefaultOwner is used when no tokens are configured.
const DefaultOwner = "default"

type ctxKey struct{}

// WithOwner returns ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// OwnerFrom returns the authenticated owner, or "" outside an
// authenticated request.
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ctxKey{}).(string)
	return owner
}

// Authenticator maps bearer tokens to owners. The token set can be swapped
// while requests are in flight.
type Authenticator struct {
	tokens atomic.Pointer[map[string]string]
}

// NewAuthenticator creates an Authenticator for tokens (token -> owner).
// With an empty set any non-empty bearer token is accepted as DefaultOwner.
func NewAuthenticator(tokens map[string]string) *Authenticator {
	a := &Authenticator{}
	a.SetTokens(tokens)
	return a
}

// SetTokens replaces the accepted token set.
func (a *Authenticator) SetTokens(tokens map[string]string) {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	a.tokens.Store(&cp)
}

// Owner returns the owner for token.
func (a *Authenticator) Owner(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	tokens := *a.tokens.Load()
	if len(tokens) == 0 {
		return DefaultOwner, true
	}
	owner, ok := tokens[token]
	return owner, ok
}

// Middleware rejects requests without a known bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		owner, ok := a.Owner(token)
		if !ok {
			slog.Warn("rejected bearer token", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func bearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CredentialProvider supplies the key attached to outbound calls for an
// integration. An empty key means the call is sent unauthenticated.
type CredentialProvider interface {
	Credential(ctx context.Context, integration webhook.Integration) (string, error)
}

// KeyRing is a CredentialProvider backed by a swappable in-memory map.
type KeyRing struct {
	keys atomic.Pointer[map[webhook.Integration]string]
}

func NewKeyRing(keys map[webhook.Integration]string) *KeyRing {
	k := &KeyRing{}
	k.Set(keys)
	return k
}

// Set replaces every key.
func (k *KeyRing) Set(keys map[webhook.Integration]string) {
	cp := make(map[webhook.Integration]string, len(keys))
	for i, v := range keys {
		if v != "" {
			cp[i] = v
		}
	}
	k.keys.Store(&cp)
}

func (k *KeyRing) Credential(_ context.Context, integration webhook.Integration) (string, error) {
	return (*k.keys.Load())[integration], nil
}
