// Package auth verifies the bearer JWT carried on every HTTP request and
// extracts the email claim that identifies the entity.User making the call
// (SPEC_FULL.md §6).
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by Verify, mapped by the HTTP surface to 401/400
// respectively (SPEC_FULL.md §7).
var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// claims is the subset of the JWT payload this service cares about: the
// identity provider's own claims (roles, audience, etc.) are irrelevant here,
// only the email that names the entity.User.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against a JWKS-published public key set,
// the standard way a service trusts an external identity provider without
// holding its own signing secret.
type Verifier struct {
	keyfunc jwt.Keyfunc
}

// NewVerifier builds a Verifier backed by keyfunc, which resolves a token's
// `kid` header to the public key that should verify its signature.
func NewVerifier(keyfunc jwt.Keyfunc) *Verifier {
	return &Verifier{keyfunc: keyfunc}
}

// Verify parses the raw "Bearer <token>" header value and returns the email
// claim on success.
func (v *Verifier) Verify(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(raw, &claims{}, v.keyfunc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Email == "" {
		return "", ErrInvalidToken
	}
	return c.Email, nil
}

// Middleware returns an http.Handler wrapper that rejects requests lacking a
// valid bearer token and otherwise stores the authenticated email in the
// request context under emailContextKey.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := v.Verify(r.Header.Get("Authorization"))
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrMissingToken) {
				status = http.StatusUnauthorized
			}
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), status)
			return
		}
		ctx := context.WithValue(r.Context(), emailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const emailContextKey contextKey = "dox-auth-email"

// EmailFromContext retrieves the email stashed by Middleware.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailContextKey).(string)
	return email, ok
}

// jwksDoc is the standard JWK Set document shape (RFC 7517).
type jwksDoc struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSSource fetches the current JWK Set document, e.g. an *http.Client
// wrapper hitting the identity provider's well-known endpoint.
type JWKSSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPJWKSSource fetches a JWKS document over HTTP.
type HTTPJWKSSource struct {
	URL    string
	Client *http.Client
}

// Fetch performs a GET against URL.
func (s HTTPJWKSSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: build jwks request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: jwks endpoint returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: read jwks body: %w", err)
	}
	return data, nil
}

// JWKSCache resolves a token's `kid` to its RSA public key, re-fetching the
// underlying key set once refreshInterval has passed, and also on every
// lookup of a `kid` that is not in the cached set.
type JWKSCache struct {
	source          JWKSSource
	refreshInterval time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache builds a JWKSCache. A refreshInterval of zero disables
// time-based re-fetching; an unknown `kid` still triggers a fetch.
func NewJWKSCache(source JWKSSource, refreshInterval time.Duration) *JWKSCache {
	return &JWKSCache{source: source, refreshInterval: refreshInterval, keys: make(map[string]*rsa.PublicKey)}
}

// Keyfunc implements jwt.Keyfunc, resolving the token's `kid` header.
func (c *JWKSCache) Keyfunc(token *jwt.Token) (interface{}, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("auth: token missing kid header")
	}
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
	}

	key, err := c.lookup(kid)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (c *JWKSCache) lookup(kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.refreshInterval > 0 && time.Since(c.fetchedAt) > c.refreshInterval
	if key, ok := c.keys[kid]; ok && !stale {
		return key, nil
	}

	data, err := c.source.Fetch(context.Background())
	if err != nil {
		return nil, fmt.Errorf("auth: refresh jwks: %w", err)
	}
	keys, err := parseJWKS(data)
	if err != nil {
		return nil, err
	}
	c.keys = keys
	c.fetchedAt = time.Now()

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: unknown key id %q", kid)
	}
	return key, nil
}

func parseJWKS(data []byte) (map[string]*rsa.PublicKey, error) {
	var doc jwksDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("auth: parse jwks document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func rsaPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
