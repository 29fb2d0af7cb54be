// Package cognito verifies AWS Cognito user-pool ID tokens against the
// pool's published JWKS.
package cognito

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
)

const jwksRefreshInterval = time.Hour

// VerifiedIdentity is the subject resolved from a Cognito ID token.
type VerifiedIdentity struct {
	Subject string
	Name    string
	Email   string
}

// Verifier validates RS256 ID tokens issued by a Cognito user pool. Signing
// keys are fetched from the pool's JWKS endpoint and cached; an unknown kid
// forces one refetch so key rotation does not lock users out for an hour.
type Verifier struct {
	issuer   string
	clientID string
	http     *http.Client
	log      *logger.Logger

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewVerifier creates a Cognito verifier. Returns nil when the user pool is
// not configured; cognito logins are then rejected as unavailable.
func NewVerifier(cfg config.CognitoConfig, log *logger.Logger) *Verifier {
	if !cfg.IsCognitoEnabled() {
		return nil
	}

	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s",
		cfg.GetCognitoRegion(), cfg.GetCognitoUserPoolID())

	return &Verifier{
		issuer:   issuer,
		clientID: cfg.GetCognitoClientID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// WithIssuer overrides the issuer (and thus the JWKS endpoint), used by tests.
func (v *Verifier) WithIssuer(issuer string) *Verifier {
	if v == nil {
		return nil
	}
	v.issuer = strings.TrimRight(issuer, "/")
	return v
}

// VerifyIDToken checks the token's signature against the pool's JWKS and
// validates issuer, audience, expiry and token_use before returning the
// subject.
func (v *Verifier) VerifyIDToken(ctx context.Context, idToken string) (VerifiedIdentity, error) {
	if v == nil {
		return VerifiedIdentity{}, fmt.Errorf("cognito user pool not configured")
	}

	token, err := jwt.Parse(idToken,
		func(t *jwt.Token) (interface{}, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token missing kid header")
			}
			return v.keyFor(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return VerifiedIdentity{}, fmt.Errorf("cognito token rejected: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return VerifiedIdentity{}, fmt.Errorf("cognito token has unexpected claims type")
	}

	// Access tokens from the same pool carry token_use=access and must not
	// open a session.
	if use, _ := claims["token_use"].(string); use != "id" {
		return VerifiedIdentity{}, fmt.Errorf("cognito token is not an ID token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return VerifiedIdentity{}, fmt.Errorf("cognito token missing subject")
	}

	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["cognito:username"].(string)
	}
	email, _ := claims["email"].(string)

	return VerifiedIdentity{Subject: sub, Name: name, Email: email}, nil
}

func (v *Verifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok {
		return key, nil
	}

	// Refetch when the cache is stale or the kid is unknown (rotation).
	if time.Since(v.fetchedAt) < jwksRefreshInterval && v.keys != nil {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}

	keys, err := v.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = time.Now()

	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *Verifier) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	endpoint := v.issuer + "/.well-known/jwks.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cognito jwks: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cognito jwks endpoint returned %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cognito jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		key, err := parseRSAKey(k.N, k.E)
		if err != nil {
			v.log.Warn("skipping malformed cognito jwk", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("cognito jwks contained no usable keys")
	}
	return keys, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}

	exponent := 0
	for _, b := range eBytes {
		exponent = exponent<<8 | int(b)
	}
	if exponent == 0 {
		return nil, fmt.Errorf("zero exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: exponent}, nil
}
