package cognito

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"handyman_portal_backend/platform/logger"
)

type fakeCognitoConfig struct {
	region   string
	poolID   string
	clientID string
}

func (f fakeCognitoConfig) GetCognitoRegion() string     { return f.region }
func (f fakeCognitoConfig) GetCognitoUserPoolID() string { return f.poolID }
func (f fakeCognitoConfig) GetCognitoClientID() string   { return f.clientID }
func (f fakeCognitoConfig) IsCognitoEnabled() bool {
	return f.region != "" && f.poolID != "" && f.clientID != ""
}

// jwksServer serves a single-key JWKS for the given RSA key under kid.
func jwksServer(t *testing.T, kid string, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/.well-known/jwks.json") {
			http.NotFound(w, r)
			return
		}
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func signToken(t *testing.T, kid string, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func idTokenClaims(issuer string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "hq-user-1",
		"aud":       "test-client",
		"iss":       issuer,
		"token_use": "id",
		"name":      "本部 太郎",
		"email":     "hq@example.com",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
}

func testVerifier(issuer string) *Verifier {
	cfg := fakeCognitoConfig{region: "ap-northeast-1", poolID: "pool", clientID: "test-client"}
	return NewVerifier(cfg, logger.New("development")).WithIssuer(issuer)
}

func TestNewVerifierDisabledWithoutConfig(t *testing.T) {
	v := NewVerifier(fakeCognitoConfig{}, logger.New("development"))
	if v != nil {
		t.Fatal("expected nil verifier when the user pool is not configured")
	}

	if _, err := v.VerifyIDToken(context.Background(), "anything"); err == nil {
		t.Fatal("nil verifier should reject tokens, got no error")
	}
}

func TestVerifyIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := jwksServer(t, "key-1", key)
	defer server.Close()

	v := testVerifier(server.URL)

	idToken := signToken(t, "key-1", key, idTokenClaims(server.URL))
	identity, err := v.VerifyIDToken(context.Background(), idToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity.Subject != "hq-user-1" {
		t.Errorf("expected subject hq-user-1, got %q", identity.Subject)
	}
	if identity.Name != "本部 太郎" {
		t.Errorf("expected display name from claims, got %q", identity.Name)
	}
	if identity.Email != "hq@example.com" {
		t.Errorf("expected email from claims, got %q", identity.Email)
	}
}

func TestVerifyIDTokenFallsBackToUsername(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := jwksServer(t, "key-1", key)
	defer server.Close()

	claims := idTokenClaims(server.URL)
	delete(claims, "name")
	claims["cognito:username"] = "hq-taro"

	identity, err := testVerifier(server.URL).VerifyIDToken(context.Background(),
		signToken(t, "key-1", key, claims))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity.Name != "hq-taro" {
		t.Errorf("expected username fallback, got %q", identity.Name)
	}
}

func TestVerifyIDTokenRejections(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	server := jwksServer(t, "key-1", key)
	defer server.Close()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "access token from the same pool",
			token: func(t *testing.T) string {
				claims := idTokenClaims(server.URL)
				claims["token_use"] = "access"
				return signToken(t, "key-1", key, claims)
			},
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				claims := idTokenClaims(server.URL)
				claims["aud"] = "someone-elses-app"
				return signToken(t, "key-1", key, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				claims := idTokenClaims("https://cognito-idp.us-east-1.amazonaws.com/other-pool")
				return signToken(t, "key-1", key, claims)
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				claims := idTokenClaims(server.URL)
				claims["exp"] = time.Now().Add(-time.Minute).Unix()
				return signToken(t, "key-1", key, claims)
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				claims := idTokenClaims(server.URL)
				delete(claims, "sub")
				return signToken(t, "key-1", key, claims)
			},
		},
		{
			name: "signed with a key the pool never published",
			token: func(t *testing.T) string {
				return signToken(t, "rogue-key", otherKey, idTokenClaims(server.URL))
			},
		},
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := testVerifier(server.URL)
			if _, err := v.VerifyIDToken(context.Background(), tc.token(t)); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestKeyCacheRefetchesOnRotation(t *testing.T) {
	oldKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	current := "key-old"
	keys := map[string]*rsa.PrivateKey{"key-old": oldKey, "key-new": newKey}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keys[current]
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kid": current,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	v := testVerifier(server.URL)

	if _, err := v.VerifyIDToken(context.Background(),
		signToken(t, "key-old", oldKey, idTokenClaims(server.URL))); err != nil {
		t.Fatalf("verify with original key failed: %v", err)
	}

	// Rotate the pool's key and age the cache so the unknown kid triggers a
	// refetch instead of a stale-cache rejection.
	current = "key-new"
	v.mu.Lock()
	v.fetchedAt = time.Now().Add(-2 * jwksRefreshInterval)
	v.mu.Unlock()

	if _, err := v.VerifyIDToken(context.Background(),
		signToken(t, "key-new", newKey, idTokenClaims(server.URL))); err != nil {
		t.Fatalf("verify after rotation failed: %v", err)
	}
}
