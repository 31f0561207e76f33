package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

const testIssuer = "https://auth.example.com"

func setupLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func createTestJWKS(t *testing.T) (jwk.Set, *rsa.PrivateKey, string) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	publicKey, err := jwk.Import(&privateKey.PublicKey)
	require.NoError(t, err)

	keyID := "test-key-id"
	require.NoError(t, publicKey.Set(jwk.KeyIDKey, keyID))
	require.NoError(t, publicKey.Set(jwk.AlgorithmKey, jwa.RS256()))
	require.NoError(t, publicKey.Set(jwk.KeyUsageKey, "sig"))

	publicSet := jwk.NewSet()
	_ = publicSet.AddKey(publicKey)

	return publicSet, privateKey, keyID
}

type tokenOverrides struct {
	issuer   string
	audience string
	subject  string
	scope    string
	expires  time.Time
}

func createSignedToken(t *testing.T, privateKey *rsa.PrivateKey, keyID string, o tokenOverrides) string {
	t.Helper()

	if o.issuer == "" {
		o.issuer = testIssuer
	}
	if o.audience == "" {
		o.audience = types.AdminJWTAudience
	}
	if o.subject == "" {
		o.subject = "ops@example.com"
	}
	if o.scope == "" {
		o.scope = "airdrop:admin airdrop:read"
	}
	if o.expires.IsZero() {
		o.expires = time.Now().Add(time.Hour)
	}

	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, o.issuer))
	require.NoError(t, token.Set(jwt.AudienceKey, o.audience))
	require.NoError(t, token.Set(jwt.SubjectKey, o.subject))
	require.NoError(t, token.Set(jwt.ExpirationKey, o.expires))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	require.NoError(t, token.Set("scope", o.scope))

	jwkKey, err := jwk.Import(privateKey)
	require.NoError(t, err)
	require.NoError(t, jwkKey.Set(jwk.KeyIDKey, keyID))
	require.NoError(t, jwkKey.Set(jwk.AlgorithmKey, jwa.RS256()))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), jwkKey))
	require.NoError(t, err)

	return string(signed)
}

func TestVerifyToken_Valid(t *testing.T) {
	keySet, privateKey, keyID := createTestJWKS(t)
	verifier := NewStaticAdminVerifier(setupLogger(), keySet, testIssuer)

	tokenString := createSignedToken(t, privateKey, keyID, tokenOverrides{})

	claims, err := verifier.VerifyToken(context.Background(), tokenString)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.True(t, claims.HasScope(ScopeAdmin))
	assert.True(t, claims.HasScope("airdrop:read"))
	assert.False(t, claims.HasScope("airdrop:write"))
}

func TestVerifyToken_Failures(t *testing.T) {
	keySet, privateKey, keyID := createTestJWKS(t)
	verifier := NewStaticAdminVerifier(setupLogger(), keySet, testIssuer)
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		_, err := verifier.VerifyToken(ctx, "not-a-jwt")
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tokenString := createSignedToken(t, privateKey, keyID, tokenOverrides{issuer: "https://evil.example.com"})
		_, err := verifier.VerifyToken(ctx, tokenString)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid issuer")
	})

	t.Run("wrong audience", func(t *testing.T) {
		tokenString := createSignedToken(t, privateKey, keyID, tokenOverrides{audience: "some-other-service"})
		_, err := verifier.VerifyToken(ctx, tokenString)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid audience")
	})

	t.Run("missing admin scope", func(t *testing.T) {
		tokenString := createSignedToken(t, privateKey, keyID, tokenOverrides{scope: "airdrop:read"})
		_, err := verifier.VerifyToken(ctx, tokenString)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required scope")
	})

	t.Run("expired token", func(t *testing.T) {
		tokenString := createSignedToken(t, privateKey, keyID, tokenOverrides{expires: time.Now().Add(-time.Hour)})
		_, err := verifier.VerifyToken(ctx, tokenString)
		require.Error(t, err)
	})

	t.Run("signed by unknown key", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		tokenString := createSignedToken(t, otherKey, keyID, tokenOverrides{})
		_, err = verifier.VerifyToken(ctx, tokenString)
		require.Error(t, err)
	})
}
