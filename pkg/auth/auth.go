package auth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// ScopeAdmin is the OAuth scope required on tokens hitting admin endpoints.
const ScopeAdmin = "airdrop:admin"

// AdminClaims carries the identity extracted from a verified admin token.
type AdminClaims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the token carries the given scope.
func (c *AdminClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

type IAdminVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*AdminClaims, error)
}

// AdminVerifier verifies bearer tokens on the admin API against a JWKS
// endpoint. The key set is cached and refreshed in the background.
type AdminVerifier struct {
	logger *slog.Logger
	keySet jwk.Set
	issuer string
}

// NewAdminVerifier creates a verifier backed by a remote JWKS endpoint.
func NewAdminVerifier(ctx context.Context, logger *slog.Logger, jwkURL string, issuer string, refreshInterval time.Duration) (*AdminVerifier, error) {
	avLogger := logger.With("component", "admin_verifier")
	avLogger.Debug("Creating admin JWK cache", "jwk_url", jwkURL, "refresh_interval", refreshInterval)

	keySet, err := NewJWKCache(ctx, jwkURL, refreshInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin JWK cache: %w", err)
	}

	return &AdminVerifier{
		logger: avLogger,
		keySet: keySet,
		issuer: issuer,
	}, nil
}

// NewStaticAdminVerifier creates a verifier over a fixed key set. Used in
// tests and single-key deployments.
func NewStaticAdminVerifier(logger *slog.Logger, keySet jwk.Set, issuer string) *AdminVerifier {
	return &AdminVerifier{
		logger: logger.With("component", "admin_verifier"),
		keySet: keySet,
		issuer: issuer,
	}
}

// VerifyToken parses and verifies the token signature, expiry, issuer,
// audience and admin scope.
func (av *AdminVerifier) VerifyToken(ctx context.Context, tokenString string) (*AdminClaims, error) {
	av.logger.Debug("Verifying admin token", "token_length", len(tokenString))

	// Filter the key set by the token's algorithm to handle key sets
	// carrying duplicate key IDs
	filteredKeySet, err := getFilteredKeySetForToken(tokenString, av.keySet, av.logger)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(filteredKeySet),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing/verification failed: %w", err)
	}

	issuer, ok := token.Issuer()
	if !ok {
		return nil, fmt.Errorf("issuer claim not found in token")
	}
	if issuer != av.issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", av.issuer, issuer)
	}

	audiences, ok := token.Audience()
	if !ok {
		return nil, fmt.Errorf("audience claim not found in token")
	}
	if len(audiences) != 1 {
		return nil, fmt.Errorf("audience must contain exactly one value, got %d", len(audiences))
	}
	if audiences[0] != types.AdminJWTAudience {
		return nil, fmt.Errorf("invalid audience: expected %s, got %s", types.AdminJWTAudience, audiences[0])
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("subject claim not found in token")
	}

	var scope string
	if err := token.Get("scope", &scope); err != nil {
		return nil, fmt.Errorf("scope claim not found in token: %w", err)
	}

	claims := &AdminClaims{
		Subject: subject,
		Scopes:  strings.Fields(scope),
	}
	if !claims.HasScope(ScopeAdmin) {
		return nil, fmt.Errorf("token is missing required scope %s", ScopeAdmin)
	}

	av.logger.Debug("Admin token verified", "subject", subject, "scopes", claims.Scopes)
	return claims, nil
}

func NewJWKCache(ctx context.Context, jwkUrl string, refreshInterval time.Duration) (jwk.Set, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create jwk cache: %w", err)
	}

	// register a constant refresh interval for this URL.
	err = cache.Register(ctx, jwkUrl, jwk.WithConstantInterval(refreshInterval))
	if err != nil {
		return nil, fmt.Errorf("failed to register jwk location: %w", err)
	}

	// fetch once on application startup
	_, err = cache.Refresh(ctx, jwkUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch on startup: %w", err)
	}

	return cache.CachedSet(jwkUrl)
}

// getFilteredKeySetForToken parses the token header and filters the JWKS to
// only include keys matching the token's algorithm.
func getFilteredKeySetForToken(tokenString string, keySet jwk.Set, logger *slog.Logger) (jwk.Set, error) {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWS message: %w", err)
	}

	if len(msg.Signatures()) == 0 {
		return nil, fmt.Errorf("token has no signatures")
	}
	header := msg.Signatures()[0].ProtectedHeaders()

	tokenAlg, ok := header.Algorithm()
	if !ok {
		return nil, fmt.Errorf("token does not specify an algorithm")
	}
	keyID, ok := header.KeyID()
	if !ok || keyID == "" {
		return nil, fmt.Errorf("token does not specify a key ID")
	}

	filteredKeySet := jwk.NewSet()
	for i := 0; i < keySet.Len(); i++ {
		key, ok := keySet.Key(i)
		if !ok {
			continue
		}
		if keyAlg, ok := key.Algorithm(); ok && keyAlg == tokenAlg {
			_ = filteredKeySet.AddKey(key)
		}
	}

	if filteredKeySet.Len() == 0 {
		return nil, fmt.Errorf("no keys found in JWKS matching algorithm %s", tokenAlg)
	}
	logger.Debug("Filtered JWKS", "original_count", keySet.Len(), "filtered_count", filteredKeySet.Len())

	return filteredKeySet, nil
}
