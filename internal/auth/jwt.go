package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrInvalidClaims  = errors.New("invalid token claims")
	ErrTokenNotActive = errors.New("token not yet active")
	ErrTokenRevoked   = errors.New("token has been revoked")
)

// Claims is the exact access-token payload spec §4.3 names: userId, tenantId,
// role. No email or other PII travels in the token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
}

// RefreshClaims is the refresh-credential payload (spec §4.3): {userId,
// tenantId} only — no role, since Refresh re-resolves role per §4.5 rather
// than trusting a stale claim. Both credentials are stateless bearer
// tokens; the refresh credential is additionally recorded as
// Session.RefreshTokenHash so Refresh/Logout can look it up and rotate it.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	// Secret is the HS256 fallback. ES256 (ECDSAKeyManager) is preferred.
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	// UseES256 enables ES256 signing (ECDSA P-256) instead of HS256.
	UseES256 bool
}

// DefaultJWTConfig returns default JWT configuration with ES256 enabled.
func DefaultJWTConfig(secret string) *JWTConfig {
	return &JWTConfig{
		Secret:             secret,
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "document-signing-platform",
		UseES256:           true,
	}
}

// JWTManager handles access-token minting and verification.
type JWTManager struct {
	config     *JWTConfig
	keyManager *ECDSAKeyManager
	revoker    *TokenRevocationList
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(config *JWTConfig) *JWTManager {
	return &JWTManager{
		config:     config,
		keyManager: GetECDSAKeyManager(),
	}
}

// NewJWTManagerWithKeyManager creates a JWT manager with a specific key manager
func NewJWTManagerWithKeyManager(config *JWTConfig, km *ECDSAKeyManager) *JWTManager {
	return &JWTManager{
		config:     config,
		keyManager: km,
	}
}

// NewJWTManagerWithRevocation creates a JWT manager with revocation support
func NewJWTManagerWithRevocation(config *JWTConfig, revoker *TokenRevocationList) *JWTManager {
	return &JWTManager{
		config:     config,
		keyManager: GetECDSAKeyManager(),
		revoker:    revoker,
	}
}

// SetRevocationList sets the token revocation list for the JWT manager
func (m *JWTManager) SetRevocationList(revoker *TokenRevocationList) {
	m.revoker = revoker
}

// UserInfo carries the principal fields embedded in an access token.
type UserInfo struct {
	UserID   string
	TenantID string
	Role     string
}

// GenerateAccessToken mints the JWT access credential for user.
func (m *JWTManager) GenerateAccessToken(user *UserInfo) (string, time.Time, error) {
	expiry := time.Now().Add(m.config.AccessTokenExpiry)
	jti, err := generateTokenID()
	if err != nil {
		return "", time.Time{}, err
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.config.Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiry),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   user.UserID,
		TenantID: user.TenantID,
		Role:     user.Role,
	}

	var token string
	if m.config.UseES256 {
		token, err = m.signES256(claims)
	} else {
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, expiry, nil
}

func (m *JWTManager) signES256(claims *Claims) (string, error) {
	privateKey, err := m.keyManager.GetPrivateKey()
	if err != nil {
		return "", fmt.Errorf("ES256 signing failed: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(privateKey)
}

// ValidateAccessToken validates an access token and returns its claims.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return m.ValidateAccessTokenWithContext(context.Background(), tokenString)
}

// ValidateAccessTokenWithContext validates an access token with context for revocation checks.
func (m *JWTManager) ValidateAccessTokenWithContext(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodECDSA:
			return m.getVerificationKey()
		case *jwt.SigningMethodHMAC:
			if !m.config.UseES256 {
				return []byte(m.config.Secret), nil
			}
			return nil, fmt.Errorf("HS256 tokens not accepted when ES256 is enabled")
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if m.revoker != nil {
		revoked, _, err := m.revoker.CheckRevocation(ctx, claims)
		if err != nil {
			return nil, ErrTokenRevoked
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// GenerateRefreshToken mints the JWT refresh credential carrying {userId,
// tenantId} (spec §4.3). The caller hashes the returned raw string
// (sha256Hex) and stores it as Session.RefreshTokenHash.
func (m *JWTManager) GenerateRefreshToken(userID, tenantID string) (string, time.Time, error) {
	expiry := time.Now().Add(m.config.RefreshTokenExpiry)
	jti, err := generateTokenID()
	if err != nil {
		return "", time.Time{}, err
	}

	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiry),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   userID,
		TenantID: tenantID,
	}

	var token string
	if m.config.UseES256 {
		privateKey, kerr := m.keyManager.GetPrivateKey()
		if kerr != nil {
			return "", time.Time{}, fmt.Errorf("ES256 signing failed: %w", kerr)
		}
		token, err = jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(privateKey)
	} else {
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return token, expiry, nil
}

// ValidateRefreshToken verifies the refresh credential's signature and
// expiry (spec §4.3 Refresh step 1) and returns its claims. It does not
// consult Session — the caller still must locate the Session row whose
// RefreshTokenHash matches this raw token.
func (m *JWTManager) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodECDSA:
			return m.getVerificationKey()
		case *jwt.SigningMethodHMAC:
			if !m.config.UseES256 {
				return []byte(m.config.Secret), nil
			}
			return nil, fmt.Errorf("HS256 tokens not accepted when ES256 is enabled")
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func (m *JWTManager) getVerificationKey() (interface{}, error) {
	if m.config.UseES256 {
		return m.keyManager.GetPublicKey()
	}
	return []byte(m.config.Secret), nil
}

func generateTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSecureToken returns length crypto/rand bytes encoded as unpadded
// base64url.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
