package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// UnknownUsername is used when no claim identifies the user
const UnknownUsername = "unknown"

// Claims are the Cognito ID token claims the application relies on
type Claims struct {
	Email             string   `json:"email"`
	EmailVerified     bool     `json:"email_verified,omitempty"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	CognitoUsername   string   `json:"cognito:username,omitempty"`
	Groups            []string `json:"cognito:groups,omitempty"`
	jwt.RegisteredClaims
}

// Username resolves a display username the way the audit trail expects:
// preferred_username, then cognito:username, then name.
func (c *Claims) Username() string {
	for _, candidate := range []string{c.PreferredUsername, c.CognitoUsername, c.Name} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return UnknownUsername
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningMethod string   // RS256 or HS256
	PublicKey     string   // PEM, for RS256
	SecretKey     string   // For HS256
	Issuer        string   // Expected issuer
	Audience      []string // Accepted audiences
}

// JWTValidator validates bearer tokens
type JWTValidator struct {
	publicKey     *rsa.PublicKey
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      []string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	v := &JWTValidator{
		issuer:   config.Issuer,
		audience: config.Audience,
	}

	switch config.SigningMethod {
	case "RS256":
		if config.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.signingMethod = jwt.SigningMethodRS256
		v.publicKey = key
	case "HS256", "":
		if config.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		v.signingMethod = jwt.SigningMethodHS256
		v.secretKey = []byte(config.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	return v, nil
}

// ValidateToken validates a token and returns its claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != v.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if v.publicKey != nil {
			return v.publicKey, nil
		}
		return v.secretKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if len(v.audience) > 0 && !slices.ContainsFunc(v.audience, func(aud string) bool {
		return slices.Contains(claims.Audience, aud)
	}) {
		return nil, fmt.Errorf("%w: invalid audience", ErrInvalidClaims)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidClaims)
	}

	return claims, nil
}

// JWTGenerator issues HS256 tokens for local development and tests
type JWTGenerator struct {
	secretKey []byte
	issuer    string
	audience  []string
	ttl       time.Duration
}

// NewJWTGenerator creates a generator signing with secret
func NewJWTGenerator(secret, issuer string, audience []string, ttl time.Duration) *JWTGenerator {
	return &JWTGenerator{
		secretKey: []byte(secret),
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
	}
}

// GenerateToken issues a token for the given identity
func (g *JWTGenerator) GenerateToken(subject, email, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:             email,
		EmailVerified:     true,
		Name:              username,
		PreferredUsername: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject,
			Audience:  g.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
}

// UserContext is the authenticated principal of a request
type UserContext struct {
	UserID   string
	Email    string
	Username string
	Name     string
	Groups   []string
}

// NewUserContext builds the principal from validated claims
func NewUserContext(c *Claims) *UserContext {
	name := c.Name
	if name == "" {
		name = c.Username()
	}
	return &UserContext{
		UserID:   c.Subject,
		Email:    c.Email,
		Username: c.Username(),
		Name:     name,
		Groups:   c.Groups,
	}
}

type contextKey string

const UserContextKey contextKey = "user"

// GetUserFromContext extracts the principal from context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

// SetUserInContext stores the principal in context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// UsernameFromContext returns the traced username of the request principal,
// or empty when the request is anonymous.
func UsernameFromContext(ctx context.Context) string {
	user, err := GetUserFromContext(ctx)
	if err != nil {
		return ""
	}
	return user.Username
}
