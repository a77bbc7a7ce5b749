package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// Claims represents caller token claims. The subject is the external id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 caller tokens issued by the identity provider
type JWTResolver struct {
	secret []byte
	issuer string
	log    logger.Logger
}

// NewJWTResolver creates a resolver. An empty issuer disables the issuer
// check.
func NewJWTResolver(secret, issuer string, log logger.Logger) *JWTResolver {
	if log == nil {
		log = logger.Default()
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer, log: log}
}

// ResolveCaller implements Resolver. Missing or invalid tokens resolve to
// no caller.
func (r *JWTResolver) ResolveCaller(ctx context.Context) (*Identity, error) {
	token := TokenFrom(ctx)
	if token == "" {
		return nil, nil
	}

	claims, err := r.Validate(token)
	if err != nil {
		r.log.Debug("rejected caller token", "error", err)
		return nil, nil
	}

	return &Identity{ExternalID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Validate parses a token and returns its claims
func (r *JWTResolver) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a caller token for id. The identity provider normally
// does this; it exists for tooling and tests.
func IssueToken(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ExternalID,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
