package security

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

var ErrInvalidToken = errors.New("invalid token")

// ProfileClaims : claims émis par l'identity service
type ProfileClaims struct {
	ProfileID string `json:"profile_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier ne fait que vérifier : la clé privée reste côté identity.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

var _ ports.IdentityResolver = (*JWTVerifier)(nil)

func NewJWTVerifier(publicKeyPEM []byte, issuer string) (*JWTVerifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pubKey, issuer: issuer}, nil
}

func LoadJWTVerifier(path, issuer string) (*JWTVerifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewJWTVerifier(pem, issuer)
}

// Resolve vérifie la signature RS256 et retourne le profile_id, sinon le subject.
func (v *JWTVerifier) Resolve(_ context.Context, tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ProfileClaims{}, func(token *jwt.Token) (any, error) {
		// Empêche les attaques où l'algo est forcé à "none" ou "HS256"
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*ProfileClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.ProfileID != "" {
		return claims.ProfileID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("%w: no profile in claims", ErrInvalidToken)
}
