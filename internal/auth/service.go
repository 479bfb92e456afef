package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/walletbook/walletbook/internal/identity"
)

// ErrInvalidToken covers malformed, expired, forged and revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the registered JWT claims plus the user's token version.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// Token is a signed access token and its lifetime.
type Token struct {
	Value     string
	ExpiresAt time.Time
	ExpiresIn int64
}

// Service issues and verifies HS256 access tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	idRepo identity.Repository
	now    func() time.Time
}

// NewService builds a token service.
func NewService(secret string, ttl time.Duration, idRepo identity.Repository) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, idRepo: idRepo, now: time.Now}
}

// Issue signs an access token for user.
func (s *Service) Issue(user identity.User) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Version: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp, ExpiresIn: int64(s.ttl.Seconds())}, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (s *Service) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Authorize verifies the token and checks it has not been revoked by a logout.
func (s *Service) Authorize(ctx context.Context, token string) (identity.User, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return identity.User{}, err
	}
	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return identity.User{}, ErrInvalidToken
		}
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return identity.User{}, ErrInvalidToken
	}
	return user, nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
