package service

import (
	"errors"
	"fmt"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrWrongTokenKind is returned when a refresh token is presented as an
// access token or the other way round.
var ErrWrongTokenKind = errors.New("wrong token kind")

type userClaims struct {
	Username string          `json:"username"`
	Staff    bool            `json:"staff,omitempty"`
	Kind     ports.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService with HS256 access and
// refresh tokens.
type JWTTokenService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	now           func() time.Time
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, accessExpiry, refreshExpiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        issuer,
		now:           time.Now,
	}
}

// Generate issues an access and refresh token for user.
func (s *JWTTokenService) Generate(user *domain.User) (*ports.TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.sign(user, ports.TokenKindAccess, now, s.accessExpiry)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(user, ports.TokenKindRefresh, now, s.refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &ports.TokenPair{
		Access:        access,
		AccessExpiry:  accessExp,
		Refresh:       refresh,
		RefreshExpiry: refreshExp,
	}, nil
}

func (s *JWTTokenService) sign(user *domain.User, kind ports.TokenKind, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := userClaims{
		Username: user.Username,
		Staff:    user.IsStaff,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry, issuer and kind.
func (s *JWTTokenService) Validate(tokenString string, kind ports.TokenKind) (*ports.Principal, error) {
	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenKind, claims.Kind, kind)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject in token: %w", err)
	}

	return &ports.Principal{
		UserID:   userID,
		Username: claims.Username,
		IsStaff:  claims.Staff,
	}, nil
}
