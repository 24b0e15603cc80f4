package jwt

import (
	"errors"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
}

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	jwtlib.RegisteredClaims
}

// Identity is what a token is issued for.
type Identity struct {
	UserID   int64
	Username string
	Role     string
	FullName string
}

func New(secret string, ttl time.Duration, issuer, audience string) *Service {
	return &Service{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		audience: audience,
	}
}

func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) GenerateToken(id Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
		FullName: id.FullName,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			Issuer:    s.issuer,
			Audience:  jwtlib.ClaimStrings{s.audience},
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithAudience(s.audience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
