package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeovahfialho/tradejournal/internal/domain"
)

const issuer = "trade-journal"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// JWT signs and verifies owner tokens. The owner id travels as the subject.
type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
	now      func() time.Time
}

func New(secret string, ttl time.Duration) JWT {
	return JWT{Secret: []byte(secret), TokenTTL: ttl, now: time.Now}
}

func (j JWT) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

func (j JWT) Sign(owner domain.Owner) (token string, expiresAt time.Time, err error) {
	if owner == "" {
		return "", time.Time{}, domain.ErrMissingOwner
	}

	now := j.clock().UTC()
	expiresAt = now.Add(j.TokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   owner.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

func (j JWT) Verify(token string) (domain.Owner, error) {
	var claims jwt.RegisteredClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return domain.Owner(claims.Subject), nil
}

// FromHeader extracts the token of an "Authorization: Bearer <token>" value.
func FromHeader(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
