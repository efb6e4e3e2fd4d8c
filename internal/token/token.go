package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ActionOneTapReschedule = "one_tap_reschedule"

// ErrInvalidToken covers bad signatures, expiry and action mismatch alike.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Code   string `json:"code"`
	Action string `json:"action"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock is used by tests to move time.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Service) Issue(code, action string) (string, error) {
	now := s.now()
	claims := Claims{
		Code:   code,
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   code,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the booking code bound to a token issued for action.
func (s *Service) Verify(raw, action string) (string, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Action != action || claims.Code == "" {
		return "", ErrInvalidToken
	}
	return claims.Code, nil
}
