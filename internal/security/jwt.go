package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidSubject = errors.New("invalid subject")
)

// TokenManager проверяет HS256 токены, выпущенные auth-подсистемой.
// Выпуск здесь нужен для тестов и dev-утилит.
type TokenManager struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewTokenManager(secret, issuer string, ttl, clockSkew time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret:    []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		clockSkew: clockSkew,
	}
}

// AccessClaims: sub = user id; id/email: формат токенов старого фронта.
type AccessClaims struct {
	jwt.RegisteredClaims
	ID    int64  `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

func (m *TokenManager) SignAccessToken(userID domain.UserID, now time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-m.clockSkew)),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		ID: int64(userID),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.clockSkew),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	return claims, nil
}

// UserID проверяет токен и достаёт из него пользователя.
func (m *TokenManager) UserID(tokenStr string) (domain.UserID, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return 0, err
	}
	return SubjectAsUserID(claims)
}

// SubjectAsUserID: sub, а если его нет: claim id.
func SubjectAsUserID(claims *AccessClaims) (domain.UserID, error) {
	if claims == nil {
		return 0, ErrInvalidSubject
	}
	if claims.Subject != "" {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id <= 0 {
			return 0, ErrInvalidSubject
		}
		return domain.UserID(id), nil
	}
	if claims.ID > 0 {
		return domain.UserID(claims.ID), nil
	}
	return 0, ErrInvalidSubject
}
