package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"usersvc/internal/common"
)

// TokenCodec issues and verifies HS256 auth tokens carrying a user id.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	return &TokenCodec{secret: secret, ttl: ttl}, nil
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Encode signs a token for subjectID that expires ttl after issuedAt.
// The jti keeps tokens issued within the same second distinct.
func (c *TokenCodec) Encode(subjectID int64, issuedAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGNING_FAILED").With("subject", subjectID).Wrap(err)
	}
	return signed, nil
}

// Decode verifies the signature of token and then its expiry against now.
// It returns common.ErrTokenExpired only for a correctly signed token whose
// exp is not after now; every other failure is common.ErrTokenInvalid.
func (c *TokenCodec) Decode(token string, now time.Time) (int64, error) {
	claims, err := c.verify(token)
	if err != nil {
		return 0, err
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err := validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
		}
		return 0, fmt.Errorf("%w: %w", common.ErrTokenInvalid, err)
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q is not a user id", common.ErrTokenInvalid, claims.Subject)
	}
	return subjectID, nil
}

// ExpiresAt returns the exp claim of a correctly signed token, expired or not.
func (c *TokenCodec) ExpiresAt(token string) (time.Time, error) {
	claims, err := c.verify(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", common.ErrTokenInvalid)
	}
	return claims.ExpiresAt.Time, nil
}

func (c *TokenCodec) verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTokenInvalid, err)
	}
	return claims, nil
}
