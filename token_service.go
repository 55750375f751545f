package jobtracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is the lifetime of an access token when none is
// configured
const DefaultTokenExpiration = 30 * time.Minute

// TokenService issues and verifies bearer tokens
type TokenService interface {
	Issue(userID string) (string, error)
	Generate(identity Identity) (string, error)
	Verify(token string) (string, error)
	Validate(token string) (AuthClaims, error)
	Expiration() time.Duration
}

// TokenServiceImpl implements the TokenService interface using HS256
type TokenServiceImpl struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	clock      Clock
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, expiration time.Duration, issuer string, audience []string, logger Logger) *TokenServiceImpl {
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		expiration: expiration,
		issuer:     issuer,
		audience:   audience,
		logger:     resolveLogger("jobtracker.tokens", logger),
	}
}

// NewTokenServiceFromConfig builds a TokenService from Config getters
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger,
	)
}

// WithClock overrides the time source used for issuing and verifying
func (ts *TokenServiceImpl) WithClock(clock Clock) *TokenServiceImpl {
	ts.clock = clock
	return ts
}

// Expiration returns the configured token lifetime
func (ts *TokenServiceImpl) Expiration() time.Duration {
	return ts.expiration
}

// Issue creates a token for the given user id
func (ts *TokenServiceImpl) Issue(userID string) (string, error) {
	return ts.sign(userID, "")
}

// Generate creates a token for identity, carrying its role
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity must not be nil", errors.CategoryInternal)
	}
	return ts.sign(identity.ID(), identity.Role())
}

func (ts *TokenServiceImpl) sign(userID, role string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token subject must not be empty", errors.CategoryInternal)
	}

	now := ts.clock.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   userID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UserRole: role,
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify returns the user id carried by a valid token
func (ts *TokenServiceImpl) Verify(tokenString string) (string, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.clock.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fail(ErrTokenExpired)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fail(ErrTokenMalformed)
		default:
			return nil, errors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
				WithTextCode(ErrTokenInvalid.TextCode)
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, fail(ErrTokenInvalid)
	}

	return claims, nil
}
