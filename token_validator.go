package jobtracker

import "github.com/goliatone/go-jobtracker/middleware/jwtware"

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, fail(ErrTokenInvalid)
	}
	return f(tokenString)
}

// JWTValidator exposes a TokenValidator to the bearer middleware, which
// only knows about its own narrower claims interface.
func JWTValidator(v TokenValidator) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		if v == nil {
			return nil, fail(ErrTokenInvalid)
		}
		claims, err := v.Validate(raw)
		if err != nil {
			return nil, err
		}
		if claims == nil {
			return nil, fail(ErrTokenInvalid)
		}
		return claims, nil
	})
}
