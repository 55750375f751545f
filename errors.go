package jobtracker

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds      = errors.TextCodeInvalidCredentials
	TextCodeTooManyAttempts   = errors.TextCodeTooManyAttempts
	TextCodeEmptyPassword     = errors.TextCodeEmptyPassword
	TextCodeTokenExpired      = errors.TextCodeTokenExpired
	TextCodeTokenMalformed    = errors.TextCodeTokenMalformed
	TextCodeTokenInvalid      = "TOKEN_INVALID"
	TextCodeWeakPassword      = "WEAK_PASSWORD"
	TextCodeEmailRegistered   = "EMAIL_ALREADY_REGISTERED"
	TextCodeApplicationAbsent = "APPLICATION_NOT_FOUND"
	TextCodeUserAbsent        = "USER_NOT_FOUND"
	TextCodeInvalidStatus     = "INVALID_STATUS"
	TextCodeInvalidDate       = "INVALID_DATE"
	TextCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	TextCodeMalformedBody     = "MALFORMED_BODY"
	TextCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	TextCodeInternal          = "INTERNAL_ERROR"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserAbsent)

// ErrMismatchedHashAndPassword is returned for any failed credential check,
// unknown emails included.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrTooManyLoginAttempts is returned while an account is cooling down
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrNoEmptyString rejects empty passwords
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrTokenExpired token past its expiry
var ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed token could not be parsed
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenInvalid signature or claims did not verify
var ErrTokenInvalid = errors.New("token is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid)

// ErrEmailAlreadyRegistered duplicate registration. Surfaced as 400 so the
// response matches other registration input errors.
var ErrEmailAlreadyRegistered = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailRegistered).
	WithCode(400)

// ErrApplicationNotFound covers both missing records and records owned by
// another user.
var ErrApplicationNotFound = errors.New("application not found", errors.CategoryNotFound).
	WithTextCode(TextCodeApplicationAbsent)

// ErrInvalidStatus status outside the enumeration
var ErrInvalidStatus = errors.New("invalid application status", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidStatus)

// ErrInvalidDate date not in YYYY-MM-DD form
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidDate)

// ErrNotAuthenticated request carried no bearer token
var ErrNotAuthenticated = errors.New("not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated)

// ErrMalformedBody request body could not be decoded
var ErrMalformedBody = errors.New("request body could not be decoded", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedBody)

// ErrRateLimited too many requests from one client
var ErrRateLimited = errors.New("rate limit exceeded, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// fail returns a copy of a sentinel so callers can attach metadata without
// mutating the shared value.
func fail(sentinel *errors.Error, meta ...map[string]any) *errors.Error {
	e := sentinel.Clone()
	if len(meta) > 0 {
		e = e.WithMetadata(meta...)
	}
	return e
}
