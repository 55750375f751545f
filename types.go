package jobtracker

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger is the logging contract used across the package. Arguments after
// msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds tracker options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetBcryptCost() int
	GetMaxLoginAttempts() int
	GetLoginCooldown() time.Duration
}

// Identity holds the attributes of an authenticated user
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByID(ctx context.Context, id string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Clock returns the current time. Tests pin it to a fixed instant.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

type defLogger struct {
	l *slog.Logger
}

// NewLogger returns a Logger writing text records to stderr, tagged with
// the given component name.
func NewLogger(component string, level slog.Level) Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return defLogger{l: slog.New(h).With("component", component)}
}

// SlogLogger adapts an existing slog.Logger
func SlogLogger(l *slog.Logger) Logger {
	if l == nil {
		return defaultLogger("jobtracker")
	}
	return defLogger{l: l}
}

func defaultLogger(component string) Logger {
	return NewLogger(component, slog.LevelInfo)
}

func (d defLogger) Debug(msg string, args ...any) { d.l.Debug(msg, args...) }

func (d defLogger) Info(msg string, args ...any) { d.l.Info(msg, args...) }

func (d defLogger) Warn(msg string, args ...any) { d.l.Warn(msg, args...) }

func (d defLogger) Error(msg string, args ...any) { d.l.Error(msg, args...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards every record
func NopLogger() Logger { return nopLogger{} }

func resolveLogger(component string, l Logger) Logger {
	if l != nil {
		return l
	}
	return defaultLogger(component)
}
