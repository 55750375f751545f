// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// MinSecretKeyLength applies outside development and test environments
const MinSecretKeyLength = 32

// BaseConfig is the full service configuration
type BaseConfig struct {
	Env         string
	Auth        Auth
	Persistence Persistence
	Server      Server
}

// Auth covers tokens, hashing and login lockout
type Auth struct {
	SigningKey       string
	TokenExpiration  time.Duration
	Issuer           string
	Audience         []string
	BcryptCost       int
	MaxLoginAttempts int
	LoginCooldown    time.Duration
}

func (a Auth) GetSigningKey() string             { return a.SigningKey }
func (a Auth) GetTokenExpiration() time.Duration { return a.TokenExpiration }
func (a Auth) GetIssuer() string                 { return a.Issuer }
func (a Auth) GetAudience() []string             { return a.Audience }
func (a Auth) GetBcryptCost() int                { return a.BcryptCost }
func (a Auth) GetMaxLoginAttempts() int          { return a.MaxLoginAttempts }
func (a Auth) GetLoginCooldown() time.Duration   { return a.LoginCooldown }

// Persistence selects the database
type Persistence struct {
	Driver string
	DSN    string
	Debug  bool
}

func (p Persistence) GetDriver() string { return p.Driver }
func (p Persistence) GetDSN() string    { return p.DSN }
func (p Persistence) GetDebug() bool    { return p.Debug }

// Limit is a fixed window request cap
type Limit struct {
	Max    int
	Window time.Duration
}

// Server configures the HTTP surface
type Server struct {
	Port           string
	CORSOrigins    []string
	TrustedProxies []string
	ProxyHeader    string
	LoginLimit     Limit
	RegisterLimit  Limit
}

func (s Server) GetAddr() string { return ":" + strings.TrimPrefix(s.Port, ":") }

// Load reads envFiles (missing files are ignored) and then the process
// environment. Variables already set win over file values.
func Load(envFiles ...string) (*BaseConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read env file").
				WithMetadata(map[string]any{"file": f})
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function
func FromEnv(getenv func(string) string) (*BaseConfig, error) {
	r := reader{getenv: getenv}

	cfg := &BaseConfig{
		Env: strings.ToLower(r.str("ENV", "development")),
		Auth: Auth{
			SigningKey:       r.str("SECRET_KEY", ""),
			TokenExpiration:  time.Duration(r.int("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			Issuer:           r.str("TOKEN_ISSUER", ""),
			Audience:         r.list("TOKEN_AUDIENCE", nil),
			BcryptCost:       r.int("BCRYPT_COST", 12),
			MaxLoginAttempts: r.int("MAX_LOGIN_ATTEMPTS", 5),
			LoginCooldown:    r.duration("LOGIN_COOLDOWN", 15*time.Minute),
		},
		Persistence: Persistence{
			Driver: strings.ToLower(r.str("DATABASE_DRIVER", "sqlite")),
			DSN:    r.str("DATABASE_URL", "file:jobtracker.db?cache=shared"),
			Debug:  r.bool("DB_DEBUG", false),
		},
		Server: Server{
			Port:           r.str("PORT", "8000"),
			CORSOrigins:    r.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
			TrustedProxies: r.list("TRUSTED_PROXIES", nil),
			ProxyHeader:    r.str("PROXY_HEADER", "X-Forwarded-For"),
			LoginLimit: Limit{
				Max:    r.int("LOGIN_RATE_LIMIT", 5),
				Window: r.duration("LOGIN_RATE_WINDOW", 60*time.Second),
			},
			RegisterLimit: Limit{
				Max:    r.int("REGISTER_RATE_LIMIT", 3),
				Window: r.duration("REGISTER_RATE_WINDOW", 300*time.Second),
			},
		},
	}

	if len(r.errs) > 0 {
		return nil, goerrors.NewValidationFromMap("invalid environment", r.errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports a development or test environment
func (c BaseConfig) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "test"
}

func (c BaseConfig) Validate() error {
	keyRules := []validation.Rule{validation.Required}
	if !c.IsDevelopment() {
		keyRules = append(keyRules, validation.RuneLength(MinSecretKeyLength, 0))
	}

	err := validation.Errors{
		"SECRET_KEY": validation.Validate(c.Auth.SigningKey, keyRules...),
		"ACCESS_TOKEN_EXPIRE_MINUTES": validation.Validate(c.Auth.TokenExpiration,
			validation.Min(time.Minute)),
		"BCRYPT_COST":        validation.Validate(c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
		"MAX_LOGIN_ATTEMPTS": validation.Validate(c.Auth.MaxLoginAttempts, validation.Min(0)),
		"DATABASE_DRIVER": validation.Validate(c.Persistence.Driver,
			validation.Required, validation.In("sqlite", "sqlite3", "postgres", "postgresql", "pg")),
		"DATABASE_URL": validation.Validate(c.Persistence.DSN, validation.Required),
		"PORT":         validation.Validate(c.Server.Port, validation.Required),
	}.Filter()

	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

type reader struct {
	getenv func(string) string
	errs   map[string]string
}

func (r *reader) fail(key, msg string) {
	if r.errs == nil {
		r.errs = make(map[string]string)
	}
	r.errs[key] = msg
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, "must be an integer")
		return def
	}
	return v
}

func (r *reader) bool(key string, def bool) bool {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, "must be a boolean")
		return def
	}
	return v
}

// duration accepts Go durations ("90s") or a bare number of seconds
func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, "must be a duration")
		return def
	}
	return v
}

func (r *reader) list(key string, def []string) []string {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
