package jobtracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	jobtracker "github.com/goliatone/go-jobtracker"
	"github.com/goliatone/go-jobtracker/repository"
)

const testSigningKey = "test-signing-key-with-enough-entropy-1234"

// 2024-01-15 is a Monday
var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type mutableClock struct {
	now time.Time
}

func (m *mutableClock) Clock() jobtracker.Clock {
	return func() time.Time { return m.now }
}

func (m *mutableClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func fixedClock(t time.Time) jobtracker.Clock {
	return func() time.Time { return t }
}

type testConfig struct {
	expiration  time.Duration
	maxAttempts int
	cooldown    time.Duration
}

func newTestConfig() testConfig {
	return testConfig{
		expiration:  30 * time.Minute,
		maxAttempts: 5,
		cooldown:    15 * time.Minute,
	}
}

func (c testConfig) GetSigningKey() string             { return testSigningKey }
func (c testConfig) GetTokenExpiration() time.Duration { return c.expiration }
func (c testConfig) GetIssuer() string                 { return "jobtracker-test" }
func (c testConfig) GetAudience() []string             { return []string{"jobtracker-test"} }
func (c testConfig) GetBcryptCost() int                { return bcrypt.MinCost }
func (c testConfig) GetMaxLoginAttempts() int          { return c.maxAttempts }
func (c testConfig) GetLoginCooldown() time.Duration   { return c.cooldown }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Options{
		Driver: repository.DriverSQLite,
		DSN:    ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// createUser inserts a user directly through the repository
func createUser(t *testing.T, repo jobtracker.RepositoryManager, email, password string) *jobtracker.User {
	t.Helper()

	hash, err := jobtracker.NewBcryptHasher(bcrypt.MinCost).HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Users().Create(context.Background(), &jobtracker.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test User",
	})
	require.NoError(t, err)
	return user
}

func mustDate(t *testing.T, s string) jobtracker.Date {
	t.Helper()
	d, err := jobtracker.ParseDate(s)
	require.NoError(t, err)
	return d
}

func datePtr(t *testing.T, s string) *jobtracker.Date {
	t.Helper()
	d := mustDate(t, s)
	return &d
}

func strPtr(s string) *string { return &s }

type capturingSink struct {
	events []jobtracker.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt jobtracker.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []jobtracker.ActivityEventType {
	out := make([]jobtracker.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}
