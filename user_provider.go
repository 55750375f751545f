package jobtracker

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// MaxLoginAttempts is the default number of failed logins allowed within
// CoolDownPeriod
var MaxLoginAttempts = 5

// CoolDownPeriod is the default period in which we enforce a cool down
var CoolDownPeriod = 15 * time.Minute

// UserProvider handles users
type UserProvider struct {
	store       UserTracker
	hasher      PasswordAuthenticator
	logger      Logger
	clock       Clock
	maxAttempts int
	cooldown    time.Duration

	dummyOnce *sync.Once
	dummyHash string
}

// unknownIdentityPassword is hashed once per hasher so lookups for unknown
// identifiers pay the same comparison cost as a wrong password.
const unknownIdentityPassword = "jobtracker-unknown-identity"

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:       store,
		hasher:      BcryptHasher{},
		logger:      defaultLogger("jobtracker.user_provider"),
		maxAttempts: MaxLoginAttempts,
		cooldown:    CoolDownPeriod,
		dummyOnce:   new(sync.Once),
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = resolveLogger("jobtracker.user_provider", l)
	return u
}

func (u *UserProvider) WithClock(clock Clock) *UserProvider {
	u.clock = clock
	return u
}

func (u *UserProvider) WithHasher(h PasswordAuthenticator) *UserProvider {
	if h != nil {
		u.hasher = h
		u.dummyOnce = new(sync.Once)
	}
	return u
}

// WithLockout sets how many failed attempts are allowed within window.
// A non positive max disables the lockout.
func (u *UserProvider) WithLockout(max int, window time.Duration) *UserProvider {
	u.maxAttempts = max
	if window > 0 {
		u.cooldown = window
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return identity
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			_ = u.hasher.ComparePasswordAndHash(password, u.unknownIdentityHash())
			return nil, fail(ErrMismatchedHashAndPassword)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	now := u.clock.now()
	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(now, *user.LoginAttemptAt, u.cooldown.String())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	//if we have too many attempts in the given window, cool off!
	if u.maxAttempts > 0 && user.LoginAttempts >= u.maxAttempts {
		u.logger.Warn("login blocked during cooldown", "user_id", user.ID.String())
		return nil, fail(ErrTooManyLoginAttempts)
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := u.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, fail(ErrMismatchedHashAndPassword)
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	return identityFromUser(user), nil
}

func (u *UserProvider) unknownIdentityHash() string {
	u.dummyOnce.Do(func() {
		hash, err := u.hasher.HashPassword(unknownIdentityPassword)
		if err != nil {
			u.logger.Error("failed to prepare unknown identity hash", "error", err)
			return
		}
		u.dummyHash = hash
	})
	return u.dummyHash
}

// FindIdentityByID resolves the identity behind a token subject
func (u *UserProvider) FindIdentityByID(ctx context.Context, id string) (Identity, error) {
	user, err := u.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return identityFromUser(user), nil
}

type authIdentity struct {
	id    string
	email string
	role  string
}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:    user.ID.String(),
		email: user.Email,
		role:  string(user.Role),
	}
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() string {
	return a.role
}

var _ Identity = authIdentity{}
