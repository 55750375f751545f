package jobtracker

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*User, error)
	Login(ctx context.Context, identifier, password string) (string, error)
	CurrentUser(ctx context.Context, userID string) (*User, error)
	DeleteAccount(ctx context.Context, userID string) error
	TokenService() TokenService
}

// Auther implements Authenticator on top of the repositories
type Auther struct {
	repo         RepositoryManager
	provider     IdentityProvider
	tokenService TokenService
	register     *RegisterUserHandler
	logger       Logger
	activitySink ActivitySink
	clock        Clock
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, provider IdentityProvider, tokens TokenService, hasher PasswordAuthenticator) *Auther {
	return &Auther{
		repo:         repo,
		provider:     provider,
		tokenService: tokens,
		register:     NewRegisterUserHandler(repo, hasher),
		logger:       defaultLogger("jobtracker.auth"),
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = resolveLogger("jobtracker.auth", logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithClock(clock Clock) *Auther {
	s.clock = clock
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates an account. The password is checked against the
// strength policy before it is hashed.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	user, err := s.register.Register(ctx, msg)
	if err != nil {
		s.logger.Info("registration rejected", "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.ID.String(),
	})

	return user, nil
}

func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Info("login verify identity error", "error", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"identifier": NormalizeEmail(identifier), "error": err.Error()},
		})
		return "", err
	}

	if identity == nil || identity.ID() == "" {
		s.logger.Error("login identity is nil or zero value")
		return "", fail(ErrIdentityNotFound)
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("login failed to sign token", "error", err)
		return "", err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    identity.ID(),
	})

	return token, nil
}

// CurrentUser loads the user a verified token refers to. A token whose
// user no longer exists is treated as invalid.
func (s *Auther) CurrentUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, fail(ErrTokenInvalid)
		}
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user and every application it owns in one
// transaction.
func (s *Auther) DeleteAccount(ctx context.Context, userID string) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().DeleteTx(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		UserID:    userID,
	})
	return nil
}

func (s *Auther) emit(ctx context.Context, event ActivityEvent) {
	emitActivity(ctx, s.activitySink, s.logger, s.clock, event)
}
