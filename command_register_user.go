package jobtracker

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterUserMessage is the registration request
type RegisterUserMessage struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name" form:"full_name"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

var (
	_ command.Message                        = RegisterUserMessage{}
	_ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)
)

// Validate checks the message shape and the password policy
func (e RegisterUserMessage) Validate() error {
	e.Email = strings.TrimSpace(e.Email)
	e.FullName = strings.TrimSpace(e.FullName)

	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 255), is.EmailFormat),
		validation.Field(&e.Password, validation.Required, validation.Length(0, 72)),
		validation.Field(&e.FullName, validation.Length(0, 255)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid registration")
	}

	return ValidatePasswordStrength(e.Password)
}

// RegisterUserHandler creates accounts
type RegisterUserHandler struct {
	repo    RepositoryManager
	hasher  PasswordAuthenticator
	timeout time.Duration
}

// NewRegisterUserHandler returns a handler hashing with hasher
func NewRegisterUserHandler(repo RepositoryManager, hasher PasswordAuthenticator) *RegisterUserHandler {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &RegisterUserHandler{repo: repo, hasher: hasher, timeout: 10 * time.Second}
}

// Execute runs the registration as a command, discarding the new record
func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	_, err := h.Register(ctx, event)
	return err
}

// Register creates the account and returns the stored user
func (h *RegisterUserHandler) Register(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	user := &User{
		Email:    event.Email,
		FullName: event.FullName,
		Role:     RoleUser,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}
