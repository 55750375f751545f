package jobtracker

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Users is the user store
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	DeleteTx(ctx context.Context, tx bun.IDB, id string) error
}

// UsersRepository implements Users on top of the generic bun repository
type UsersRepository struct {
	repository.Repository[*User]
	db    *bun.DB
	clock Clock
}

var _ Users = (*UsersRepository)(nil)

// NewUsersRepository creates a new repository. Identifier lookups match the
// normalized email.
func NewUsersRepository(db *bun.DB) *UsersRepository {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string { return "email" },
		GetIdentifierValue: func(u *User) string {
			if u == nil {
				return ""
			}
			return u.Email
		},
		ResolveIdentifier: func(identifier string) []repository.IdentifierOption {
			return []repository.IdentifierOption{{Column: "email", Value: NormalizeEmail(identifier)}}
		},
	})

	return &UsersRepository{Repository: repo, db: db}
}

// WithClock overrides the time source used for timestamps
func (r *UsersRepository) WithClock(clock Clock) *UsersRepository {
	r.clock = clock
	return r
}

// NormalizeEmail trims and lowercases an email so lookups and the unique
// index are case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// GetByID finds a user by primary key
func (r *UsersRepository) GetByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fail(ErrIdentityNotFound)
	}

	user, err := r.Repository.GetByID(ctx, uid.String())
	if err != nil {
		return nil, notFoundOr(err, ErrIdentityNotFound, "failed to load user")
	}
	return user, nil
}

// GetByIdentifier finds a user by email
func (r *UsersRepository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	if NormalizeEmail(identifier) == "" {
		return nil, fail(ErrIdentityNotFound)
	}

	user, err := r.Repository.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, notFoundOr(err, ErrIdentityNotFound, "failed to load user")
	}
	return user, nil
}

// Create inserts a new user
func (r *UsersRepository) Create(ctx context.Context, user *User) (*User, error) {
	return r.CreateTx(ctx, r.db, user)
}

// CreateTx inserts a new user using the given connection or transaction
func (r *UsersRepository) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := r.clock.now()
	user.Email = NormalizeEmail(user.Email)
	user.FullName = strings.TrimSpace(user.FullName)
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if !IsValidRole(user.Role) {
		return nil, errors.NewValidation("invalid user",
			errors.FieldError{Field: "role", Message: "must be one of user, admin"})
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("email = ?", user.Email).
		Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email")
	}
	if exists {
		return nil, fail(ErrEmailAlreadyRegistered)
	}

	created, err := r.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if repository.IsDuplicatedKey(err) || isUniqueViolation(err) {
			return nil, fail(ErrEmailAlreadyRegistered)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return created, nil
}

// TrackAttemptedLogin increments the failed attempt counter
func (r *UsersRepository) TrackAttemptedLogin(ctx context.Context, user *User) error {
	now := r.clock.now()
	user.LoginAttempts++
	user.LoginAttemptAt = &now

	_, err := r.db.NewUpdate().
		Model(user).
		Column("login_attempts", "login_attempt_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login attempt")
	}
	return nil
}

// TrackSuccessfulLogin resets the attempt counter and stamps the login
func (r *UsersRepository) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	now := r.clock.now()
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	user.LastLoginAt = &now

	_, err := r.db.NewUpdate().
		Model(user).
		Column("login_attempts", "login_attempt_at", "last_login_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login")
	}
	return nil
}

// DeleteTx removes a user together with every application it owns
func (r *UsersRepository) DeleteTx(ctx context.Context, tx bun.IDB, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fail(ErrIdentityNotFound)
	}

	user, err := r.Repository.GetByIDTx(ctx, tx, uid.String())
	if err != nil {
		return notFoundOr(err, ErrIdentityNotFound, "failed to load user")
	}

	if _, err := tx.NewDelete().
		Model((*Application)(nil)).
		Where("user_id = ?", uid).
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user applications")
	}

	if err := r.Repository.DeleteTx(ctx, tx, user); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}
	return nil
}

func notFoundOr(err error, notFound *errors.Error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return fail(notFound)
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

// isUniqueViolation covers drivers the repository error mappers do not
// recognize, such as the pure Go sqlite driver.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	for ; err != nil; err = errors.Unwrap(err) {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return true
		}
	}
	return false
}
