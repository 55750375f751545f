package jobtracker

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Applications() Applications
}

type mngr struct {
	db           *bun.DB
	users        Users
	applications Applications
}

// NewRepositoryManager wires the bun backed repositories. A nil clock uses
// the wall clock.
func NewRepositoryManager(db *bun.DB, clock Clock) RepositoryManager {
	return &mngr{
		db:           db,
		users:        NewUsersRepository(db).WithClock(clock),
		applications: NewApplicationsRepository(db).WithClock(clock),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.applications == nil {
		return errors.New("repository applications should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Applications() Applications {
	return m.applications
}
