package jobtracker

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Applications is the owner scoped application store. Every method takes
// the acting user id; rows owned by anyone else behave as if they do not
// exist.
type Applications interface {
	List(ctx context.Context, userID string, filter ListFilter) ([]*Application, error)
	Get(ctx context.Context, userID, id string) (*Application, error)
	Create(ctx context.Context, userID string, input ApplicationInput) (*Application, error)
	Update(ctx context.Context, userID, id string, patch ApplicationPatch) (*Application, error)
	ToggleArchive(ctx context.Context, userID, id string) (*Application, error)
	Delete(ctx context.Context, userID, id string) error
}

// ApplicationsRepository implements Applications on bun
type ApplicationsRepository struct {
	base  repository.Repository[*Application]
	db    *bun.DB
	clock Clock
}

var _ Applications = (*ApplicationsRepository)(nil)

// NewApplicationsRepository creates a new repository
func NewApplicationsRepository(db *bun.DB) *ApplicationsRepository {
	base := repository.NewRepository[*Application](db, repository.ModelHandlers[*Application]{
		NewRecord: func() *Application { return &Application{} },
		GetID: func(a *Application) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Application, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})
	return &ApplicationsRepository{base: base, db: db}
}

// WithClock overrides the time source used for timestamps and the
// "not in the future" check on date_applied.
func (r *ApplicationsRepository) WithClock(clock Clock) *ApplicationsRepository {
	r.clock = clock
	return r
}

// List returns the user's applications, newest submission first
func (r *ApplicationsRepository) List(ctx context.Context, userID string, filter ListFilter) ([]*Application, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return nil, err
	}

	filter = filter.normalized()
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fail(ErrInvalidStatus, map[string]any{"status": string(*filter.Status)})
	}

	apps := make([]*Application, 0)
	q := r.db.NewSelect().
		Model(&apps).
		Where("?TableAlias.user_id = ?", owner)

	if filter.Status != nil {
		q = q.Where("?TableAlias.status = ?", *filter.Status)
	}

	if term := strings.TrimSpace(filter.Search); term != "" {
		q = q.Where("?TableAlias.company_name_search LIKE ? ESCAPE '!'", "%"+escapeLike(FoldSearch(term))+"%")
	}

	if !filter.IncludeArchived {
		q = q.Where("?TableAlias.is_archived = ?", false)
	}

	err = q.
		OrderExpr("?TableAlias.date_applied DESC").
		OrderExpr("?TableAlias.created_at DESC").
		OrderExpr("?TableAlias.id DESC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list applications")
	}

	return apps, nil
}

// Get returns one application owned by userID
func (r *ApplicationsRepository) Get(ctx context.Context, userID, id string) (*Application, error) {
	return r.get(ctx, r.db, userID, id)
}

func (r *ApplicationsRepository) get(ctx context.Context, db bun.IDB, userID, id string) (*Application, error) {
	owner, appID, err := parseScope(userID, id)
	if err != nil {
		return nil, err
	}

	app, err := r.base.GetByIDTx(ctx, db, appID.String(), repository.SelectBy("user_id", "=", owner.String()))
	if err != nil {
		return nil, notFoundOr(err, ErrApplicationNotFound, "failed to load application")
	}
	return app, nil
}

// Create stores a new application for userID
func (r *ApplicationsRepository) Create(ctx context.Context, userID string, input ApplicationInput) (*Application, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return nil, err
	}

	input = input.normalized()
	if err := input.Validate(Today(r.clock)); err != nil {
		return nil, err
	}

	now := r.clock.now()
	app := &Application{
		UserID:          owner,
		CompanyName:     input.CompanyName,
		CompanySearch:   FoldSearch(input.CompanyName),
		JobTitle:        input.JobTitle,
		Status:          input.Status,
		DateApplied:     input.DateApplied,
		JobURL:          input.JobURL,
		Notes:           input.Notes,
		FollowUpDate:    input.FollowUpDate,
		LastContactDate: input.LastContactDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	app, err = r.base.Create(ctx, app)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create application")
	}

	return app, nil
}

// Update applies a partial update. Only the columns present in the patch
// are written, so concurrent updates to different fields do not clobber
// each other.
func (r *ApplicationsRepository) Update(ctx context.Context, userID, id string, patch ApplicationPatch) (*Application, error) {
	patch = patch.normalized()
	if err := patch.Validate(Today(r.clock)); err != nil {
		return nil, err
	}

	var app *Application
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if app, err = r.get(ctx, tx, userID, id); err != nil {
			return err
		}

		columns := patch.apply(app)
		if len(columns) == 0 {
			return nil
		}

		app.UpdatedAt = r.clock.now()
		columns = append(columns, "updated_at")

		_, err = tx.NewUpdate().
			Model(app).
			Column(columns...).
			Where("id = ? AND user_id = ?", app.ID, app.UserID).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// ToggleArchive flips the archived flag
func (r *ApplicationsRepository) ToggleArchive(ctx context.Context, userID, id string) (*Application, error) {
	owner, appID, err := parseScope(userID, id)
	if err != nil {
		return nil, err
	}

	res, err := r.db.NewUpdate().
		Model((*Application)(nil)).
		Set("is_archived = NOT is_archived").
		Set("updated_at = ?", r.clock.now()).
		Where("id = ? AND user_id = ?", appID, owner).
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to archive application")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fail(ErrApplicationNotFound)
	}

	return r.Get(ctx, userID, id)
}

// Delete permanently removes the application
func (r *ApplicationsRepository) Delete(ctx context.Context, userID, id string) error {
	owner, appID, err := parseScope(userID, id)
	if err != nil {
		return err
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.get(ctx, tx, userID, id); err != nil {
			return err
		}

		err := r.base.DeleteWhereTx(ctx, tx,
			repository.DeleteByID(appID.String()),
			repository.DeleteBy("user_id", "=", owner.String()),
		)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete application")
		}
		return nil
	})
}

func (in ApplicationInput) normalized() ApplicationInput {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Status = ApplicationStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	in.JobURL = trimOptional(in.JobURL)
	in.Notes = trimOptional(in.Notes)
	if in.Status == "" {
		in.Status = StatusApplied
	}
	return in
}

// Validate checks the input against today's date
func (in ApplicationInput) Validate(today Date) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.CompanyName, validation.Required.Error("company name is required"), validation.Length(1, 255)),
		validation.Field(&in.JobTitle, validation.Required.Error("job title is required"), validation.Length(1, 255)),
		validation.Field(&in.Status, validation.In(statusValues()...).Error("must be a valid status")),
		validation.Field(&in.DateApplied, validation.Required.Error("date applied is required"), validation.By(notAfter(today))),
		validation.Field(&in.JobURL, is.URL, validation.Length(0, 2048)),
		validation.Field(&in.Notes, validation.Length(0, 10000)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid application")
	}
	return nil
}

func (p ApplicationPatch) normalized() ApplicationPatch {
	if p.CompanyName != nil {
		v := strings.TrimSpace(*p.CompanyName)
		p.CompanyName = &v
	}
	if p.JobTitle != nil {
		v := strings.TrimSpace(*p.JobTitle)
		p.JobTitle = &v
	}
	if p.Status != nil {
		v := ApplicationStatus(strings.ToLower(strings.TrimSpace(string(*p.Status))))
		p.Status = &v
	}
	if p.JobURL != nil {
		if p.JobURL = trimOptional(p.JobURL); p.JobURL == nil {
			p.Clear("job_url")
		}
	}
	if p.Notes != nil {
		if p.Notes = trimOptional(p.Notes); p.Notes == nil {
			p.Clear("notes")
		}
	}
	return p
}

// Validate checks the fields present in the patch
func (p ApplicationPatch) Validate(today Date) error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.CompanyName, validation.NilOrNotEmpty.Error("company name cannot be blank"), validation.Length(1, 255)),
		validation.Field(&p.JobTitle, validation.NilOrNotEmpty.Error("job title cannot be blank"), validation.Length(1, 255)),
		validation.Field(&p.Status, validation.NilOrNotEmpty.Error("must be a valid status"), validation.In(statusValues()...).Error("must be a valid status")),
		validation.Field(&p.DateApplied, validation.By(notAfter(today))),
		validation.Field(&p.JobURL, is.URL, validation.Length(0, 2048)),
		validation.Field(&p.Notes, validation.Length(0, 10000)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid application update")
	}
	return nil
}

// apply copies the patch onto app and returns the changed columns
func (p ApplicationPatch) apply(app *Application) []string {
	var columns []string

	if p.CompanyName != nil {
		app.CompanyName = *p.CompanyName
		app.CompanySearch = FoldSearch(app.CompanyName)
		columns = append(columns, "company_name", "company_name_search")
	}
	if p.JobTitle != nil {
		app.JobTitle = *p.JobTitle
		columns = append(columns, "job_title")
	}
	if p.Status != nil {
		app.Status = *p.Status
		columns = append(columns, "status")
	}
	if p.DateApplied != nil && !p.DateApplied.IsZero() {
		app.DateApplied = *p.DateApplied
		columns = append(columns, "date_applied")
	}

	if p.JobURL != nil {
		app.JobURL = p.JobURL
		columns = append(columns, "job_url")
	} else if p.Clears("job_url") {
		app.JobURL = nil
		columns = append(columns, "job_url")
	}

	if p.Notes != nil {
		app.Notes = p.Notes
		columns = append(columns, "notes")
	} else if p.Clears("notes") {
		app.Notes = nil
		columns = append(columns, "notes")
	}

	if p.FollowUpDate != nil && !p.FollowUpDate.IsZero() {
		app.FollowUpDate = p.FollowUpDate
		columns = append(columns, "follow_up_date")
	} else if p.FollowUpDate != nil || p.Clears("follow_up_date") {
		app.FollowUpDate = nil
		columns = append(columns, "follow_up_date")
	}

	if p.LastContactDate != nil && !p.LastContactDate.IsZero() {
		app.LastContactDate = p.LastContactDate
		columns = append(columns, "last_contact_date")
	} else if p.LastContactDate != nil || p.Clears("last_contact_date") {
		app.LastContactDate = nil
		columns = append(columns, "last_contact_date")
	}

	return columns
}

func notAfter(today Date) validation.RuleFunc {
	return func(value any) error {
		var d Date
		switch v := value.(type) {
		case Date:
			d = v
		case *Date:
			if v == nil {
				return nil
			}
			d = *v
		default:
			return nil
		}
		if !d.IsZero() && d.After(today) {
			return validation.NewError("validation_date_future", "cannot be in the future")
		}
		return nil
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// FoldSearch is the case folded form stored in company_name_search and
// applied to search terms, so matching does not depend on the database's
// own notion of case.
func FoldSearch(term string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(term)))
}

func escapeLike(term string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(term)
}

func parseOwner(userID string) (uuid.UUID, error) {
	owner, err := uuid.Parse(userID)
	if err != nil || owner == uuid.Nil {
		return uuid.Nil, errors.New("acting user is not authenticated", errors.CategoryAuth).
			WithTextCode(TextCodeTokenInvalid)
	}
	return owner, nil
}

func parseScope(userID, id string) (uuid.UUID, uuid.UUID, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	appID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, fail(ErrApplicationNotFound)
	}
	return owner, appID, nil
}
