package jobtracker

import (
	"context"
	"math"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// DefaultTimelineDays is the timeline window when none is requested
	DefaultTimelineDays = 30
	// MaxTimelineDays caps the timeline window
	MaxTimelineDays = 365
	// ReminderHorizonDays is how far ahead upcoming reminders reach
	ReminderHorizonDays = 7
	// WeekWindowDays is the rolling window counted as "this week"
	WeekWindowDays = 7
)

// Summary is the headline statistics for one user
type Summary struct {
	TotalApplications     int                       `json:"total_applications"`
	ApplicationsThisWeek  int                       `json:"applications_this_week"`
	ApplicationsThisMonth int                       `json:"applications_this_month"`
	SuccessRate           int                       `json:"success_rate"`
	StatusBreakdown       map[ApplicationStatus]int `json:"status_breakdown"`
}

// TimelinePoint is the number of applications submitted on one day
type TimelinePoint struct {
	Date  Date `json:"date"`
	Count int  `json:"count"`
}

// Reminder identifies an application with a follow-up date
type Reminder struct {
	ID            uuid.UUID         `json:"id"`
	CompanyName   string            `json:"company_name"`
	JobTitle      string            `json:"job_title"`
	Status        ApplicationStatus `json:"status"`
	FollowUpDate  Date              `json:"follow_up_date"`
	DaysFromToday int               `json:"days_from_today"`
}

// Reminders partitions follow-ups relative to today
type Reminders struct {
	Overdue  []Reminder `json:"overdue"`
	Upcoming []Reminder `json:"upcoming"`
}

// Analytics computes statistics over a user's non-archived applications
type Analytics interface {
	Summary(ctx context.Context, userID string) (*Summary, error)
	Timeline(ctx context.Context, userID string, days int) ([]TimelinePoint, error)
	Reminders(ctx context.Context, userID string) (*Reminders, error)
}

// Aggregator implements Analytics with aggregate queries on bun
type Aggregator struct {
	db     *bun.DB
	clock  Clock
	logger Logger
}

var _ Analytics = (*Aggregator)(nil)

// NewAggregator creates an analytics aggregator
func NewAggregator(db *bun.DB) *Aggregator {
	return &Aggregator{db: db, logger: NopLogger()}
}

// WithClock overrides the source of "today"
func (a *Aggregator) WithClock(clock Clock) *Aggregator {
	a.clock = clock
	return a
}

func (a *Aggregator) WithLogger(logger Logger) *Aggregator {
	a.logger = resolveLogger("jobtracker.analytics", logger)
	return a
}

// SuccessRate is the share of applications that reached offer or accepted
// as a whole percentage. It is 0 when total is 0.
func SuccessRate(successes, total int) int {
	if total <= 0 || successes <= 0 {
		return 0
	}
	if successes > total {
		successes = total
	}
	return int(math.Round(float64(successes) * 100 / float64(total)))
}

type statusCount struct {
	Status ApplicationStatus `bun:"status"`
	Count  int               `bun:"count"`
}

// Summary computes counts, success rate and a full status breakdown
func (a *Aggregator) Summary(ctx context.Context, userID string) (*Summary, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return nil, err
	}

	today := Today(a.clock)

	summary := &Summary{StatusBreakdown: make(map[ApplicationStatus]int, len(allStatuses))}
	for _, s := range allStatuses {
		summary.StatusBreakdown[s] = 0
	}

	var counts []statusCount
	err = a.active(owner).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count applications by status")
	}

	successes := 0
	for _, c := range counts {
		if !c.Status.Valid() {
			a.logger.Warn("skipping unknown status in breakdown", "status", c.Status)
			continue
		}
		summary.StatusBreakdown[c.Status] = c.Count
		summary.TotalApplications += c.Count
		if c.Status.IsSuccess() {
			successes += c.Count
		}
	}

	weekStart := today.AddDays(-(WeekWindowDays - 1))
	if summary.ApplicationsThisWeek, err = a.active(owner).
		Where("date_applied >= ? AND date_applied <= ?", weekStart, today).
		Count(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count weekly applications")
	}

	monthStart := today.FirstOfMonth()
	nextMonth := Date{t: monthStart.t.AddDate(0, 1, 0)}
	if summary.ApplicationsThisMonth, err = a.active(owner).
		Where("date_applied >= ? AND date_applied < ?", monthStart, nextMonth).
		Count(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count monthly applications")
	}

	summary.SuccessRate = SuccessRate(successes, summary.TotalApplications)

	return summary, nil
}

type dayCount struct {
	DateApplied Date `bun:"date_applied"`
	Count       int  `bun:"count"`
}

// ValidateTimelineDays rejects windows outside 1..MaxTimelineDays
func ValidateTimelineDays(days int) error {
	if days < 1 || days > MaxTimelineDays {
		return errors.NewValidation("invalid timeline window", errors.FieldError{
			Field:   "days",
			Message: "must be between 1 and 365",
			Value:   days,
		})
	}
	return nil
}

// TimelineWindow returns the first and last day of a timeline of the
// given length ending today.
func TimelineWindow(today Date, days int) (Date, Date) {
	return today.AddDays(-(days - 1)), today
}

// Timeline returns one point per day for the last days days, oldest first,
// including days without submissions.
func (a *Aggregator) Timeline(ctx context.Context, userID string, days int) ([]TimelinePoint, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return nil, err
	}

	if days == 0 {
		days = DefaultTimelineDays
	}
	if err := ValidateTimelineDays(days); err != nil {
		return nil, err
	}

	start, end := TimelineWindow(Today(a.clock), days)

	var rows []dayCount
	err = a.active(owner).
		Column("date_applied").
		ColumnExpr("COUNT(*) AS count").
		Where("date_applied >= ? AND date_applied <= ?", start, end).
		Group("date_applied").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build timeline")
	}

	byDay := make(map[string]int, len(rows))
	for _, r := range rows {
		byDay[r.DateApplied.String()] += r.Count
	}

	return fillTimeline(start, days, byDay), nil
}

func fillTimeline(start Date, days int, byDay map[string]int) []TimelinePoint {
	points := make([]TimelinePoint, days)
	for i := range points {
		d := start.AddDays(i)
		points[i] = TimelinePoint{Date: d, Count: byDay[d.String()]}
	}
	return points
}

// Reminders returns overdue follow-ups (oldest first) and follow-ups due
// within the next ReminderHorizonDays days (soonest first).
func (a *Aggregator) Reminders(ctx context.Context, userID string) (*Reminders, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return nil, err
	}

	today := Today(a.clock)
	horizon := today.AddDays(ReminderHorizonDays)

	var apps []*Application
	err = a.db.NewSelect().
		Model(&apps).
		Column("id", "company_name", "job_title", "status", "follow_up_date").
		Where("user_id = ?", owner).
		Where("is_archived = ?", false).
		Where("follow_up_date IS NOT NULL").
		Where("follow_up_date <= ?", horizon).
		Order("follow_up_date ASC", "company_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load reminders")
	}

	return PartitionReminders(apps, today), nil
}

// PartitionReminders splits applications by follow-up date. Applications
// without a follow-up date, archived ones, and those beyond the horizon are
// left out. Each application lands in at most one list.
func PartitionReminders(apps []*Application, today Date) *Reminders {
	out := &Reminders{Overdue: []Reminder{}, Upcoming: []Reminder{}}
	horizon := today.AddDays(ReminderHorizonDays)

	for _, app := range apps {
		if app == nil || app.IsArchived || app.FollowUpDate == nil || app.FollowUpDate.IsZero() {
			continue
		}

		due := *app.FollowUpDate
		r := Reminder{
			ID:            app.ID,
			CompanyName:   app.CompanyName,
			JobTitle:      app.JobTitle,
			Status:        app.Status,
			FollowUpDate:  due,
			DaysFromToday: daysBetween(today, due),
		}

		switch {
		case due.Before(today):
			out.Overdue = append(out.Overdue, r)
		case !due.After(horizon):
			out.Upcoming = append(out.Upcoming, r)
		}
	}

	return out
}

func (a *Aggregator) active(owner uuid.UUID) *bun.SelectQuery {
	return a.db.NewSelect().
		Model((*Application)(nil)).
		Where("user_id = ?", owner).
		Where("is_archived = ?", false)
}

func daysBetween(from, to Date) int {
	return int(math.Round(to.t.Sub(from.t).Hours() / 24))
}
