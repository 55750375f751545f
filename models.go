package jobtracker

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role
	RoleUser UserRole = "user"
	// RoleAdmin is an admin role
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r UserRole) bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	FullName       string     `bun:"full_name,notnull" json:"full_name"`
	Role           UserRole   `bun:"role,notnull" json:"role"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LastLoginAt    *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// Application is a job application owned by a single user
type Application struct {
	bun.BaseModel   `bun:"table:applications,alias:app"`
	ID              uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID          uuid.UUID         `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CompanyName     string            `bun:"company_name,notnull" json:"company_name"`
	CompanySearch   string            `bun:"company_name_search,notnull" json:"-"`
	JobTitle        string            `bun:"job_title,notnull" json:"job_title"`
	Status          ApplicationStatus `bun:"status,notnull" json:"status"`
	DateApplied     Date              `bun:"date_applied,notnull,type:date" json:"date_applied"`
	JobURL          *string           `bun:"job_url" json:"job_url"`
	Notes           *string           `bun:"notes" json:"notes"`
	FollowUpDate    *Date             `bun:"follow_up_date,type:date" json:"follow_up_date"`
	LastContactDate *Date             `bun:"last_contact_date,type:date" json:"last_contact_date"`
	IsArchived      bool              `bun:"is_archived,notnull" json:"is_archived"`
	CreatedAt       time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull" json:"updated_at"`
}

// ApplicationInput carries the fields accepted when creating an application
type ApplicationInput struct {
	CompanyName     string            `json:"company_name"`
	JobTitle        string            `json:"job_title"`
	Status          ApplicationStatus `json:"status,omitempty"`
	DateApplied     Date              `json:"date_applied"`
	JobURL          *string           `json:"job_url,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	FollowUpDate    *Date             `json:"follow_up_date,omitempty"`
	LastContactDate *Date             `json:"last_contact_date,omitempty"`
}

// ApplicationPatch carries a partial update. Nil fields are left unchanged;
// optional fields sent as JSON null, or passed to Clear, are reset.
type ApplicationPatch struct {
	CompanyName     *string            `json:"company_name,omitempty"`
	JobTitle        *string            `json:"job_title,omitempty"`
	Status          *ApplicationStatus `json:"status,omitempty"`
	DateApplied     *Date              `json:"date_applied,omitempty"`
	JobURL          *string            `json:"job_url,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	FollowUpDate    *Date              `json:"follow_up_date,omitempty"`
	LastContactDate *Date              `json:"last_contact_date,omitempty"`

	cleared map[string]bool
}

var clearableFields = []string{"job_url", "notes", "follow_up_date", "last_contact_date"}

// Clear marks an optional column to be reset to NULL
func (p *ApplicationPatch) Clear(column string) *ApplicationPatch {
	if p.cleared == nil {
		p.cleared = make(map[string]bool)
	}
	p.cleared[column] = true
	return p
}

// Clears reports whether column is marked to be reset
func (p ApplicationPatch) Clears(column string) bool {
	return p.cleared[column]
}

func (p *ApplicationPatch) UnmarshalJSON(b []byte) error {
	type alias ApplicationPatch
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = ApplicationPatch(a)
	for _, column := range clearableFields {
		if v, ok := raw[column]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			p.Clear(column)
		}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing
func (p ApplicationPatch) IsEmpty() bool {
	return p.CompanyName == nil && p.JobTitle == nil && p.Status == nil &&
		p.DateApplied == nil && p.JobURL == nil && p.Notes == nil &&
		p.FollowUpDate == nil && p.LastContactDate == nil && len(p.cleared) == 0
}

// ListFilter narrows an application listing
type ListFilter struct {
	Status          *ApplicationStatus
	Search          string
	IncludeArchived bool
	Skip            int
	Limit           int
}

const (
	// DefaultListLimit applies when a listing does not ask for a limit
	DefaultListLimit = 100
	// MaxListLimit caps the page size
	MaxListLimit = 500
)

func (f ListFilter) normalized() ListFilter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}
