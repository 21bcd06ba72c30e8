// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// ErrDuplicate is returned when an insert or update violates a uniqueness
// constraint (duplicate email, second NDA for the same rfp/user pair, ...).
// Callers decide whether to retry, merge, or surface it.
var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports whether err is a SQLite uniqueness failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Users() UserRepository
	Companies() CompanyRepository
	RFPs() RFPRepository
	Documents() DocumentRepository
	NDAs() NDARepository
	Access() AccessRepository
	Notifications() NotificationRepository
	Questions() QuestionRepository
	Claims() ClaimRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	SetCompany(ctx context.Context, id, companyID string, role models.CompanyRole) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	// ListIDsByRole returns the IDs of all users holding the given role.
	// Used for notification fan-out.
	ListIDsByRole(ctx context.Context, role models.Role) ([]string, error)
	// ListUnlinked returns users with a free-text company name but no
	// company FK, in deterministic (created_at, id) order.
	ListUnlinked(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// CompanyRepository defines operations for companies, memberships, and
// linkage audit records.
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	GetByAutoJoinDomain(ctx context.Context, domain string) (*models.Company, error)
	Update(ctx context.Context, company *models.Company) error
	List(ctx context.Context) ([]*models.Company, error)

	AddMember(ctx context.Context, m *models.CompanyMember) error
	RemoveMember(ctx context.Context, companyID, userID string) error
	ListMembers(ctx context.Context, companyID string) ([]*models.CompanyMember, error)
	// MemberIDs returns the deduplicated set of user IDs belonging to the
	// company via FK linkage, text match, or secondary membership.
	MemberIDs(ctx context.Context, companyID string) ([]string, error)

	CreateLinkAudit(ctx context.Context, a *models.LinkAudit) error
	ListLinkAudits(ctx context.Context, limit int) ([]*models.LinkAudit, error)
}

// RFPFilter narrows RFP listings.
type RFPFilter struct {
	Status     models.RFPStatus
	Visibility models.Visibility
	ClientID   string
}

// RFPRepository defines operations for RFPs, milestones, and components.
type RFPRepository interface {
	Create(ctx context.Context, rfp *models.RFP) error
	GetByID(ctx context.Context, id string) (*models.RFP, error)
	Update(ctx context.Context, rfp *models.RFP) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter RFPFilter) ([]*models.RFP, error)

	// TransitionStatus atomically moves an RFP from one status to another.
	// It returns false when the RFP was not in the expected status, which
	// is how concurrent transitions race to a single winner.
	TransitionStatus(ctx context.Context, id string, from, to models.RFPStatus) (bool, error)
	// CloseExpired closes every active RFP whose closing date has passed
	// and returns the IDs it transitioned. A second call with no eligible
	// rows is a no-op returning an empty slice.
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)

	ReplaceMilestones(ctx context.Context, rfpID string, ms []models.Milestone) error
	GetMilestones(ctx context.Context, rfpID string) ([]models.Milestone, error)

	CreateComponent(ctx context.Context, c *models.Component) error
	GetComponent(ctx context.Context, id string) (*models.Component, error)
	ListComponents(ctx context.Context, rfpID string) ([]*models.Component, error)
	DeleteComponent(ctx context.Context, id string) error
}

// DocumentRepository defines operations for RFP documents and folders.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	ListByRFP(ctx context.Context, rfpID string) ([]*models.Document, error)
	// Ancestors returns the chain of folder IDs from doc's parent up to
	// the root. Used to reject parent moves that would create a cycle.
	Ancestors(ctx context.Context, id string) ([]string, error)
}

// NDARepository defines operations for individual and company NDA grants.
type NDARepository interface {
	Create(ctx context.Context, g *models.NDAGrant) error
	GetByID(ctx context.Context, id string) (*models.NDAGrant, error)
	GetForUser(ctx context.Context, rfpID, userID string) (*models.NDAGrant, error)
	GetForCompany(ctx context.Context, rfpID, companyID string) (*models.NDAGrant, error)
	// SetStatus decides a pending grant atomically. It returns nil when
	// no pending grant with the id exists, so of two concurrent
	// decisions exactly one observes a non-nil result.
	SetStatus(ctx context.Context, id string, status models.GrantStatus, decidedAt time.Time) (*models.NDAGrant, error)
	ListByRFP(ctx context.Context, rfpID string) ([]*models.NDAGrant, error)
	ListForUser(ctx context.Context, userID string) ([]*models.NDAGrant, error)
	// HasApproved reports whether an approved grant exists for the user
	// individually or for the user's company.
	HasApproved(ctx context.Context, rfpID, userID, companyID string) (bool, error)
}

// AccessRepository defines operations for confidential-RFP access grants.
type AccessRepository interface {
	Create(ctx context.Context, g *models.AccessGrant) error
	GetByID(ctx context.Context, id string) (*models.AccessGrant, error)
	GetForUser(ctx context.Context, rfpID, userID string) (*models.AccessGrant, error)
	// SetStatus decides a pending request atomically, single winner as
	// with NDA grants.
	SetStatus(ctx context.Context, id string, status models.GrantStatus, decidedAt time.Time) (*models.AccessGrant, error)
	ListByRFP(ctx context.Context, rfpID string) ([]*models.AccessGrant, error)
	ListForUser(ctx context.Context, userID string) ([]*models.AccessGrant, error)
	HasApproved(ctx context.Context, rfpID, userID string) (bool, error)
	// ApprovedUserIDs returns the users holding approved access to the
	// RFP, for closed-notification fan-out.
	ApprovedUserIDs(ctx context.Context, rfpID string) ([]string, error)
}

// NotificationRepository defines operations for per-user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead sets read_at to now for the given notification if it
	// belongs to userID and is still unread. read_at is monotonic: it is
	// never cleared or moved backwards.
	MarkRead(ctx context.Context, id, userID string, now time.Time) (bool, error)
}

// QuestionRepository defines operations for bidder questions.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id string) (*models.Question, error)
	ListByRFP(ctx context.Context, rfpID string, publishedOnly bool) ([]*models.Question, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Question, error)
	// Publish atomically records the answer and moves the question from
	// pending to published. Returns false if it was already published.
	Publish(ctx context.Context, id, answer string, now time.Time) (bool, error)
}

// ClaimRepository mirrors the role claim the auth layer embeds in tokens.
type ClaimRepository interface {
	Get(ctx context.Context, userID string) (*models.RoleClaim, error)
	// Upsert writes the claim row for userID. Idempotent; safe to retry.
	Upsert(ctx context.Context, userID string, role models.Role, syncedAt time.Time) error
}
