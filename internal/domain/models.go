// internal/domain/models.go
package domain

import "time"

// Role values for users.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Dependency type values.
const (
	DependencyServer = "SERVER"
	DependencyClient = "CLIENT"
)

// Share permission values.
const (
	PermissionRead  = "READ"
	PermissionWrite = "WRITE"
)

// Draft status values. PENDING is the only non-terminal state.
const (
	DraftPending  = "PENDING"
	DraftApproved = "APPROVED"
	DraftRejected = "REJECTED"
)

// ResourceKind discriminates shareable / grantable resources.
type ResourceKind string

const (
	ResourceSolvedProblem ResourceKind = "SOLVED_PROBLEM"
	ResourceGroup         ResourceKind = "GROUP"
)

// ResourceRef addresses a solved problem or a group uniformly.
// Consumers switch on Kind rather than comparing raw strings.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// User defines the structure for user data in the DB
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string // Keep unexported or handle carefully if needed elsewhere
	Role             string
	TwoFactorEnabled bool
	CreatedAt        time.Time
}

// SolvedProblem is the canonical catalog entry. ID is a globally unique slug.
type SolvedProblem struct {
	ID           string
	Name         string
	Description  string
	AppType      string
	OwnerID      string
	CopiedFromID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Version is an immutable snapshot of a problem's details. Version numbers
// form a gapless ascending sequence starting at 1 per problem.
type Version struct {
	SolvedProblemID string
	Version         int
	Details         string
	CreatedAt       time.Time
}

// Dependency belongs to a solved problem and is replaced wholesale on update.
type Dependency struct {
	Name           string `json:"name" validate:"required"`
	Version        string `json:"version" validate:"required"`
	PackageManager string `json:"packageManager" validate:"required"`
	Type           string `json:"type" validate:"required,oneof=SERVER CLIENT"`
}

// Tag is globally unique by name and created lazily when referenced.
type Tag struct {
	ID   string
	Name string
}

// Group collects solved problems for bulk sharing.
type Group struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Share grants one user READ or WRITE on a problem or group.
type Share struct {
	ID               string
	Resource         ResourceRef
	SharedByUserID   string
	SharedWithUserID string
	Permission       string
	CreatedAt        time.Time
}

// APIKey is a hashed credential owned by a user. The plaintext is shown once
// at creation and never persisted. RevokedAt nil means active.
type APIKey struct {
	ID        string
	Name      string
	HashedKey string
	UserID    string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// APIKeyAccess is one explicit grant on a key's allow-list.
type APIKeyAccess struct {
	ID       string
	APIKeyID string
	Resource ResourceRef
}

// ProposedData is the structured payload a draft carries. A nil Tags,
// Dependencies or Details field means "leave untouched" when the draft is
// applied to an existing problem; it never means "clear".
type ProposedData struct {
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description"`
	AppType      string       `json:"appType" validate:"required"`
	Tags         []string     `json:"tags,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Details      *string      `json:"details,omitempty"`
}

// Draft is a proposed change. SolvedProblemID nil means a new-problem
// proposal. Status is terminal once it leaves PENDING.
type Draft struct {
	ID              string
	SolvedProblemID *string
	Proposed        ProposedData
	Status          string
	CreatedByUserID string
	APIKeyID        *string
	CreatedAt       time.Time
	ReviewedAt      *time.Time
}

// SiteSettings is the process-wide singleton row (id = "default").
type SiteSettings struct {
	ID            string
	SignupEnabled bool
	ExportEnabled bool
}
