package rbac

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle status of a user account
type UserStatus = string

const (
	// UserStatusUnverified is the status of a freshly registered account
	UserStatusUnverified UserStatus = "unverified"
	// UserStatusActive is the status after a successful email verification
	UserStatusActive UserStatus = "active"
	// UserStatusInactive is the status of an account disabled by an admin
	UserStatusInactive UserStatus = "inactive"
	// UserStatusInvited is the status of an account created on behalf of the user
	UserStatusInvited UserStatus = "invited"
)

// MaxOldPasswords bounds the retained password history per user.
const MaxOldPasswords = 3

// User is the identity record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	NewEmail      string     `bun:"new_email,nullzero" json:"new_email,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string     `bun:"password,nullzero" json:"password,omitempty"`
	OldPasswords  []string   `bun:"old_passwords,type:jsonb" json:"old_passwords,omitempty"`
	Status        UserStatus `bun:"status,notnull,default:'unverified'" json:"status,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	Roles []*Role `bun:"m2m:role_users,join:User=Role" json:"roles,omitempty"`
}

// EnsureStatus defaults the status for records created before the enum existed.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusUnverified
	}
}

// NormalizeEmail lowercases the identity fields; email is unique
// case-insensitively.
func (u *User) NormalizeEmail() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.NewEmail = strings.ToLower(strings.TrimSpace(u.NewEmail))
}

// PushOldPassword appends the current hash to the history, keeping the
// most recent MaxOldPasswords entries with the newest last.
func (u *User) PushOldPassword(hash string) {
	u.OldPasswords = append(u.OldPasswords, hash)
	if n := len(u.OldPasswords); n > MaxOldPasswords {
		u.OldPasswords = u.OldPasswords[n-MaxOldPasswords:]
	}
}

// Sanitized returns the user payload safe to hand back to clients. Secrets,
// staging fields, and history are omitted.
func (u *User) Sanitized() map[string]any {
	return map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"status":     u.Status,
	}
}

// Role is a named authorization bucket
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedBy     *uuid.UUID `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	Permissions []*Permission `bun:"m2m:role_permissions,join:Role=Permission" json:"permissions,omitempty"`
	Users       []*User       `bun:"m2m:role_users,join:Role=User" json:"users,omitempty"`
}

// PermissionAction enumerates the supported CRUD verbs
type PermissionAction = string

const (
	ActionCreate PermissionAction = "create"
	ActionRead   PermissionAction = "read"
	ActionUpdate PermissionAction = "update"
	ActionDelete PermissionAction = "delete"
)

// PermissionModules is the default resource-family catalog; deployments
// seed their own modules on top of these.
var PermissionModules = []string{"permission", "role", "role_permission", "role_user", "user"}

// PermissionActions enumerates the default verb catalog.
var PermissionActions = []PermissionAction{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// Permission is an (action, module) capability tuple
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:perm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Action        string     `bun:"action,notnull" json:"action,omitempty"`
	Module        string     `bun:"module,notnull" json:"module,omitempty"`
	CreatedBy     *uuid.UUID `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	Roles []*Role `bun:"m2m:role_permissions,join:Permission=Role" json:"roles,omitempty"`
}

// RolePermission is the grant edge between a role and a permission. The
// row existing does not imply the grant: CanDoTheAction carries it.
type RolePermission struct {
	bun.BaseModel  `bun:"table:role_permissions,alias:rperm"`
	ID             uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RoleID         uuid.UUID   `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	PermissionID   uuid.UUID   `bun:"permission_id,notnull,type:uuid" json:"permission_id,omitempty"`
	CanDoTheAction bool        `bun:"can_do_the_action,notnull,default:false" json:"can_do_the_action"`
	Scope          string      `bun:"scope,nullzero" json:"scope,omitempty"`
	CreatedBy      *uuid.UUID  `bun:"created_by,nullzero,type:uuid" json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID  `bun:"updated_by,nullzero,type:uuid" json:"updated_by,omitempty"`
	CreatedAt      *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Role           *Role       `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	Permission     *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"permission,omitempty"`
}

// RoleUser is the assignment edge between a role and a user
type RoleUser struct {
	bun.BaseModel `bun:"table:role_users,alias:rusr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RoleID        uuid.UUID  `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Role          *Role      `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// TokenType discriminates the two halves of an auth-token pair
type TokenType = string

const (
	TokenTypeAccess  TokenType = "access_token"
	TokenTypeRefresh TokenType = "refresh_token"
)

// IsValidTokenType reports whether t names a column of the auth_tokens pair.
func IsValidTokenType(t string) bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// AuthToken is a live session credential pair
type AuthToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:atok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccessToken   string     `bun:"access_token,notnull" json:"access_token,omitempty"`
	RefreshToken  string     `bun:"refresh_token,nullzero" json:"refresh_token,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// VerificationTokenType discriminates proof-of-email flows
type VerificationTokenType = string

const (
	VerificationTypeUser           VerificationTokenType = "user_verification"
	VerificationTypeForgotPassword VerificationTokenType = "forgot_password"
)

// VerificationTokenTypes lists the supported flows.
var VerificationTokenTypes = []VerificationTokenType{VerificationTypeForgotPassword, VerificationTypeUser}

// VerificationTokenStatus is the OTP state machine:
// unverified -> verified | cancelled, both terminal.
type VerificationTokenStatus = string

const (
	VerificationStatusUnverified VerificationTokenStatus = "unverified"
	VerificationStatusVerified   VerificationTokenStatus = "verified"
	VerificationStatusCancelled  VerificationTokenStatus = "cancelled"
)

// VerificationToken is a one-time code proving email ownership
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vtok"`
	ID            uuid.UUID               `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string                  `bun:"email,notnull" json:"email,omitempty"`
	Token         string                  `bun:"token,notnull" json:"token,omitempty"`
	Type          VerificationTokenType   `bun:"type,notnull,default:'user_verification'" json:"type,omitempty"`
	Status        VerificationTokenStatus `bun:"status,notnull,default:'unverified'" json:"status,omitempty"`
	ExpiredAt     *time.Time              `bun:"expired_at,notnull" json:"expired_at,omitempty"`
	UserID        uuid.UUID               `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt     *time.Time              `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time              `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	User          *User                   `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Expired reports whether the code is past its TTL.
func (v *VerificationToken) Expired(now time.Time) bool {
	return v.ExpiredAt != nil && v.ExpiredAt.Before(now)
}

// AuthTemplate holds the subject and body for an outbound email event
type AuthTemplate struct {
	bun.BaseModel `bun:"table:auth_templates,alias:atpl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Event         string     `bun:"event,notnull,unique" json:"event,omitempty"`
	Title         string     `bun:"title,nullzero" json:"title,omitempty"`
	Subject       string     `bun:"subject,notnull" json:"subject,omitempty"`
	Body          string     `bun:"body,notnull" json:"body,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
