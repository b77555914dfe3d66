package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds the attributes carried by a decoded access token
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetRoles() []string
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*AuthToken, error)
	RefreshSession(ctx context.Context, refreshToken string) (*AuthToken, error)
	Logout(ctx context.Context, accessToken string) (bool, error)
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	SessionFromToken(token string) (Session, error)
	VerifySession(ctx context.Context, accessToken string) (Session, bool, error)
	VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error
}

// Config holds signing and lifetime options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetRefreshTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRolePriority() []string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Notifier delivers lifecycle emails. Implementations render the event's
// template with the variables and send it to the recipient.
type Notifier interface {
	Notify(ctx context.Context, event string, to string, variables map[string]string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] RBAC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] RBAC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] RBAC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
