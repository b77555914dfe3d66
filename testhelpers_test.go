package rbac_test

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"sync"
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteSchemaPath = "data/sql/migrations/sqlite/20240101000000_initial_schema.up.sql"

// setupDB opens an in-memory sqlite database with the full schema applied.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*rbac.RoleUser)(nil), (*rbac.RolePermission)(nil))

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	blob, err := fs.ReadFile(rbac.GetMigrationsFS(), sqliteSchemaPath)
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(blob), "--bun:split") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err = db.Exec(stmt)
		require.NoError(t, err, "schema statement failed: %s", stmt)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func setupRepos(t *testing.T) rbac.RepositoryManager {
	t.Helper()
	return rbac.NewRepositoryManager(setupDB(t))
}

func testConfig() rbac.SimpleConfig {
	return rbac.SimpleConfig{
		SigningKey:             "test-signing-key",
		TokenExpiration:        1,
		RefreshTokenExpiration: 24,
		Issuer:                 "rbac-test",
		Audience:               []string{"rbac-test"},
	}.WithDefaults()
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := rbac.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func createUserWithStatus(t *testing.T, repos rbac.RepositoryManager, email, password string, status rbac.UserStatus) *rbac.User {
	t.Helper()

	user, err := repos.Users().Register(context.Background(), &rbac.User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: mustHash(t, password),
		Status:       status,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	return user
}

func createActiveUser(t *testing.T, repos rbac.RepositoryManager, email, password string) *rbac.User {
	t.Helper()
	return createUserWithStatus(t, repos, email, password, rbac.UserStatusActive)
}

func createRole(t *testing.T, repos rbac.RepositoryManager, name string) *rbac.Role {
	t.Helper()

	role, err := repos.Roles().Create(context.Background(), &rbac.Role{
		ID:   uuid.New(),
		Name: name,
	})
	require.NoError(t, err)
	return role
}

func createPermission(t *testing.T, repos rbac.RepositoryManager, action, module string) *rbac.Permission {
	t.Helper()

	perm, err := repos.Permissions().Create(context.Background(), &rbac.Permission{
		ID:     uuid.New(),
		Action: action,
		Module: module,
	})
	require.NoError(t, err)
	return perm
}

func grantPermission(t *testing.T, repos rbac.RepositoryManager, roleID, permissionID uuid.UUID, allowed bool, scope string) {
	t.Helper()

	_, err := repos.RolePermissions().Grant(context.Background(), &rbac.RolePermission{
		RoleID:         roleID,
		PermissionID:   permissionID,
		CanDoTheAction: allowed,
		Scope:          scope,
	})
	require.NoError(t, err)
}

func assignRole(t *testing.T, repos rbac.RepositoryManager, roleID, userID uuid.UUID) {
	t.Helper()

	_, err := repos.RoleUsers().Assign(context.Background(), roleID, userID)
	require.NoError(t, err)
}

func createTemplate(t *testing.T, repos rbac.RepositoryManager, event, subject, body string) {
	t.Helper()

	_, err := repos.AuthTemplates().Create(context.Background(), &rbac.AuthTemplate{
		ID:      uuid.New(),
		Event:   event,
		Subject: subject,
		Body:    body,
	})
	require.NoError(t, err)
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []rbac.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event rbac.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) Events() []rbac.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *capturingSink) EventsOfType(eventType rbac.ActivityEventType) []rbac.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rbac.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type notification struct {
	Event     string
	To        string
	Variables map[string]string
}

// capturingNotifier records outbound notifications instead of sending them.
type capturingNotifier struct {
	mu            sync.Mutex
	fail          error
	notifications []notification
}

func (n *capturingNotifier) Notify(_ context.Context, event, to string, variables map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.notifications = append(n.notifications, notification{Event: event, To: to, Variables: variables})
	return nil
}

func (n *capturingNotifier) Notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// issuedCode grabs the live verification code straight from storage so
// flow tests can replay what the email would have carried.
func issuedCode(t *testing.T, db *bun.DB, email string, tokenType rbac.VerificationTokenType) string {
	t.Helper()

	record := &rbac.VerificationToken{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.ToLower(email)).
		Where("?TableAlias.type = ?", tokenType).
		Where("?TableAlias.status = ?", rbac.VerificationStatusUnverified).
		Order("created_at DESC").
		Limit(1).
		Scan(context.Background())
	require.NoError(t, err)
	return record.Token
}
