package rbac_test

import (
	"context"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	rbac "github.com/goliatone/go-rbac"
)

type controllerFixture struct {
	ctrl     *rbac.AuthController
	repos    rbac.RepositoryManager
	db       *bun.DB
	notifier *capturingNotifier
}

func newControllerFixture(t *testing.T) controllerFixture {
	t.Helper()

	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)
	cfg := testConfig()
	notifier := &capturingNotifier{}

	createRole(t, repos, rbac.RoleNameUser)

	ctrl := rbac.NewAuthController(
		rbac.WithControllerRepo(repos),
		rbac.WithControllerAuthenticator(rbac.NewAuthenticator(repos, cfg)),
		rbac.WithControllerConfig(cfg),
		rbac.WithControllerVerification(rbac.NewVerificationService(repos, rbac.WithVerificationNotifier(notifier))),
	)

	return controllerFixture{ctrl: ctrl, repos: repos, db: db, notifier: notifier}
}

// jsonRecord captures the status and body handed to ctx.JSON.
type jsonRecord struct {
	status int
	body   any
}

func (r *jsonRecord) view(t *testing.T) router.ViewContext {
	t.Helper()
	view, ok := r.body.(router.ViewContext)
	require.True(t, ok, "expected a router.ViewContext body, got %T", r.body)
	return view
}

func recordJSON(ctx *router.MockContext) *jsonRecord {
	rec := &jsonRecord{}
	ctx.On("JSON", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		rec.status = args.Get(0).(int)
		rec.body = args.Get(1)
	})
	return rec
}

func bindPayload[T any](ctx *router.MockContext, payload T) {
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*(args.Get(0).(*T)) = payload
	})
}

func newControllerContext() *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background()).Maybe()
	return ctx
}

func TestNewAuthControllerGuards(t *testing.T) {
	repos := setupRepos(t)
	cfg := testConfig()
	auther := rbac.NewAuthenticator(repos, cfg)

	assert.Panics(t, func() {
		rbac.NewAuthController(
			rbac.WithControllerAuthenticator(auther),
			rbac.WithControllerConfig(cfg),
		)
	}, "a repository manager is mandatory")

	assert.Panics(t, func() {
		rbac.NewAuthController(
			rbac.WithControllerRepo(repos),
			rbac.WithControllerConfig(cfg),
		)
	}, "an authenticator is mandatory")

	assert.Panics(t, func() {
		rbac.NewAuthController(
			rbac.WithControllerRepo(repos),
			rbac.WithControllerAuthenticator(auther),
		)
	}, "a config is mandatory")

	ctrl := rbac.NewAuthController(
		rbac.WithControllerRepo(repos),
		rbac.WithControllerAuthenticator(auther),
		rbac.WithControllerConfig(cfg),
	)
	assert.Equal(t, "/auth/login", ctrl.Routes.Login)
	assert.Equal(t, "/auth/password-reset", ctrl.Routes.PasswordReset)
}

func TestAuthControllerLogin(t *testing.T) {
	fixture := newControllerFixture(t)
	createActiveUser(t, fixture.repos, "ctrl-login@example.com", "Sup3rSecret!")

	t.Run("valid credentials", func(t *testing.T) {
		ctx := newControllerContext()
		bindPayload(ctx, rbac.LoginRequest{Email: "ctrl-login@example.com", Password: "Sup3rSecret!"})
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Login(ctx))

		assert.Equal(t, router.StatusOK, rec.status)
		view := rec.view(t)
		assert.NotEmpty(t, view["access_token"])
		assert.NotEmpty(t, view["refresh_token"])
		assert.NotNil(t, view["expires_at"])
	})

	t.Run("bad credentials surface the catalog error", func(t *testing.T) {
		ctx := newControllerContext()
		bindPayload(ctx, rbac.LoginRequest{Email: "ctrl-login@example.com", Password: "wrong-password"})
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Login(ctx))

		view := rec.view(t)
		errView, ok := view["error"].(router.ViewContext)
		require.True(t, ok)
		assert.Equal(t, rbac.TextCodePasswordIncorrect, errView["text_code"])
	})

	t.Run("invalid payload", func(t *testing.T) {
		ctx := newControllerContext()
		bindPayload(ctx, rbac.LoginRequest{Email: "not-an-email"})
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Login(ctx))

		assert.Equal(t, router.StatusBadRequest, rec.status)
		view := rec.view(t)
		errView, ok := view["error"].(router.ViewContext)
		require.True(t, ok)
		assert.NotNil(t, errView["validation"])
	})
}

func TestAuthControllerRegisterAndConfirm(t *testing.T) {
	fixture := newControllerFixture(t)

	ctx := newControllerContext()
	bindPayload(ctx, rbac.RegisterRequest{
		FirstName:       "Pepe",
		LastName:        "Rone",
		Email:           "ctrl-signup@example.com",
		Password:        "Sup3rSecret!",
		ConfirmPassword: "Sup3rSecret!",
	})
	rec := recordJSON(ctx)

	require.NoError(t, fixture.ctrl.Register(ctx))

	assert.Equal(t, router.StatusCreated, rec.status)
	view := rec.view(t)
	created, ok := view["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ctrl-signup@example.com", created["email"])
	require.Len(t, fixture.notifier.Notifications(), 1)

	code := issuedCode(t, fixture.db, "ctrl-signup@example.com", rbac.VerificationTypeUser)

	confirmCtx := newControllerContext()
	bindPayload(confirmCtx, rbac.CodeRequest{Email: "ctrl-signup@example.com", Token: code})
	confirmRec := recordJSON(confirmCtx)

	require.NoError(t, fixture.ctrl.VerificationConfirm(confirmCtx))
	assert.Equal(t, router.StatusOK, confirmRec.status)

	user, err := fixture.repos.Users().GetByIdentifier(context.Background(), "ctrl-signup@example.com")
	require.NoError(t, err)
	assert.Equal(t, rbac.UserStatusActive, user.Status)
}

func TestAuthControllerVerificationRequest(t *testing.T) {
	fixture := newControllerFixture(t)
	createUserWithStatus(t, fixture.repos, "ctrl-verify@example.com", "Sup3rSecret!", rbac.UserStatusUnverified)

	ctx := newControllerContext()
	bindPayload(ctx, rbac.EmailRequest{Email: "ctrl-verify@example.com"})
	rec := recordJSON(ctx)

	require.NoError(t, fixture.ctrl.VerificationRequest(ctx))

	assert.Equal(t, router.StatusOK, rec.status)
	assert.Equal(t, true, rec.view(t)["sent"])
	require.Len(t, fixture.notifier.Notifications(), 1)
}

func TestAuthControllerRefreshAndLogout(t *testing.T) {
	fixture := newControllerFixture(t)
	createActiveUser(t, fixture.repos, "ctrl-session@example.com", "Sup3rSecret!")

	pair, err := fixture.ctrl.Auther.Login(context.Background(), "ctrl-session@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	t.Run("refresh rotates the pair", func(t *testing.T) {
		ctx := newControllerContext()
		bindPayload(ctx, rbac.RefreshRequest{RefreshToken: pair.RefreshToken})
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Refresh(ctx))

		assert.Equal(t, router.StatusOK, rec.status)
		view := rec.view(t)
		assert.NotEmpty(t, view["access_token"])
		assert.NotEqual(t, pair.RefreshToken, view["refresh_token"])
		pair.RefreshToken = view["refresh_token"].(string)
		pair.AccessToken = view["access_token"].(string)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		ctx := newControllerContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + pair.AccessToken)
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Logout(ctx))

		assert.Equal(t, router.StatusOK, rec.status)
		assert.Equal(t, true, rec.view(t)["revoked"])
	})

	t.Run("logout without a bearer token", func(t *testing.T) {
		ctx := newControllerContext()
		ctx.On("GetString", "Authorization", "").Return("")
		rec := recordJSON(ctx)

		require.NoError(t, fixture.ctrl.Logout(ctx))

		view := rec.view(t)
		errView, ok := view["error"].(router.ViewContext)
		require.True(t, ok)
		assert.Equal(t, rbac.TextCodeMissingToken, errView["text_code"])
	})
}

func TestAuthControllerPasswordResetFlow(t *testing.T) {
	fixture := newControllerFixture(t)
	createActiveUser(t, fixture.repos, "ctrl-reset@example.com", "Sup3rSecret!")

	initCtx := newControllerContext()
	bindPayload(initCtx, rbac.EmailRequest{Email: "ctrl-reset@example.com"})
	initRec := recordJSON(initCtx)

	require.NoError(t, fixture.ctrl.PasswordResetInit(initCtx))
	assert.Equal(t, router.StatusOK, initRec.status)

	code := issuedCode(t, fixture.db, "ctrl-reset@example.com", rbac.VerificationTypeForgotPassword)

	verifyCtx := newControllerContext()
	bindPayload(verifyCtx, rbac.CodeRequest{Email: "ctrl-reset@example.com", Token: code})
	verifyRec := recordJSON(verifyCtx)

	require.NoError(t, fixture.ctrl.PasswordResetVerify(verifyCtx))
	assert.Equal(t, true, verifyRec.view(t)["valid"])

	finalizeCtx := newControllerContext()
	bindPayload(finalizeCtx, rbac.PasswordResetFinalizeRequest{
		Email:           "ctrl-reset@example.com",
		Token:           code,
		Password:        "An0therSecret!",
		ConfirmPassword: "An0therSecret!",
	})
	finalizeRec := recordJSON(finalizeCtx)

	require.NoError(t, fixture.ctrl.PasswordResetFinalize(finalizeCtx))
	assert.Equal(t, true, finalizeRec.view(t)["reset"])

	_, err := fixture.ctrl.Auther.Login(context.Background(), "ctrl-reset@example.com", "An0therSecret!")
	assert.NoError(t, err, "new password should open a session")
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, rbac.FormatValidationErrorToMap(nil))
	})

	t.Run("ozzo field errors", func(t *testing.T) {
		err := rbac.LoginRequest{Email: "nope", Password: ""}.Validate()
		require.Error(t, err)
		require.IsType(t, validation.Errors{}, err)

		out := rbac.FormatValidationErrorToMap(err)
		assert.Contains(t, out, "email")
		assert.Contains(t, out, "password")
	})

	t.Run("plain error", func(t *testing.T) {
		out := rbac.FormatValidationErrorToMap(assert.AnError)
		assert.True(t, strings.Contains(out["error"], assert.AnError.Error()))
	})
}
