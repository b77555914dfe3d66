package rbac

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rbac/middleware/jwtware"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the account and session endpoints on the
// given router group.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("auth.refresh")
	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("auth.logout")

	app.Post(controller.Routes.Register, controller.Register).
		SetName("auth.register")

	app.Post(controller.Routes.Verification, controller.VerificationRequest).
		SetName("auth.verification.request")
	app.Post(controller.Routes.Verification+"/confirm", controller.VerificationConfirm).
		SetName("auth.verification.confirm")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetInit).
		SetName("auth.pwd-reset.init")
	app.Post(controller.Routes.PasswordReset+"/verify", controller.PasswordResetVerify).
		SetName("auth.pwd-reset.verify")
	app.Post(controller.Routes.PasswordReset+"/finalize", controller.PasswordResetFinalize).
		SetName("auth.pwd-reset.finalize")
}

type AuthControllerRoutes struct {
	Login         string
	Refresh       string
	Logout        string
	Register      string
	Verification  string
	PasswordReset string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Verification *VerificationService
	Auther       Authenticator
	Config       Config
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:         "/auth/login",
			Refresh:       "/auth/refresh",
			Logout:        "/auth/logout",
			Register:      "/auth/register",
			Verification:  "/auth/verification",
			PasswordReset: "/auth/password-reset",
		},
	}

	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerVerification(vs *VerificationService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Verification = vs
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, tokenPairResponse(pair))
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	pair, err := a.Auther.RefreshSession(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("refresh error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, tokenPairResponse(pair))
}

func (a *AuthController) Logout(ctx router.Context) error {
	raw, err := jwtware.ExtractRawTokenFromContext(
		ctx,
		jwtware.GetExtractors(a.Config.GetTokenLookup(), a.Config.GetAuthScheme()),
	)
	if err != nil || raw == "" {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	revoked, err := a.Auther.Logout(ctx.Context(), raw)
	if err != nil {
		a.Logger.Error("logout error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{"revoked": revoked})
}

// RegisterRequest is the signup payload
type RegisterRequest struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone" json:"phone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var user *User
	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(u *User) {
			user = u
		},
	}

	handler := NewRegisterUserHandler(a.Repo).
		WithVerificationService(a.Verification).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, router.ViewContext{"user": user.Sanitized()})
}

// EmailRequest carries a single email field, used by the verification
// and reset initialization endpoints.
type EmailRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// CodeRequest carries an email plus the code that was sent to it.
type CodeRequest struct {
	Email string `form:"email" json:"email"`
	Token string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r CodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerificationRequest(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	handler := NewRequestEmailVerificationHandler(a.Repo, a.Verification)
	if err := handler.Execute(ctx.Context(), RequestEmailVerificationMessage{Email: payload.Email}); err != nil {
		a.Logger.Error("verification request error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{"sent": true})
}

func (a *AuthController) VerificationConfirm(ctx router.Context) error {
	payload := new(CodeRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var user *User
	handler := NewVerifyEmailHandler(a.Repo, a.Verification)
	req := VerifyEmailMessage{
		Email: payload.Email,
		Token: payload.Token,
		OnResponse: func(u *User) {
			user = u
		},
	}

	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("verification confirm error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{"user": user.Sanitized()})
}

func (a *AuthController) PasswordResetInit(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var resp *InitializePasswordResetResponse
	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(r *InitializePasswordResetResponse) {
			resp = r
		},
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Verification)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset init error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, resp)
}

func (a *AuthController) PasswordResetVerify(ctx router.Context) error {
	payload := new(CodeRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	handler := NewVerifyPasswordResetCodeHandler(a.Repo, a.Verification)
	req := VerifyPasswordResetCodeMessage{
		Email: payload.Email,
		Token: payload.Token,
	}

	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset verify error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{"valid": true})
}

// PasswordResetFinalizeRequest is the last reset step payload
type PasswordResetFinalizeRequest struct {
	Email           string `form:"email" json:"email"`
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetFinalizeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetFinalize(ctx router.Context) error {
	payload := new(PasswordResetFinalizeRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	handler := NewFinalizePasswordResetHandler(a.Repo, a.Verification)
	req := FinalizePasswordResetMessage{
		Email:    payload.Email,
		Token:    payload.Token,
		Password: payload.Password,
	}

	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset finalize error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{"reset": true})
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("parse payload", "error", err)
	return ctx.JSON(router.StatusBadRequest, router.ViewContext{
		"error": router.ViewContext{
			"message": "Error parsing body",
		},
	})
}

func (a *AuthController) validationFailed(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, router.ViewContext{
		"error": router.ViewContext{
			"message":    "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		},
	})
}

func (a *AuthController) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, router.ViewContext{
		"error": router.ViewContext{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for API responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func tokenPairResponse(pair *AuthToken) router.ViewContext {
	resp := router.ViewContext{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}
	if pair.ExpiresAt != nil {
		resp["expires_at"] = pair.ExpiresAt
	}
	return resp
}
