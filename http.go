package rbac

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-rbac/middleware/jwtware"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteAuthenticator guards go-router routes with bearer-token
// authentication and permission checks backed by the grant tables.
type RouteAuthenticator struct {
	auth         Authenticator
	validator    TokenValidator
	gate         *AccessGate
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, tokens TokenService, gate *AccessGate, cfg Config) (*RouteAuthenticator, error) {
	if tokens == nil {
		return nil, errors.New("token service is required", errors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		cfg:       cfg,
		auth:      auther,
		validator: tokens,
		gate:      gate,
		Logger:    defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// WithTokenValidator swaps the validator, e.g. a MultiTokenValidator
// that also accepts tokens signed with a retiring key.
func (a *RouteAuthenticator) WithTokenValidator(v TokenValidator) *RouteAuthenticator {
	if v != nil {
		a.validator = v
	}
	return a
}

// ProtectedRoute rejects requests without a valid access token. When
// requiredRoles is non-empty the claims must carry at least one of them.
func (a *RouteAuthenticator) ProtectedRoute(requiredRoles ...string) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.MakeRouteAuthErrorHandler(false),
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: a.cfg.GetSigningMethod(),
		},
		AuthScheme:        a.cfg.GetAuthScheme(),
		ContextKey:        a.cfg.GetContextKey(),
		TokenLookup:       a.cfg.GetTokenLookup(),
		TokenValidator:    tokenValidatorAdapter{a.validator},
		AcceptedTokenType: string(TokenTypeAccess),
		RequiredRoles:     requiredRoles,
		ContextEnricher:   ContextEnricherAdapter,
		ValidationListeners: []jwtware.ValidationListener{
			a.sessionListener(),
		},
	})
}

// OptionalRoute validates a token when one is present but lets
// anonymous requests through.
func (a *RouteAuthenticator) OptionalRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.MakeRouteAuthErrorHandler(true),
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: a.cfg.GetSigningMethod(),
		},
		AuthScheme:        a.cfg.GetAuthScheme(),
		ContextKey:        a.cfg.GetContextKey(),
		TokenLookup:       a.cfg.GetTokenLookup(),
		TokenValidator:    tokenValidatorAdapter{a.validator},
		AcceptedTokenType: string(TokenTypeAccess),
		ContextEnricher:   ContextEnricherAdapter,
		ValidationListeners: []jwtware.ValidationListener{
			a.sessionListener(),
		},
	})
}

// sessionListener rejects tokens whose auth_tokens row is gone. Logout,
// password change, and admin revocation delete the row precisely so the
// token stops working before its exp claim would.
func (a *RouteAuthenticator) sessionListener() jwtware.ValidationListener {
	return func(ctx router.Context, _ jwtware.AuthClaims) error {
		if a.auth == nil {
			return nil
		}

		raw, err := jwtware.ExtractRawTokenFromContext(
			ctx,
			jwtware.GetExtractors(a.cfg.GetTokenLookup(), a.cfg.GetAuthScheme()),
		)
		if err != nil || raw == "" {
			return ErrMissingToken
		}

		_, live, err := a.auth.VerifySession(ctx.Context(), raw)
		if err != nil {
			return err
		}
		if !live {
			return ErrUnauthorized
		}
		return nil
	}
}

// RequirePermission checks the caller's effective grants for
// action:module. Run it after ProtectedRoute so the claims are in scope.
func (a *RouteAuthenticator) RequirePermission(action, module string) router.MiddlewareFunc {
	return a.requireAccess(AccessRequest{Action: action, Module: module})
}

// RequireAssociatedPermission is the scoped variant: the route handler
// has already established that the target record belongs to the caller.
func (a *RouteAuthenticator) RequireAssociatedPermission(action, module string) router.MiddlewareFunc {
	associated := true
	return a.requireAccess(AccessRequest{Action: action, Module: module, Associated: &associated})
}

func (a *RouteAuthenticator) requireAccess(req AccessRequest) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, ok := GetRouterClaims(ctx, a.cfg.GetContextKey())
			if !ok {
				return a.ErrorHandler(ctx, ErrMissingToken)
			}

			userID, err := uuid.Parse(claims.UserID())
			if err != nil {
				return a.ErrorHandler(ctx, ErrUnauthorized)
			}

			if err := a.gate.Authorize(ctx.Context(), userID, req); err != nil {
				return a.ErrorHandler(ctx, err)
			}

			return ctx.Next()
		}
	}
}

// MakeRouteAuthErrorHandler translates middleware failures into the
// catalog errors API clients are written against.
func (a *RouteAuthenticator) MakeRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		switch {
		case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
			richErr = ErrMissingToken
		case errors.Is(err, jwtware.ErrMissingRequiredRoles):
			richErr = ErrMissingRequiredRoles
		case errors.Is(err, jwtware.ErrWrongTokenType):
			richErr = ErrTokenTypeInvalid
		case IsTokenExpiredError(err):
			richErr = ErrTokenExpired
		case IsMalformedError(err):
			richErr = ErrTokenMalformed
		default:
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithTextCode(ErrUnauthorized.TextCode).
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

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

// tokenValidatorAdapter bridges TokenValidator into the middleware's
// claim contract without an import cycle.
type tokenValidatorAdapter struct {
	validator TokenValidator
}

func (v tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
