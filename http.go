package jobtracker

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-jobtracker/middleware/jwtware"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is the request Locals key holding the verified claims
const DefaultContextKey = "user"

// RouteAuthenticator guards routes with bearer tokens and resolves the
// acting user for handlers.
type RouteAuthenticator struct {
	auth        Authenticator
	logger      Logger
	contextKey  string
	tokenLookup string
	listeners   []ValidationListener
}

func NewHTTPAuthenticator(auther Authenticator) *RouteAuthenticator {
	return &RouteAuthenticator{
		auth:        auther,
		logger:      defaultLogger("jobtracker.http.auth"),
		contextKey:  DefaultContextKey,
		tokenLookup: "header:" + router.HeaderAuthorization,
	}
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.logger = resolveLogger("jobtracker.http.auth", logger)
	return a
}

// WithTokenLookup overrides where tokens are read from, e.g.
// "header:Authorization,cookie:access_token".
func (a *RouteAuthenticator) WithTokenLookup(lookup string) *RouteAuthenticator {
	if lookup != "" {
		a.tokenLookup = lookup
	}
	return a
}

// WithValidationListeners adds checks that run after the token verified.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

// ProtectedRoute returns the bearer middleware. A verified token whose user
// no longer exists is rejected the same way as a forged one.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	cfg := jwtware.Config{
		ContextKey:      a.contextKey,
		TokenLookup:     a.tokenLookup,
		AuthScheme:      "Bearer",
		TokenValidator:  JWTValidator(a.auth.TokenService()),
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler:    a.authErrorHandler,
	}
	RegisterValidationListeners(&cfg, a.requireUser)
	RegisterValidationListeners(&cfg, a.listeners...)
	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) requireUser(c router.Context, claims jwtware.AuthClaims) error {
	if _, err := a.auth.CurrentUser(c.Context(), claims.UserID()); err != nil {
		return err
	}
	return nil
}

// authErrorHandler hands failures to the app error handler so every 401
// shares one body shape.
func (a *RouteAuthenticator) authErrorHandler(c router.Context, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return fail(ErrNotAuthenticated)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		a.logger.Debug("bearer token rejected", "text_code", richErr.TextCode, "path", c.Path())
		return err
	}

	a.logger.Warn("bearer token rejected", "error", err, "path", c.Path())
	return goerrors.Wrap(err, goerrors.CategoryAuth, "token is invalid").
		WithTextCode(TextCodeTokenInvalid)
}

// Login verifies the credentials and returns a signed access token
func (a *RouteAuthenticator) Login(c router.Context, identifier, password string) (string, error) {
	token, err := a.auth.Login(c.Context(), identifier, password)
	if err != nil {
		a.logger.Info("login rejected", "error", err)
		return "", err
	}
	return token, nil
}

// CurrentUserID returns the acting user placed in the request context by
// ProtectedRoute.
func CurrentUserID(c router.Context) (string, error) {
	if userID, ok := UserIDFromContext(c.Context()); ok {
		return userID, nil
	}
	if claims, ok := GetRouterClaims(c, DefaultContextKey); ok && claims.UserID() != "" {
		return claims.UserID(), nil
	}
	return "", fail(ErrNotAuthenticated)
}
