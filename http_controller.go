package jobtracker

import (
	"encoding/json"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ControllerRoutes holds the mount points of each route group
type ControllerRoutes struct {
	Auth         string
	Applications string
	Analytics    string
}

// DefaultControllerRoutes mounts everything under /api
var DefaultControllerRoutes = ControllerRoutes{
	Auth:         "/api/auth",
	Applications: "/api/applications",
	Analytics:    "/api/analytics",
}

// HTTPController exposes the tracker over JSON
type HTTPController struct {
	Routes    ControllerRoutes
	auth      Authenticator
	routeAuth *RouteAuthenticator
	apps      *ApplicationService
	analytics Analytics
	logger    Logger
	clock     Clock
}

// NewHTTPController wires the handlers around the given services
func NewHTTPController(auther Authenticator, apps *ApplicationService, analytics Analytics) *HTTPController {
	return &HTTPController{
		Routes:    DefaultControllerRoutes,
		auth:      auther,
		routeAuth: NewHTTPAuthenticator(auther),
		apps:      apps,
		analytics: analytics,
		logger:    defaultLogger("jobtracker.http"),
	}
}

func (h *HTTPController) WithLogger(logger Logger) *HTTPController {
	h.logger = resolveLogger("jobtracker.http", logger)
	h.routeAuth.WithLogger(logger)
	return h
}

func (h *HTTPController) WithClock(clock Clock) *HTTPController {
	h.clock = clock
	return h
}

// WithRouteAuthenticator replaces the bearer guard
func (h *HTTPController) WithRouteAuthenticator(ra *RouteAuthenticator) *HTTPController {
	if ra != nil {
		h.routeAuth = ra
	}
	return h
}

// RegisterRoutes mounts every route on app. The applications and
// analytics groups sit behind the bearer guard.
func RegisterRoutes[T any](app router.Router[T], h *HTTPController) {
	protected := h.routeAuth.ProtectedRoute()

	app.Get("/", h.Banner).SetName("banner")

	auth := app.Group(h.Routes.Auth)
	auth.Post("/register", h.RegisterUser).SetName("auth.register")
	auth.Post("/login", h.Login).SetName("auth.login")
	auth.Get("/me", h.Me, protected).SetName("auth.me")
	auth.Delete("/me", h.DeleteMe, protected).SetName("auth.me.delete")

	apps := app.Group(h.Routes.Applications)
	apps.Use(protected)
	apps.Get("/", h.ListApplications).SetName("applications.list")
	apps.Post("/", h.CreateApplication).SetName("applications.create")
	apps.Get("/:id", h.GetApplication).SetName("applications.get")
	apps.Put("/:id", h.UpdateApplication).SetName("applications.update")
	apps.Delete("/:id", h.DeleteApplication).SetName("applications.delete")
	apps.Patch("/:id/status", h.UpdateApplicationStatus).SetName("applications.status")
	apps.Patch("/:id/archive", h.ToggleArchive).SetName("applications.archive")

	analytics := app.Group(h.Routes.Analytics)
	analytics.Use(protected)
	analytics.Get("/summary", h.Summary).SetName("analytics.summary")
	analytics.Get("/timeline", h.Timeline).SetName("analytics.timeline")
	analytics.Get("/reminders", h.Reminders).SetName("analytics.reminders")
}

// LoginResponse is the OAuth2 password grant shaped token response
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type loginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *HTTPController) RegisterUser(c router.Context) error {
	var msg RegisterUserMessage
	if err := c.Bind(&msg); err != nil {
		return malformedBody(err)
	}

	user, err := h.auth.Register(c.Context(), msg)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusCreated, user)
}

func (h *HTTPController) Login(c router.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return malformedBody(err)
	}

	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		return goerrors.NewValidation("username and password are required",
			goerrors.FieldError{Field: "username", Message: "is required"},
			goerrors.FieldError{Field: "password", Message: "is required"},
		)
	}

	token, err := h.routeAuth.Login(c, payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, LoginResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *HTTPController) Me(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.auth.CurrentUser(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, user)
}

func (h *HTTPController) DeleteMe(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	if err := h.auth.DeleteAccount(c.Context(), userID); err != nil {
		return err
	}
	return c.NoContent(router.StatusNoContent)
}

func (h *HTTPController) ListApplications(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	filter := ListFilter{
		Search:          c.Query("search"),
		IncludeArchived: queryBool(c, "include_archived"),
		Skip:            c.QueryInt("skip", 0),
		Limit:           c.QueryInt("limit", DefaultListLimit),
	}

	if raw := c.Query("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = &status
	}

	apps, err := h.apps.List(c.Context(), userID, filter)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, apps)
}

func (h *HTTPController) CreateApplication(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	var input ApplicationInput
	if err := decodeJSON(c, &input); err != nil {
		return err
	}

	app, err := h.apps.Create(c.Context(), userID, input)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusCreated, app)
}

func (h *HTTPController) GetApplication(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	app, err := h.apps.Get(c.Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, app)
}

func (h *HTTPController) UpdateApplication(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	var patch ApplicationPatch
	if err := decodeJSON(c, &patch); err != nil {
		return err
	}

	app, err := h.apps.Update(c.Context(), userID, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, app)
}

type statusPayload struct {
	Status string `json:"status"`
}

func (h *HTTPController) UpdateApplicationStatus(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	var payload statusPayload
	if err := decodeJSON(c, &payload); err != nil {
		return err
	}

	app, err := h.apps.UpdateStatus(c.Context(), userID, c.Param("id"), ApplicationStatus(payload.Status))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, app)
}

func (h *HTTPController) ToggleArchive(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	app, err := h.apps.ToggleArchive(c.Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, app)
}

func (h *HTTPController) DeleteApplication(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	if err := h.apps.Delete(c.Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(router.StatusNoContent)
}

func (h *HTTPController) Summary(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	summary, err := h.analytics.Summary(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, summary)
}

func (h *HTTPController) Timeline(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	days := DefaultTimelineDays
	if raw := c.Query("days"); raw != "" {
		days = c.QueryInt("days", -1)
		if err := ValidateTimelineDays(days); err != nil {
			return err
		}
	}

	points, err := h.analytics.Timeline(c.Context(), userID, days)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, points)
}

func (h *HTTPController) Reminders(c router.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	reminders, err := h.analytics.Reminders(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, reminders)
}

func queryBool(c router.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

// decodeJSON reads the body with encoding/json so the custom
// unmarshalers on dates and patches run regardless of Content-Type.
func decodeJSON(c router.Context, out any) error {
	body := c.Body()
	if len(body) == 0 {
		return fail(ErrMalformedBody, map[string]any{"reason": "empty body"})
	}
	if err := json.Unmarshal(body, out); err != nil {
		return malformedBody(err)
	}
	return nil
}

func malformedBody(err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, ErrMalformedBody.Message).
		WithTextCode(TextCodeMalformedBody)
}
