package jobtracker

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// ServiceName is reported by the banner and health endpoints
	ServiceName = "job-application-tracker"
	// ServiceVersion is reported by the banner endpoint
	ServiceVersion = "1.0.0"

	requestIDKey = "requestid"
)

// RateLimit caps requests per client in a fixed window. Max <= 0 disables it.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// ServerOptions configures the server built by NewServer
type ServerOptions struct {
	CORSOrigins   []string
	LoginLimit    RateLimit
	RegisterLimit RateLimit
	// TrustedProxies lists the proxy addresses or CIDR ranges allowed to
	// set ProxyHeader. With none configured the socket address is used.
	TrustedProxies []string
	ProxyHeader    string
	// RequestLog receives one line per request. Nil disables request logging.
	RequestLog  io.Writer
	HealthCheck func(ctx context.Context) error
	Logger      Logger
}

// DefaultServerOptions mirrors the documented configuration defaults
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		CORSOrigins:   []string{"http://localhost:3000"},
		LoginLimit:    RateLimit{Max: 5, Window: time.Minute},
		RegisterLimit: RateLimit{Max: 3, Window: 5 * time.Minute},
	}
}

// NewServer builds the router server on the fiber adapter with the
// middleware stack and every route mounted.
func NewServer(controller *HTTPController, opts ServerOptions) router.Server[*fiber.App] {
	logger := resolveLogger("jobtracker.http", opts.Logger)

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiberConfig(opts, logger))

		app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
		app.Use(recover.New())
		if opts.RequestLog != nil {
			app.Use(fiberlogger.New(fiberlogger.Config{
				Format:        "${time} ${locals:" + requestIDKey + "} ${status} - ${latency} ${method} ${path}\n",
				Output:        opts.RequestLog,
				DisableColors: true,
			}))
		}
		app.Use(helmet.New())
		app.Use(cors.New(corsConfig(opts.CORSOrigins)))

		routes := controller.Routes
		if limit := NewRateLimiter(opts.LoginLimit, fiber.MethodPost); limit != nil {
			app.Use(routes.Auth+"/login", limit)
		}
		if limit := NewRateLimiter(opts.RegisterLimit, fiber.MethodPost); limit != nil {
			app.Use(routes.Auth+"/register", limit)
		}

		return app
	})

	r := srv.Router().WithLogger(logger)
	r.Get("/health", controller.Health(opts.HealthCheck)).SetName("health")
	RegisterRoutes(r, controller)

	return srv
}

// NewApp returns the fiber app behind NewServer with every route registered
func NewApp(controller *HTTPController, opts ServerOptions) *fiber.App {
	return NewServer(controller, opts).WrappedRouter()
}

func fiberConfig(opts ServerOptions, logger Logger) fiber.Config {
	cfg := fiber.Config{
		AppName:               ServiceName,
		ErrorHandler:          ErrorHandler(logger),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	}

	proxies := make([]string, 0, len(opts.TrustedProxies))
	for _, p := range opts.TrustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if len(proxies) > 0 {
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = proxies
		cfg.EnableIPValidation = true
		cfg.ProxyHeader = opts.ProxyHeader
		if cfg.ProxyHeader == "" {
			cfg.ProxyHeader = fiber.HeaderXForwardedFor
		}
	}
	return cfg
}

func corsConfig(origins []string) cors.Config {
	cleaned := make([]string, 0, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			wildcard = true
		}
		cleaned = append(cleaned, o)
	}

	if len(cleaned) == 0 || wildcard {
		return cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,Authorization",
		}
	}

	return cors.Config{
		AllowOrigins:     strings.Join(cleaned, ","),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}
}

// NewRateLimiter returns a per client fixed window limiter, or nil when
// the limit is disabled. When methods are given other methods pass through.
// Clients are keyed by c.IP(), which only honors the proxy header for
// trusted proxies.
func NewRateLimiter(limit RateLimit, methods ...string) fiber.Handler {
	if limit.Max <= 0 {
		return nil
	}
	window := limit.Window
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        limit.Max,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			if len(methods) == 0 {
				return false
			}
			for _, m := range methods {
				if c.Method() == m {
					return false
				}
			}
			return true
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fail(ErrRateLimited, map[string]any{"path": c.Path()})
		},
	})
}

// ErrorHandler renders every error as a go-errors response body. Internal
// failures are logged and their message masked.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = resolveLogger("jobtracker.http", logger)

	return func(c *fiber.Ctx, err error) error {
		richErr := toRichError(err)
		status := StatusCode(richErr)

		requestID, _ := c.Locals(requestIDKey).(string)

		if status >= http.StatusInternalServerError {
			args := []any{"error", err, "request_id", requestID, "path", c.Path()}
			for _, attr := range goerrors.ToSlogAttributes(richErr) {
				args = append(args, attr)
			}
			logger.Error("request failed", args...)

			richErr = goerrors.New("internal server error", goerrors.CategoryInternal).
				WithTextCode(TextCodeInternal)
		}

		richErr.Code = status
		richErr.Location = nil
		richErr.WithRequestID(requestID)

		if status == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		return c.Status(status).JSON(richErr.ToErrorResponse(false, nil))
	}
}

func toRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Clone()
	}

	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return goerrors.New(fiberErr.Message, goerrors.HTTPStatusToCategory(fiberErr.Code)).
			WithCode(fiberErr.Code).
			WithTextCode(goerrors.HTTPStatusToTextCode(fiberErr.Code))
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error")
}

// StatusCode maps an error category to its HTTP status. Ownership
// failures collapse into 404 so record existence never leaks.
func StatusCode(err *goerrors.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz, goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPController) Banner(c router.Context) error {
	return c.JSON(router.StatusOK, map[string]any{
		"message": "Job Application Tracker API",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}

// Health reports liveness, and storage reachability when check is set
func (h *HTTPController) Health(check func(ctx context.Context) error) router.HandlerFunc {
	return func(c router.Context) error {
		body := map[string]any{
			"status":    "healthy",
			"service":   ServiceName,
			"timestamp": h.clock.now().Format(time.RFC3339),
		}

		if check != nil {
			if err := check(c.Context()); err != nil {
				h.logger.Error("health check failed", "error", err)
				body["status"] = "unhealthy"
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}

		return c.JSON(router.StatusOK, body)
	}
}
