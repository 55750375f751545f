package jobtracker

import (
	"github.com/uptrace/bun"
)

// Services bundles every component behind the HTTP surface, built from one
// database handle and one Config.
type Services struct {
	Repo         RepositoryManager
	Tokens       *TokenServiceImpl
	Provider     *UserProvider
	Auth         *Auther
	Applications *ApplicationService
	Analytics    *Aggregator
	Controller   *HTTPController
}

// ServicesOption tweaks NewServices
type ServicesOption func(*servicesSetup)

type servicesSetup struct {
	logger Logger
	clock  Clock
	sink   ActivitySink
}

func WithServicesLogger(l Logger) ServicesOption {
	return func(s *servicesSetup) { s.logger = l }
}

func WithServicesClock(c Clock) ServicesOption {
	return func(s *servicesSetup) { s.clock = c }
}

// WithServicesActivitySink overrides the default logging sink
func WithServicesActivitySink(sink ActivitySink) ServicesOption {
	return func(s *servicesSetup) { s.sink = sink }
}

// NewServices wires repositories, auth and analytics together
func NewServices(db *bun.DB, cfg Config, opts ...ServicesOption) *Services {
	setup := &servicesSetup{}
	for _, opt := range opts {
		opt(setup)
	}
	logger := resolveLogger("jobtracker", setup.logger)
	if setup.sink == nil {
		setup.sink = LoggingActivitySink(logger)
	}

	repo := NewRepositoryManager(db, setup.clock)
	hasher := NewBcryptHasher(cfg.GetBcryptCost())

	tokens := NewTokenServiceFromConfig(cfg, logger).WithClock(setup.clock)

	provider := NewUserProvider(repo.Users()).
		WithHasher(hasher).
		WithLogger(logger).
		WithClock(setup.clock).
		WithLockout(cfg.GetMaxLoginAttempts(), cfg.GetLoginCooldown())

	auther := NewAuthenticator(repo, provider, tokens, hasher).
		WithLogger(logger).
		WithActivitySink(setup.sink).
		WithClock(setup.clock)

	apps := NewApplicationService(repo.Applications()).
		WithLogger(logger).
		WithActivitySink(setup.sink).
		WithClock(setup.clock)

	analytics := NewAggregator(db).
		WithLogger(logger).
		WithClock(setup.clock)

	controller := NewHTTPController(auther, apps, analytics).
		WithLogger(logger).
		WithClock(setup.clock)

	return &Services{
		Repo:         repo,
		Tokens:       tokens,
		Provider:     provider,
		Auth:         auther,
		Applications: apps,
		Analytics:    analytics,
		Controller:   controller,
	}
}
