package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/movie-auth-gateway/auth"
	"github.com/upb/movie-auth-gateway/config"
	"github.com/upb/movie-auth-gateway/handlers"
	"github.com/upb/movie-auth-gateway/internal/observability"
	"github.com/upb/movie-auth-gateway/localauth"
	"github.com/upb/movie-auth-gateway/middleware"
	"github.com/upb/movie-auth-gateway/repositories"
	"github.com/upb/movie-auth-gateway/repositories/memory"
	"github.com/upb/movie-auth-gateway/repositories/postgres"
	"github.com/upb/movie-auth-gateway/services"
	"github.com/upb/movie-auth-gateway/sso"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// RepoFactory is nil with the memory driver
	RepoFactory  *postgres.RepositoryFactory
	Repositories *repositories.Repositories

	// Authentication
	Trust          auth.TrustConfiguration
	LocalAuthority *localauth.Authority
	SSOValidator   *sso.Validator // nil when SSO is disabled
	Gate           *auth.Gate
	AuthMiddleware *middleware.AuthMiddleware

	// HTTP handlers
	LoginHandler  *localauth.Handler
	MovieHandler  *handlers.MovieHandler
	UserHandler   *handlers.UserHandler
	HealthHandler *handlers.HealthHandler

	stopWarm context.CancelFunc
}

// Option customizes dependency construction
type Option func(*options)

type options struct {
	repositories   *repositories.Repositories
	localAuthOpts  []localauth.Option
	ssoOpts        []sso.Option
	skipSSOWarmup  bool
	metricRegistry *prometheus.Registry
}

// WithRepositories uses the given repositories instead of opening the configured store
func WithRepositories(repos *repositories.Repositories) Option {
	return func(o *options) {
		o.repositories = repos
	}
}

// WithLocalAuthOptions passes options to the local token authority
func WithLocalAuthOptions(opts ...localauth.Option) Option {
	return func(o *options) {
		o.localAuthOpts = append(o.localAuthOpts, opts...)
	}
}

// WithSSOOptions passes options to the SSO validator
func WithSSOOptions(opts ...sso.Option) Option {
	return func(o *options) {
		o.ssoOpts = append(o.ssoOpts, opts...)
	}
}

// WithoutSSOWarmup skips the background key set fetch at startup
func WithoutSSOWarmup() Option {
	return func(o *options) {
		o.skipSSOWarmup = true
	}
}

// WithMetricRegistry registers metrics on registry instead of a fresh one
func WithMetricRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.metricRegistry = registry
	}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	registry := o.metricRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(registry),
		Trust:   cfg.TrustConfiguration(),
	}

	if err := deps.initStorage(ctx, o); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps.initAuth(ctx, o)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.String("storage", cfg.Database.Driver),
		zap.Strings("schemes", deps.Gate.Schemes()))
	return deps, nil
}

// initStorage opens the configured store, creates the schema and seeds it
func (d *Dependencies) initStorage(ctx context.Context, o *options) error {
	switch {
	case o.repositories != nil:
		d.Repositories = o.repositories

	case d.Config.Database.Driver == config.DriverPostgres:
		factory, err := postgres.NewRepositoryFactory(d.Config.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory

		if err := factory.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.Repositories = factory.NewRepositories()
		d.Logger.Info("database connection established",
			zap.String("connection", d.Config.Database.LogString()))

	default:
		d.Repositories = memory.NewRepositories()
		d.Logger.Info("using in-memory storage")
	}

	if d.Config.Database.Seed {
		if err := repositories.Seed(ctx, d.Repositories, d.Logger, repositories.WithPasswordHasher(localauth.HashPassword)); err != nil {
			return fmt.Errorf("failed to seed storage: %w", err)
		}
	}
	return nil
}

// initAuth builds both token authorities and the gate in front of them
func (d *Dependencies) initAuth(ctx context.Context, o *options) {
	d.LocalAuthority = localauth.NewAuthority(d.Trust, d.Repositories.Users, d.Logger.Named("localauth"), o.localAuthOpts...)
	authorities := []auth.Authority{d.LocalAuthority}

	if d.Config.SSO.Enabled {
		ssoOpts := append([]sso.Option{sso.WithRefreshRecorder(d.Metrics.RecordKeyRefresh)}, o.ssoOpts...)
		d.SSOValidator = sso.NewValidator(d.Trust, sso.Config{
			JWKSURL:       d.Config.SSO.JWKSURL,
			AllowedAlgs:   d.Config.SSO.AllowedAlgs,
			CacheTTL:      d.Config.SSO.KeysCacheTTL,
			HTTPTimeout:   d.Config.SSO.HTTPTimeout,
			RetryInterval: d.Config.SSO.RetryInterval,
			Leeway:        d.Config.SSO.ClockSkew,
		}, d.Logger.Named("sso"), ssoOpts...)
		authorities = append(authorities, d.SSOValidator)

		if !o.skipSSOWarmup {
			d.warmSSOKeys(ctx)
		}
	} else {
		d.Logger.Warn("SSO disabled, only locally issued tokens are accepted")
	}

	d.Gate = auth.NewGate(d.Trust, d.Logger.Named("gate"), authorities, auth.WithOutcomeRecorder(d.Metrics))
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Gate, d.Logger)
}

// warmSSOKeys fetches the provider key set in the background; a failure only delays
// the fetch to the first SSO request.
func (d *Dependencies) warmSSOKeys(ctx context.Context) {
	warmCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.stopWarm = cancel
	validator := d.SSOValidator
	logger := d.Logger

	go func() {
		defer cancel()
		if err := validator.Warm(warmCtx); err != nil {
			logger.Warn("SSO key set warmup failed", zap.Error(err))
		}
	}()
}

func (d *Dependencies) initHandlers() {
	d.LoginHandler = localauth.NewHandler(d.LocalAuthority, d.Logger)
	d.MovieHandler = handlers.NewMovieHandler(
		services.NewMovieService(d.Repositories.Movies, d.Repositories.Transactions, d.Logger),
		d.Logger,
	)
	d.UserHandler = handlers.NewUserHandler(services.NewUserService(d.Repositories.Users), d.Logger)

	var keys handlers.KeyCacheReporter
	if d.SSOValidator != nil {
		keys = d.SSOValidator
	}
	d.HealthHandler = handlers.NewHealthHandler(
		d.Repositories.Health,
		keys,
		d.Config.Version,
		d.Config.Environment,
		d.Gate.Schemes(),
		d.Logger,
	)
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.stopWarm != nil {
		d.stopWarm()
	}

	var errs []error
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
