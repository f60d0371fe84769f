package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/pgrun/internal/config"
	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/driver"
	"github.com/oriys/pgrun/internal/logging"
	"github.com/oriys/pgrun/internal/metrics"
	"github.com/oriys/pgrun/internal/observability"
	"github.com/oriys/pgrun/internal/output"
	"github.com/oriys/pgrun/internal/query"
	"github.com/oriys/pgrun/internal/registry"
	"github.com/oriys/pgrun/internal/secrets"
)

// app holds what a single CLI invocation needs. Registries are connected
// lazily so commands that only take literal connection strings never dial
// Redis or the metadata database.
type app struct {
	opts    *rootOptions
	cfg     *config.Config
	printer *output.Printer
	metrics *metrics.Metrics
	audit   *logging.AuditLog

	registry conn.Registry
	store    *registry.Lazy
	file     *registry.File
	secrets  *secrets.Store
	resolver *conn.Resolver
	exec     *query.Executor
	closers  []func() error
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	a.opts = opts

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadFromFile(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return err
	}
	if opts.driver != "" {
		cfg.Driver = opts.driver
	}
	if opts.logLevel != "" {
		cfg.Observability.Logging.Level = opts.logLevel
	}
	if opts.auditLog != "" {
		cfg.Observability.AuditLog = opts.auditLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

	format, err := output.ParseFormat(opts.output)
	if err != nil {
		return err
	}
	a.printer = output.NewPrinter(format)
	if w := cmd.OutOrStdout(); w != os.Stdout {
		a.printer.SetWriter(w)
	}

	if err := observability.Init(cmd.Context(), cfg.Observability.Tracing); err != nil {
		logging.Op().Warn("tracing disabled", "error", err)
	}
	a.metrics = metrics.New("pgrun", nil)

	if cfg.Observability.AuditLog != "" {
		audit, err := logging.OpenAuditLog(cfg.Observability.AuditLog)
		if err != nil {
			return err
		}
		a.audit = audit
		a.closers = append(a.closers, audit.Close)
	}
	return nil
}

// open builds the registry chain and the executor. Redis and Postgres
// registries dial on their first lookup.
func (a *app) open(ctx context.Context) error {
	if a.exec != nil {
		return nil
	}
	cfg := a.cfg

	var chain registry.Chain
	for _, kind := range cfg.Registry.Kinds {
		switch kind {
		case config.RegistryEnv:
			chain = append(chain, registry.NewEnv(cfg.Registry.EnvPrefix))
		case config.RegistryFile:
			a.file = registry.NewFile(cfg.Registry.Path)
			chain = append(chain, a.file)
		case config.RegistryRedis:
			rc := cfg.Registry.Redis
			l := registry.NewLazy(func(context.Context) (registry.Store, error) {
				return registry.NewRedis(rc.Addr, rc.Password, rc.DB)
			})
			a.addStore(l)
			chain = append(chain, l)
		case config.RegistryPostgres:
			dsn := cfg.Registry.Postgres.DSN
			l := registry.NewLazy(func(ctx context.Context) (registry.Store, error) {
				return registry.NewPostgres(ctx, dsn)
			})
			a.addStore(l)
			chain = append(chain, l)
		}
	}
	a.registry = chain

	var resolverOpts []conn.Option
	if cfg.Driver == "sqlite" {
		resolverOpts = append(resolverOpts, conn.WithMarkers(append([]string{"sqlite://"}, conn.DefaultMarkers...)...))
	}
	if a.store != nil {
		cipher, err := a.cipher()
		if err != nil {
			return err
		}
		if cipher != nil {
			a.secrets = secrets.NewStore(a.store, cipher)
			resolverOpts = append(resolverOpts, conn.WithSecrets(secrets.NewResolver(a.secrets)))
		}
	}
	a.resolver = conn.NewResolver(chain, resolverOpts...)

	drv, err := driver.Lookup(cfg.Driver)
	if err != nil {
		return err
	}
	a.exec = query.New(a.resolver, drv,
		query.WithBatchSize(cfg.BatchSize),
		query.WithMetrics(a.metrics),
		query.WithAuditLog(a.audit),
	)
	return nil
}

// addStore keeps the first writable registry for conn and secret commands.
func (a *app) addStore(s *registry.Lazy) {
	a.closers = append(a.closers, s.Close)
	if a.store == nil {
		a.store = s
	}
}

// cipher returns nil when no key is configured.
func (a *app) cipher() (*secrets.Cipher, error) {
	switch {
	case a.cfg.Secrets.Key != "":
		return secrets.NewCipher(a.cfg.Secrets.Key)
	case a.cfg.Secrets.KeyFile != "":
		return secrets.NewCipherFromFile(a.cfg.Secrets.KeyFile)
	default:
		return nil, nil
	}
}

func (a *app) writableStore(ctx context.Context) (registry.Store, error) {
	if err := a.open(ctx); err != nil {
		return nil, err
	}
	if a.store == nil {
		return nil, errors.New("no writable registry configured (add redis or postgres to registry kinds)")
	}
	return a.store.Get(ctx)
}

func (a *app) secretStore(ctx context.Context) (*secrets.Store, error) {
	if _, err := a.writableStore(ctx); err != nil {
		return nil, err
	}
	if a.secrets == nil {
		return nil, errors.New("no secrets key configured (set PGRUN_SECRETS_KEY or PGRUN_SECRETS_KEY_FILE)")
	}
	return a.secrets, nil
}

// statementContext applies --timeout.
func (a *app) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.timeout > 0 {
		return context.WithTimeout(ctx, a.opts.timeout)
	}
	return context.WithCancel(ctx)
}

// Close flushes telemetry and metrics and releases registries.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.opts != nil && a.opts.metricsFile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.opts.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := observability.Shutdown(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
