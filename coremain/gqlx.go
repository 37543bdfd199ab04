package coremain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pmkol/gqlx/mlog"
	"github.com/pmkol/gqlx/pkg/auth"
	"github.com/pmkol/gqlx/pkg/cache/mem_cache"
	"github.com/pmkol/gqlx/pkg/cache/sweeper"
	"github.com/pmkol/gqlx/pkg/credential"
	"github.com/pmkol/gqlx/pkg/executor"
	"github.com/pmkol/gqlx/pkg/gql"
	"github.com/pmkol/gqlx/pkg/gqlerror"
	"github.com/pmkol/gqlx/pkg/policy"
	"github.com/pmkol/gqlx/pkg/safe_close"
	"github.com/pmkol/gqlx/pkg/transport/h3gql"
	"github.com/pmkol/gqlx/pkg/transport/httpgql"
)

// Gqlx holds every component of a running gateway.
type Gqlx struct {
	logger *zap.Logger

	store    credential.Store
	provider *auth.Provider
	session  *auth.Session

	cache      *mem_cache.MemCache
	classifier *gqlerror.Classifier
	executor   *executor.Executor

	metricsReg *prometheus.Registry

	closers []io.Closer
}

// NewGqlx builds the gateway components from cfg. Nothing is started.
// Callers must call Close.
func NewGqlx(cfg *Config, lg *zap.Logger) (_ *Gqlx, err error) {
	m := &Gqlx{
		logger:     lg,
		metricsReg: newMetricsReg(),
	}
	defer func() {
		if err != nil {
			m.Close()
		}
	}()

	m.store, err = newCredentialStore(&cfg.Credential, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential store, %w", err)
	}
	if c, ok := m.store.(io.Closer); ok {
		m.closers = append(m.closers, c)
	}
	m.provider, err = auth.NewProvider(auth.ProviderOpts{
		Store:  m.store,
		Key:    cfg.Credential.Key,
		Logger: lg.Named("auth"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init auth provider, %w", err)
	}
	m.session = auth.NewSession(m.provider)

	m.cache, err = mem_cache.New(mem_cache.Opts{Capacity: cfg.Cache.Capacity})
	if err != nil {
		return nil, fmt.Errorf("failed to init cache, %w", err)
	}

	diagLog := gqlerror.NewLog(cfg.Diagnostics.LogSize)
	if natsURL := cfg.Diagnostics.NATS.URL; len(natsURL) > 0 {
		sink, err := gqlerror.DialNATSSink(natsURL, cfg.Diagnostics.NATS.Subject, lg.Named("nats"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect nats, %w", err)
		}
		m.closers = append(m.closers, sink)
		diagLog.SetSink(sink)
	}
	m.classifier = gqlerror.NewClassifier(gqlerror.Opts{
		Credentials: m.provider,
		Cache:       m.cache,
		Log:         diagLog,
		Logger:      lg.Named("classifier"),
	})

	transport, err := newTransport(&cfg.Endpoint, lg.Named("transport"))
	if err != nil {
		return nil, fmt.Errorf("failed to init transport, %w", err)
	}
	if c, ok := transport.(io.Closer); ok {
		m.closers = append(m.closers, c)
	}

	pol, err := policy.New(cfg.Cache.PolicyConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid cache policy, %w", err)
	}

	m.executor, err = executor.New(executor.Opts{
		Transport:   transport,
		Policy:      pol,
		Classifier:  m.classifier,
		Cache:       m.cache,
		Headers:     m.provider,
		Timeout:     cfg.Endpoint.Timeout,
		MaxRetries:  cfg.Executor.MaxRetries,
		BackoffUnit: cfg.Executor.BackoffUnit,
		Logger:      lg.Named("executor"),
		MetricsReg:  m.GetMetricsReg(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init executor, %w", err)
	}
	return m, nil
}

func newCredentialStore(cfg *CredentialConfig, lg *zap.Logger) (credential.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return credential.NewMemStore(), nil
	case "redis":
		opt, err := redis.ParseURL(cfg.Redis.Addr)
		if err != nil {
			// Plain host:port.
			opt = &redis.Options{Addr: cfg.Redis.Addr}
		}
		if len(cfg.Redis.Password) > 0 {
			opt.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB > 0 {
			opt.DB = cfg.Redis.DB
		}
		client := redis.NewClient(opt)
		return credential.NewRedisStore(credential.RedisStoreOpts{
			Client:        client,
			ClientCloser:  client,
			Prefix:        cfg.Redis.Prefix,
			ClientTimeout: cfg.Redis.Timeout,
			Logger:        lg.Named("redis"),
		})
	case "badger":
		return credential.NewBadgerStore(credential.BadgerStoreOpts{
			Dir:      cfg.Badger.Dir,
			InMemory: cfg.Badger.InMemory,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newTransport(cfg *EndpointConfig, lg *zap.Logger) (gql.Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case "", "http":
		return httpgql.NewTransport(httpgql.Opts{
			URL:         cfg.URL,
			Header:      cfg.Headers,
			MaxBodySize: cfg.MaxBody,
			Logger:      lg,
		})
	case "h3":
		return h3gql.NewTransport(h3gql.Opts{
			URL:         cfg.URL,
			Header:      cfg.Headers,
			MaxBodySize: cfg.MaxBody,
			Logger:      lg,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Close releases the transport, the credential store and the diagnostics
// sink.
func (m *Gqlx) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

func (m *Gqlx) Execute(ctx context.Context, query string, vars map[string]any) (*gql.Response, error) {
	return m.executor.Execute(ctx, query, vars)
}

func (m *Gqlx) GetExecutor() *executor.Executor {
	return m.executor
}

func (m *Gqlx) GetSession() *auth.Session {
	return m.session
}

func (m *Gqlx) GetMetricsReg() prometheus.Registerer {
	return prometheus.WrapRegistererWithPrefix("gqlx_", m.metricsReg)
}

// reloadPolicy swaps the cache policy after a config file change. Other
// sections need a restart.
func (m *Gqlx) reloadPolicy(v *viper.Viper) {
	cfg, err := decodeConfig(v)
	if err != nil {
		m.logger.Error("config reload failed, keeping the running policy", zap.Error(err))
		return
	}
	p, err := policy.New(cfg.Cache.PolicyConfig())
	if err != nil {
		m.logger.Error("invalid cache policy, keeping the running one", zap.Error(err))
		return
	}
	m.executor.SetPolicy(p)
	m.logger.Info("cache policy reloaded", zap.Int("rules", len(p.Rules())))
}

// RunGqlx runs the gateway described by cfg until sc is closed. If sc is nil
// a new one is created and closed on SIGINT/SIGTERM. v is optional. When
// set, changes of the config file reload the cache policy.
func RunGqlx(cfg *Config, v *viper.Viper, sc *safe_close.SafeClose) error {
	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	mlog.SetLogger(lg)

	m, err := NewGqlx(cfg, lg)
	if err != nil {
		return err
	}
	defer m.Close()

	if sc == nil {
		sc = safe_close.NewSafeClose()
		sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)
			select {
			case s := <-sig:
				lg.Info("signal received, exiting", zap.Stringer("signal", s))
				sc.SendCloseSignal(nil)
			case <-closeSignal:
			}
		})
	}

	sw := sweeper.New(m.cache, sweeper.Opts{
		Interval: cfg.Cache.SweepInterval,
		Logger:   lg.Named("sweeper"),
	})
	if sw.Start(sc) {
		lg.Info("cache sweeper started", zap.Duration("interval", cfg.Cache.SweepInterval))
	}

	if v != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			lg.Info("config file changed", zap.String("file", e.Name))
			m.reloadPolicy(v)
		})
		v.WatchConfig()
	}

	// Start http api server
	if httpAddr := cfg.API.HTTP; len(httpAddr) > 0 {
		httpServer := &http.Server{
			Addr:    httpAddr,
			Handler: m.newAPIRouter(),
		}
		sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			errChan := make(chan error, 1)
			go func() {
				lg.Info("starting api http server", zap.String("addr", httpAddr))
				errChan <- httpServer.ListenAndServe()
			}()
			select {
			case err := <-errChan:
				sc.SendCloseSignal(err)
			case <-closeSignal:
				httpServer.Close()
			}
		})
	} else {
		lg.Warn("api.http is empty, the gateway only runs background tasks")
	}

	<-sc.ReceiveCloseSignal()
	sc.Done()
	sc.CloseWait()
	return sc.Err()
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
