package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	v1 "github.com/fitstudio/staff-console/internal/api/v1"
	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/logging"
	"github.com/fitstudio/staff-console/internal/metrics"
	"github.com/fitstudio/staff-console/internal/notify"
	"github.com/fitstudio/staff-console/internal/server"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/store/memstore"
	"github.com/fitstudio/staff-console/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			newRegistry,
			newRepository,
			newCipher,
			newDispatcher,
			newCoachService,
			service.NewUserService,
			newAPI,
			newServer,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(runHTTP),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	l, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() { _ = l.Sync() }))
	return l, nil
}

func newRegistry() (prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, reg
}

func newRepository(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (store.Repository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	s, err := store.NewGormStore(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(s.Close))
	return s, nil
}

func newCipher(cfg *config.Config) (*utils.AccountCipher, error) {
	return utils.NewAccountCipher(cfg.AccountEncryptionKey)
}

func newDispatcher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (notify.Dispatcher, error) {
	d, err := notify.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(d.Close))
	return d, nil
}

func newCoachService(
	cfg *config.Config,
	repo store.Repository,
	cipher *utils.AccountCipher,
	dispatcher notify.Dispatcher,
	reg prometheus.Registerer,
	logger *zap.Logger,
) (*service.Service, error) {
	opts := []service.Option{
		service.WithNotifier(dispatcher),
		service.WithMetrics(metrics.New(reg)),
		service.WithLogger(logger.Named("workflow")),
	}
	if cfg.R2Enabled() {
		r2 := utils.NewR2Storage(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2Endpoint, cfg.R2BucketName)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r2.Ping(ctx); err != nil {
			logger.Warn("document storage check failed, review urls may be empty", zap.Error(err))
		}
		opts = append(opts, service.WithDocumentURLs(r2, cfg.DocumentURLTTL))
	}
	return service.New(repo, cipher, opts...)
}

func newAPI(cfg *config.Config, repo store.Repository, coaches *service.Service, users *service.UserService, logger *zap.Logger) *v1.API {
	return v1.NewAPI(cfg, repo, coaches, users, logger.Named("http"))
}

func newServer(cfg *config.Config, api *v1.API, gatherer prometheus.Gatherer) *server.Server {
	return server.NewServer(cfg, api, gatherer)
}

func runHTTP(lc fx.Lifecycle, shutdowner fx.Shutdowner, srv *server.Server, logger *zap.Logger) {
	httpSrv := srv.NewHTTPServer()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpSrv.Addr)
			if err != nil {
				return err
			}
			logger.Info("server listening", zap.String("addr", httpSrv.Addr))
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpSrv.Shutdown(ctx)
		},
	})
}
