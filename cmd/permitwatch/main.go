// permitwatch 市政建筑许可浏览服务。
//
// 组合根：加载配置，构造日志/指标/连接池/熔断器，
// 挂载 HTTP 路由，并在收到退出信号时优雅关停 —
// 先停 HTTP 服务，再关闭全部数据库连接。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/config"
	"github.com/opencivic/permitwatch/dbpool"
	"github.com/opencivic/permitwatch/metrics"
	"github.com/opencivic/permitwatch/ops"
	"github.com/opencivic/permitwatch/permits"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := clog.New(&cfg.Log)
	if err != nil {
		return err
	}
	logger = logger.WithNamespace("permitwatch")

	meter, err := metrics.New(&cfg.Metrics)
	if err != nil {
		logger.Error("failed to initialize metrics", clog.Error(err))
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = meter.Shutdown(ctx)
	}()

	mgr, err := dbpool.New(&dbpool.Config{
		DSN:              cfg.Database.DSN,
		MinConnections:   cfg.Pool.MinConnections,
		MaxConnections:   cfg.Pool.MaxConnections,
		ConnectTimeout:   cfg.Pool.ConnectTimeout,
		StatementTimeout: cfg.Pool.StatementTimeout,
		CronJob:          cfg.CronJob,
	}, dbpool.WithLogger(logger), dbpool.WithMeter(meter))
	if err != nil {
		logger.Error("failed to create connection pool manager", clog.Error(err))
		return err
	}
	// 进程退出钩子：任何路径退出都关闭全部数据库连接
	defer func() {
		if err := mgr.CloseAll(); err != nil {
			logger.Error("failed to close database connections", clog.Error(err))
		}
	}()

	brk, err := breaker.New(&breaker.Config{},
		breaker.WithLogger(logger), breaker.WithMeter(meter))
	if err != nil {
		return err
	}

	store := permits.NewStore(mgr, brk, logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 嵌入式引擎是本地开发模式，顺手建表
	if mgr.Backend() == dbpool.BackendSQLite {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", clog.Error(err))
			return err
		}
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: ops.NewRouter(mgr, brk, store, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			clog.String("addr", cfg.Server.Addr),
			clog.String("backend", string(mgr.Backend())))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", clog.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown, some requests were dropped", clog.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
