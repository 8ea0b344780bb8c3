package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	grpchandler "github.com/ogurasousui/courier-shift/internal/adapters/grpc/handler"
	httphandler "github.com/ogurasousui/courier-shift/internal/adapters/http/handler"
	redispub "github.com/ogurasousui/courier-shift/internal/adapters/publisher/redis"
	"github.com/ogurasousui/courier-shift/internal/adapters/repository/postgres"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/ogurasousui/courier-shift/internal/platform/auth"
	"github.com/ogurasousui/courier-shift/internal/platform/config"
	pg "github.com/ogurasousui/courier-shift/internal/platform/db/postgres"
	"github.com/ogurasousui/courier-shift/internal/platform/logger"
	"github.com/ogurasousui/courier-shift/internal/platform/metrics"
	"github.com/ogurasousui/courier-shift/internal/platform/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database, zl)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	collector := metrics.New(zl.Named("shift"))
	txManager := pg.NewTransactionManager(dbPool, pg.WithConflictError(shift.ErrWriteConflict))

	courierSvc := courier.NewService(postgres.NewCourierRepository(dbPool))

	opts := []shift.Option{
		shift.WithCourierDirectory(courierSvc),
		shift.WithObserver(collector),
	}
	if cfg.Redis.Enabled {
		rdb, err := redispub.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, shift.WithPublisher(redispub.NewPublisher(rdb, cfg.Redis.Channel)))
		zl.Info("publishing shift events to redis", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
	}

	shiftSvc := shift.NewService(postgres.NewShiftRepository(dbPool), nil, txManager, cfg.Shift.Rules(), opts...)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, auth.WithAccountChecker(accountChecker(courierSvc)))

	grpcServer := server.New(cfg.Server.ListenAddr, grpchandler.NewShiftGrpcHandler(shiftSvc, courierSvc),
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(zl.Named("grpc")),
			collector.UnaryServerInterceptor(),
			auth.UnaryServerInterceptor(verifier),
		),
	)

	shiftHTTP := httphandler.NewShiftHTTPHandler(shiftSvc, courierSvc)
	router := server.NewRouter(server.RouterConfig{
		Logger:         zl,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Middleware:     []gin.HandlerFunc{collector.GinMiddleware()},
		MetricsHandler: collector.Handler(),
		Pinger:         dbPool,
		Routes: []server.RouteRegistrar{server.RouteRegistrarFunc(func(r gin.IRouter) {
			shiftHTTP.Register(r, verifier)
		})},
	})
	httpServer := server.NewHTTP(cfg.Server.HTTPAddr, router, zl)

	zl.Info("servers starting",
		zap.String("grpc_addr", cfg.Server.ListenAddr),
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.Any("rules", cfg.Shift.Rules()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })
	return g.Wait()
}
