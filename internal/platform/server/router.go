package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/platform/logger"
	"go.uber.org/zap"
)

// Pinger はヘルスチェックで疎通確認する依存先です。*pgxpool.Pool が満たします。
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar は API ルートを登録します。
type RouteRegistrar interface {
	Register(r gin.IRouter)
}

// RouteRegistrarFunc は関数を RouteRegistrar として扱います。
type RouteRegistrarFunc func(r gin.IRouter)

// Register は f(r) を呼び出します。
func (f RouteRegistrarFunc) Register(r gin.IRouter) {
	f(r)
}

// RouterConfig は NewRouter の依存をまとめます。
type RouterConfig struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	// Middleware はロガーの後に適用されます (例: メトリクス)。
	Middleware     []gin.HandlerFunc
	MetricsHandler http.Handler
	Pinger         Pinger
	Routes         []RouteRegistrar
}

// NewRouter は共通ミドルウェア、/healthz、/metrics と API ルートを持つ gin.Engine を構築します。
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log.Named("http")))
	r.Use(cfg.Middleware...)

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
		corsCfg.AllowCredentials = true
		r.Use(cors.New(corsCfg))
	}

	r.GET("/healthz", healthz(cfg.Pinger))
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	for _, routes := range cfg.Routes {
		routes.Register(r)
	}

	return r
}

func healthz(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
