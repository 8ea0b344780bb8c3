package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector はシフト状態遷移とリクエストのメトリクスを保持します。
// shift.Observer を満たし、時計の逆行とイベント通知の失敗は Warn でログ出力します。
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	transitions     *prometheus.CounterVec
	clockSkew       prometheus.Counter
	writeConflicts  prometheus.Counter
	publishFailures prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	grpcRequestsTotal   *prometheus.CounterVec
	grpcRequestDuration *prometheus.HistogramVec
}

var _ shift.Observer = (*Collector)(nil)

// New は専用レジストリに登録済みの Collector を生成します。
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shift_transitions_total",
				Help: "Total number of committed shift events by type",
			},
			[]string{"event"},
		),
		clockSkew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shift_clock_skew_total",
			Help: "Number of recomputes that observed a clock moving backwards",
		}),
		writeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shift_write_conflicts_total",
			Help: "Number of optimistic write conflicts on shift records",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shift_event_publish_failures_total",
			Help: "Number of shift events that could not be published",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		grpcRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method", "code"},
		),
		grpcRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grpc_request_duration_seconds",
				Help:    "gRPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	c.registry.MustRegister(
		c.transitions,
		c.clockSkew,
		c.writeConflicts,
		c.publishFailures,
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.grpcRequestsTotal,
		c.grpcRequestDuration,
	)

	return c
}

// Registry は Collector のレジストリを返します。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は /metrics 用の HTTP ハンドラーを返します。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Transition はコミット済みのシフトイベントを数えます。
func (c *Collector) Transition(ev shift.Event) {
	c.transitions.WithLabelValues(string(ev.Type)).Inc()
	c.logger.Debug("shift transition",
		zap.String("courier_id", ev.CourierID),
		zap.String("shift_id", ev.ShiftID),
		zap.String("event", string(ev.Type)),
	)
}

// ClockSkew は現在時刻が直前の基準時刻より前だったことを記録します。
func (c *Collector) ClockSkew(courierID string, skew time.Duration) {
	c.clockSkew.Inc()
	c.logger.Warn("clock moved backwards, recompute skipped",
		zap.String("courier_id", courierID),
		zap.Duration("skew", skew),
	)
}

// WriteConflict は楽観ロックの競合を数えます。
func (c *Collector) WriteConflict(courierID string) {
	c.writeConflicts.Inc()
	c.logger.Debug("shift write conflict, retrying", zap.String("courier_id", courierID))
}

// PublishFailed はイベント通知の失敗を記録します。
func (c *Collector) PublishFailed(ev shift.Event, err error) {
	c.publishFailures.Inc()
	c.logger.Warn("failed to publish shift event",
		zap.String("courier_id", ev.CourierID),
		zap.String("event", string(ev.Type)),
		zap.Error(err),
	)
}

// GinMiddleware は HTTP リクエスト数と所要時間を記録します。
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		handler := ctx.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		c.httpRequestDuration.WithLabelValues(handler, ctx.Request.Method).Observe(time.Since(start).Seconds())
		c.httpRequestsTotal.WithLabelValues(handler, ctx.Request.Method, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}

// UnaryServerInterceptor は gRPC リクエスト数と所要時間を記録します。
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		c.grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		c.grpcRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
