package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCollector_ObserverCounters(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core))

	c.Transition(shift.Event{Type: shift.EventWorkStart, CourierID: "courier-1"})
	c.Transition(shift.Event{Type: shift.EventBreakStart, CourierID: "courier-1"})
	c.Transition(shift.Event{Type: shift.EventBreakStart, CourierID: "courier-2"})
	c.ClockSkew("courier-1", 3*time.Second)
	c.WriteConflict("courier-1")
	c.PublishFailed(shift.Event{Type: shift.EventWorkEnd}, errors.New("redis down"))

	if got := testutil.ToFloat64(c.transitions.WithLabelValues(string(shift.EventBreakStart))); got != 2 {
		t.Fatalf("expected 2 BREAK_START transitions, got %v", got)
	}
	if got := testutil.ToFloat64(c.clockSkew); got != 1 {
		t.Fatalf("expected 1 clock skew, got %v", got)
	}
	if got := testutil.ToFloat64(c.writeConflicts); got != 1 {
		t.Fatalf("expected 1 write conflict, got %v", got)
	}
	if got := testutil.ToFloat64(c.publishFailures); got != 1 {
		t.Fatalf("expected 1 publish failure, got %v", got)
	}

	if n := logs.FilterMessage("clock moved backwards, recompute skipped").Len(); n != 1 {
		t.Fatalf("expected clock skew warning, got %d", n)
	}
	if n := logs.FilterMessage("failed to publish shift event").Len(); n != 1 {
		t.Fatalf("expected publish warning, got %d", n)
	}
}

func TestCollector_GinMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	c := New(nil)

	r := gin.New()
	r.Use(c.GinMiddleware())
	r.GET("/shifts/:id/events", func(ctx *gin.Context) { ctx.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/shifts/abc/events", nil))

	if got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("/shifts/:id/events", http.MethodGet, "404")); got != 1 {
		t.Fatalf("expected 1 request with route label, got %v", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected exposition to contain http_requests_total")
	}
}

func TestCollector_UnaryServerInterceptor(t *testing.T) {
	t.Parallel()

	c := New(nil)
	interceptor := c.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/courier.shift.v1.ShiftService/StartShift"}

	_, _ = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.FailedPrecondition, "shift already open")
	})

	if got := testutil.ToFloat64(c.grpcRequestsTotal.WithLabelValues(info.FullMethod, codes.FailedPrecondition.String())); got != 1 {
		t.Fatalf("expected 1 FailedPrecondition request, got %v", got)
	}
}
