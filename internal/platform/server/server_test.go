package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/adapters/grpc/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type unimplementedShifts struct{}

func (unimplementedShifts) StartShift(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (unimplementedShifts) EndShift(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (unimplementedShifts) GetCurrentState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (unimplementedShifts) ListHistory(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (unimplementedShifts) ListEvents(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (unimplementedShifts) GetRoster(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func TestServer_HealthAndGracefulStop(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1024 * 1024)
	srv := New("bufnet", unimplementedShifts{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.ShiftServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	require.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestNewRouter_Healthz(t *testing.T) {
	t.Parallel()

	ok := NewRouter(RouterConfig{Pinger: stubPinger{}})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewRouter(RouterConfig{Pinger: stubPinger{err: errors.New("db down")}})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewRouter_MetricsRoutesAndCORS(t *testing.T) {
	t.Parallel()

	var registered bool
	r := NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Routes: []RouteRegistrar{RouteRegistrarFunc(func(r gin.IRouter) {
			registered = true
			r.GET("/shifts/current", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		})},
	})
	require.True(t, registered)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/shifts/current", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPServer_ShutdownOnCancel(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewHTTP(lis.Addr().String(), NewRouter(RouterConfig{}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("http server did not stop after context cancellation")
	}
}
