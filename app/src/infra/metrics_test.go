package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFetchCounters(t *testing.T) {
	startTotal := testutil.ToFloat64(FetchesTotal)
	startInFlight := testutil.ToFloat64(FetchesInFlight)

	FetchStarted()
	assert.Equal(t, startTotal+1, testutil.ToFloat64(FetchesTotal))
	assert.Equal(t, startInFlight+1, testutil.ToFloat64(FetchesInFlight))

	FetchFinished(10 * time.Millisecond)
	assert.Equal(t, startInFlight, testutil.ToFloat64(FetchesInFlight))

	startErrors := testutil.ToFloat64(FetchErrorsTotal)
	IncFetchErrors()
	assert.Equal(t, startErrors+1, testutil.ToFloat64(FetchErrorsTotal))
}

func TestDBBatchGauge(t *testing.T) {
	ObserveDBBatchSize(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(DbBatchSize))

	ObserveDBBatchSize(-3)
	assert.Equal(t, 0.0, testutil.ToFloat64(DbBatchSize))
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	startRequests := testutil.ToFloat64(HttpRequestsTotal)
	startErrors := testutil.ToFloat64(HttpRequestErrorsTotal)

	handler := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, startRequests+1, testutil.ToFloat64(HttpRequestsTotal))
	assert.Equal(t, startErrors, testutil.ToFloat64(HttpRequestErrorsTotal))

	failing := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, startErrors+1, testutil.ToFloat64(HttpRequestErrorsTotal))
}

func TestGRPCInterceptorCountsErrors(t *testing.T) {
	startErrors := testutil.ToFloat64(HttpRequestErrorsTotal)
	interceptor := GRPCUnaryInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: "/test/Method"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, startErrors, testutil.ToFloat64(HttpRequestErrorsTotal))

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.Internal, "boom")
	})
	require.Error(t, err)
	assert.Equal(t, startErrors+1, testutil.ToFloat64(HttpRequestErrorsTotal))
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	recorder := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	assert.Equal(t, http.StatusOK, recorder.Status())

	recorder.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, recorder.Status())
}
