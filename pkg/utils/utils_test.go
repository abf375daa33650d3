package utils

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCStatusToHTTP(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", status.Error(codes.NotFound, "x"), http.StatusNotFound},
		{"invalid", status.Error(codes.InvalidArgument, "x"), http.StatusBadRequest},
		{"unavailable", status.Error(codes.Unavailable, "x"), http.StatusServiceUnavailable},
		{"breaker open", gobreaker.ErrOpenState, http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, GRPCStatusToHTTP(tc.err))
		})
	}
}

func TestExecuteWithBreaker_TripsAfterFailures(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_, err := ExecuteWithBreaker(cb, func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	_, err := ExecuteWithBreaker(cb, func() (int, error) { return 1, nil })
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestExecuteWithBreaker_NotFoundDoesNotTrip(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())
	notFound := status.Error(codes.NotFound, "missing")

	for i := 0; i < 10; i++ {
		_, err := ExecuteWithBreaker(cb, func() (int, error) { return 0, notFound })
		require.Equal(t, codes.NotFound, status.Code(err))
	}

	require.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecuteWithBreaker_ReturnsValue(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())

	got, err := ExecuteWithBreaker(cb, func() (string, error) { return "p1", nil })
	require.NoError(t, err)
	require.Equal(t, "p1", got)
}

func TestFormatValidationError(t *testing.T) {
	type input struct {
		ProductID string `validate:"required,max=4"`
		Count     int64  `validate:"gte=0"`
	}

	err := validator.New().Struct(input{ProductID: "", Count: -1})
	require.Error(t, err)

	msgs := FormatValidationError(err)
	require.Equal(t, "productid is required", msgs["productid"])
	require.Equal(t, "count must be greater than or equal to 0", msgs["count"])

	require.Equal(t, map[string]string{"_": "plain"}, FormatValidationError(errors.New("plain")))
}

func TestDurationWithFallback(t *testing.T) {
	t.Setenv("TEST_DURATION", "3s")
	require.Equal(t, 3*time.Second, DurationWithFallback("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	require.Equal(t, time.Second, DurationWithFallback("TEST_DURATION", time.Second))
}
