package pbx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFetchReportSendsBearerAndPath(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rows":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/api/", Token: "secret"})
	require.NoError(t, err)
	require.True(t, client.Configured())

	report, err := client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-07"))
	require.NoError(t, err)
	require.JSONEq(t, `{"rows":[]}`, string(report))
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "/api/2024-03-01/2024-03-07/all_queues/all_numbers/all_agent/report_01", gotPath)
}

func TestFetchReportNotConfigured(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://pbx.example.com"})
	require.NoError(t, err)
	require.False(t, client.Configured())

	_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewClientRejectsInvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url", Token: "x"})
	require.Error(t, err)
}

func TestFetchReportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	require.Contains(t, string(httpErr.Body), "boom")
}

func TestFetchReportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "t", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestFetchReportCallerCancelIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "t", Timeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.FetchReport(ctx, day("2024-03-01"), day("2024-03-01"))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrTimeout))
}

func TestFetchReportRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:         srv.URL,
		Token:           "t",
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 2, calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "t", BreakerFailures: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
	}
	require.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
			_, _ = w.Write([]byte(`{"rows":[]}`))
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:         srv.URL,
		Token:           "t",
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err = client.FetchReport(ctx, day("2024-03-01"), day("2024-03-01"))
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, errors.Is(err, ErrTimeout))
	}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = client.FetchReport(ctx, day("2024-03-01"), day("2024-03-01"))
		require.ErrorIs(t, err, context.Canceled)
	}

	require.Equal(t, gobreaker.StateClosed, client.BreakerState())

	report, err := client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
	require.NoError(t, err)
	require.JSONEq(t, `{"rows":[]}`, string(report))
}

func TestBreakerCountsClientTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:         srv.URL,
		Token:           "t",
		Timeout:         10 * time.Millisecond,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = client.FetchReport(context.Background(), day("2024-03-01"), day("2024-03-01"))
		require.ErrorIs(t, err, ErrTimeout)
	}
	require.Equal(t, gobreaker.StateOpen, client.BreakerState())
}
