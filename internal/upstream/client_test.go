package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/upstream"
)

func testClient(t *testing.T, baseURL string) *upstream.Client {
	t.Helper()
	return upstream.New(uuid.New(), models.TenantCredentials{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		VerifyTLS: true,
	}, upstream.Options{
		CallTimeout: 2 * time.Second,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
	})
}

func TestClientDecodesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Gateway-Tenant"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Q3 Awareness", "status": "In progress"}]`))
	}))
	defer srv.Close()

	campaigns, err := testClient(t, srv.URL).ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, int64(1), campaigns[0].ID)
	require.Equal(t, "Q3 Awareness", campaigns[0].Name)
}

func TestClientDoesNotRetryRejections(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "campaign not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).GetCampaign(context.Background(), 99)
	require.Error(t, err)

	rej, ok := upstream.IsRejected(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, rej.Status)
	require.False(t, upstream.IsUnavailable(err))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must be definitive: no retries")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).ListCampaigns(context.Background())
	require.Error(t, err)
	require.True(t, upstream.IsUnavailable(err))
	// initial attempt + 3 retries
	require.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClientBackoffDelaysIncrease(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := upstream.New(uuid.New(), models.TenantCredentials{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		VerifyTLS: true,
	}, upstream.Options{
		CallTimeout: 5 * time.Second,
		MaxRetries:  3,
		BackoffBase: 50 * time.Millisecond,
	})

	_, err := client.ListCampaigns(context.Background())
	require.Error(t, err)
	require.True(t, upstream.IsUnavailable(err))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 4)
	gaps := []time.Duration{
		stamps[1].Sub(stamps[0]),
		stamps[2].Sub(stamps[1]),
		stamps[3].Sub(stamps[2]),
	}
	// doubling schedule: 2x, 4x, 8x base, not flattened to a constant wait
	require.Greater(t, gaps[1], gaps[0])
	require.Greater(t, gaps[2], gaps[1])
	require.GreaterOrEqual(t, gaps[0], 100*time.Millisecond)
	require.GreaterOrEqual(t, gaps[2], 2*gaps[0])
}

func TestClientRecoversWithinRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	campaigns, err := testClient(t, srv.URL).ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Empty(t, campaigns)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientMapsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient(t, srv.URL).ListCampaigns(context.Background())
	require.Error(t, err)
	require.True(t, upstream.IsUnavailable(err))
	_, rejected := upstream.IsRejected(err)
	require.False(t, rejected)
}

func TestClientReportsTLSVerification(t *testing.T) {
	verifying := upstream.New(uuid.New(), models.TenantCredentials{BaseURL: "https://example.com", VerifyTLS: true}, upstream.Options{})
	require.True(t, verifying.VerifiesTLS())

	skipping := upstream.New(uuid.New(), models.TenantCredentials{BaseURL: "https://example.com", VerifyTLS: false}, upstream.Options{})
	require.False(t, skipping.VerifiesTLS())
}
