package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fundedlabs/backend-checkout/internal/resilience"
)

func testProgram() Program {
	return Program{
		ID:   "prog-nitro",
		Name: "Nitro",
		Tiers: []PricingTier{
			{ID: "tier-10k", AccountSize: "$10,000", Price: 10000},
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler, withCache bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var cache *Cache
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cache = NewCache(client, time.Minute)
	}

	return &Client{
		BaseURL: srv.URL,
		Token:   "cms-token",
		HTTP:    resilience.HTTPClient{Client: srv.Client()},
		Cache:   cache,
	}
}

func TestGetProgram(t *testing.T) {
	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/programs/prog-nitro", r.URL.Path)
		require.Equal(t, "Bearer cms-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testProgram()})
	})
	c := newTestClient(t, handler, true)

	program, err := c.GetProgram(context.Background(), "prog-nitro")
	require.NoError(t, err)
	require.Equal(t, "prog-nitro", program.ID)
	require.Len(t, program.Tiers, 1)

	// second read is served from cache
	program, err = c.GetProgram(context.Background(), "prog-nitro")
	require.NoError(t, err)
	require.Equal(t, "prog-nitro", program.ID)
	require.Equal(t, int64(1), calls.Load())
}

func TestGetProgramNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := newTestClient(t, handler, false)

	_, err := c.GetProgram(context.Background(), "missing")
	require.ErrorIs(t, err, ErrProgramNotFound)
}

func TestGetProgramEmptyID(t *testing.T) {
	c := &Client{}
	_, err := c.GetProgram(context.Background(), "  ")
	require.ErrorIs(t, err, ErrProgramNotFound)
}

func TestGetCouponByCode(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/coupons", r.URL.Path)
		require.Equal(t, "SAVE20", r.URL.Query().Get("code"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []Coupon{{Code: "SAVE20", Status: CouponActive}}})
	})
	c := newTestClient(t, handler, false)

	// lookup is case-insensitive at the wire: codes go out uppercased
	coupon, found, err := c.GetCouponByCode(context.Background(), "save20")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "SAVE20", coupon.Code)
}

func TestGetCouponByCodeUnknown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []Coupon{}})
	})
	c := newTestClient(t, handler, false)

	_, found, err := c.GetCouponByCode(context.Background(), "NOPE")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetCouponByCodeEmpty(t *testing.T) {
	c := &Client{}
	_, found, err := c.GetCouponByCode(context.Background(), "")
	require.NoError(t, err)
	require.False(t, found)
}

func TestListActiveCoupons(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, string(CouponActive), r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []Coupon{{Code: "A"}, {Code: "B"}}})
	})
	c := newTestClient(t, handler, false)

	coupons, err := c.ListActiveCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, coupons, 2)
}

func TestListActiveCouponsUpstreamError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, handler, false)

	_, err := c.ListActiveCoupons(context.Background())
	require.Error(t, err)
}
