package refdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// page wraps items in the platform's paginated list body.
func page(items string, totalPages int) string {
	return fmt.Sprintf(`{"items":%s,"total":0,"page":1,"page_size":100,"total_pages":%d}`, items, totalPages)
}

func newFakePlatform(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/api/products", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(page(`[{"id":1,"name":"Sofa","type":"physical"},{"id":2,"name":"Ebook","type":"digital"}]`, 1)))
	})
	mux.HandleFunc("/catalog/api/categories/list", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(page(`[{"id":7,"name":"Furniture","parent_id":null}]`, 1)))
	})
	mux.HandleFunc("/api/customers/groups", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id":4,"name":"VIP"}]`))
	})
	mux.HandleFunc("/api/marketing/coupons", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"code":"SAVE10","is_active":true}]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetchSnapshot(t *testing.T) {
	server, _ := newFakePlatform(t)
	client := NewClient(server.URL, "test-token")

	snap, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.HasProduct(1))
	assert.False(t, snap.HasProduct(99))
	assert.True(t, snap.HasCategory(7))
	assert.True(t, snap.HasCustomerGroup(4))
	assert.True(t, snap.HasCoupon("SAVE10"))
	assert.False(t, snap.HasCoupon("EXPIRED"))
}

func TestProductsFollowPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/api/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(page(`[{"id":1,"name":"Sofa","type":"physical"}]`, 2)))
		case "2":
			_, _ = w.Write([]byte(page(`[{"id":2,"name":"Ebook","type":"digital"}]`, 2)))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	products, err := NewClient(server.URL, "").Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, int64(2), products[1].ID)
}

func TestFetchSnapshotPropagatesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "")
	_, err := client.FetchSnapshot(context.Background())
	assert.Error(t, err)
}

func TestCachedCheckerReusesSnapshot(t *testing.T) {
	server, calls := newFakePlatform(t)
	checker := NewCachedChecker(NewClient(server.URL, "test-token"), time.Minute)

	ok, err := checker.HasProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	after := calls.Load()

	ok, err = checker.HasCategory(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, after, calls.Load(), "second check should hit the cache")
}

func TestCachedCheckerServesStaleOnRefreshFailure(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/catalog/api/categories/list", func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(page(`[]`, 1)))
	})
	mux.HandleFunc("/catalog/api/products", func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(page(`[{"id":1,"name":"Sofa","type":"physical"}]`, 1)))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	checker := NewCachedChecker(NewClient(server.URL, ""), time.Nanosecond)

	ok, err := checker.HasProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	healthy.Store(false)
	time.Sleep(time.Millisecond)

	ok, err = checker.HasProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok, "stale snapshot should keep serving")
}
