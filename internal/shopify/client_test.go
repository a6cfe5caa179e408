package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/suivie/storefront/pkg/errors"
	"github.com/suivie/storefront/pkg/httpclient"
	"github.com/suivie/storefront/pkg/logger"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type recordedCall struct {
	Operation string
	Variables map[string]any
}

// fakeShop answers GraphQL operations with canned bodies keyed by operation
// name, recording what it was sent.
type fakeShop struct {
	t         *testing.T
	mu        sync.Mutex
	responses map[string]string
	status    int
	calls     []recordedCall
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "/api/2024-07/graphql.json", r.URL.Path)
	assert.Equal(f.t, "test-token", r.Header.Get("X-Shopify-Storefront-Access-Token"))
	assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	body, _ := io.ReadAll(r.Body)
	if !assert.NoError(f.t, json.Unmarshal(body, &req)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	op := operationName(req.Query)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Operation: op, Variables: req.Variables})
	resp, ok := f.responses[op]
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
		return
	}
	if !ok {
		f.t.Errorf("unexpected operation %q", op)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func (f *fakeShop) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.Operation
	}
	return ops
}

func operationName(query string) string {
	for _, kw := range []string{"query ", "mutation "} {
		if i := strings.Index(query, kw); i >= 0 {
			rest := query[i+len(kw):]
			end := strings.IndexAny(rest, " ({")
			if end < 0 {
				return rest
			}
			return rest[:end]
		}
	}
	return ""
}

func newTestClient(t *testing.T, responses map[string]string) (*Client, *fakeShop) {
	t.Helper()
	shop := &fakeShop{t: t, responses: responses}
	srv := httptest.NewServer(shop)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	c := NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, httpclient.New(cfg), logger.Discard())
	return c, shop
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestSanitizeDomain(t *testing.T) {
	tests := map[string]string{
		"":                                    "",
		"suivie.myshopify.com":                "suivie.myshopify.com",
		"https://suivie.myshopify.com":        "suivie.myshopify.com",
		"http://suivie.myshopify.com/":        "suivie.myshopify.com",
		"https://suivie.myshopify.com/admin/x": "suivie.myshopify.com",
		"  suivie.myshopify.com  ":            "suivie.myshopify.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeDomain(in), in)
	}
}

func TestNewClient_Endpoint(t *testing.T) {
	c := NewClient(Config{Domain: "https://suivie.myshopify.com/", Token: "t"}, httpclient.New(httpclient.DefaultConfig()), logger.Discard())
	assert.Equal(t, "https://suivie.myshopify.com/api/2024-07/graphql.json", c.Endpoint())
	assert.True(t, c.Configured())

	c = NewClient(Config{Domain: "shop.example", Token: "t", APIVersion: "2025-01"}, nil, logger.Discard())
	assert.Equal(t, "https://shop.example/api/2025-01/graphql.json", c.Endpoint())
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, httpclient.New(httpclient.DefaultConfig()), logger.Discard())
	assert.False(t, c.Configured())

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestClient_HTTPErrorMapped(t *testing.T) {
	c, shop := newTestClient(t, map[string]string{
		"ListProducts": `{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`,
	})
	shop.status = http.StatusUnauthorized

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestClient_ThrottledMapsToUnavailable(t *testing.T) {
	c, shop := newTestClient(t, map[string]string{
		"ListProducts": `{"errors":[{"message":"Throttled"}]}`,
	})
	shop.status = http.StatusTooManyRequests

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestClient_GraphQLErrorsWithoutData(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"ListProducts": `{"data":null,"errors":[{"message":"Field 'nope' doesn't exist"}]}`,
	})

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestClient_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"ListProducts": `<html>oops</html>`})

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
