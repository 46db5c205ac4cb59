package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/storefront-sync/internal/domain/integration"
)

const testToken = "shpat_test"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, AccessToken: testToken, PageSize: 2}, zap.NewNop())
	require.NoError(t, err)
	return client, server
}

func collect(t *testing.T, c *Client) ([]integration.StorefrontOrder, []error) {
	t.Helper()
	var orders []integration.StorefrontOrder
	var errs []error
	for order, err := range c.Orders(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		orders = append(orders, order)
	}
	return orders, errs
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Config{BaseURL: "https://demo.myshopify.com", AccessToken: testToken, PageSize: 1000}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
		assert.Equal(t, MaxPageSize, cfg.PageSize)
		assert.Positive(t, cfg.Timeout)
		assert.Positive(t, cfg.MaxBodyBytes)
	})

	t.Run("missing base url", func(t *testing.T) {
		cfg := Config{AccessToken: testToken}
		err := cfg.Validate()
		assert.ErrorIs(t, err, integration.ErrPlatformNotConfigured)
		assert.ErrorIs(t, err, ErrConfigMissingBaseURL)
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := Config{BaseURL: "https://demo.myshopify.com"}
		assert.ErrorIs(t, cfg.Validate(), ErrConfigMissingAccessToken)
	})
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func TestClient_Orders_Paginates(t *testing.T) {
	var requests atomic.Int32
	var serverURL string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, testToken, r.Header.Get(AccessTokenHeader))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_info") == "" {
			assert.Equal(t, "any", r.URL.Query().Get("status"))
			w.Header().Set("Link", `<`+serverURL+`/admin/api/2024-01/orders.json?limit=2&page_info=p2>; rel="next"`)
			_, _ = w.Write([]byte(`{"orders":[
				{"id":1001,"name":"#1001","financial_status":"paid","customer":{"id":501,"first_name":"Jane"},
				 "line_items":[{"id":1,"product_id":10,"variant_id":100,"sku":"TS","name":"T-Shirt","quantity":2,"price":"10.00"}],
				 "tax_lines":[{"title":"VAT","rate":0.2,"price":"4.00"}],
				 "shipping_lines":[{"title":"Standard","price":"4.00"}],
				 "discount_codes":[{"code":"SAVE","amount":"2.50","type":"fixed_amount"}],
				 "fulfillments":[{"id":9001,"order_id":1001,"line_items":[{"id":1,"product_id":10,"variant_id":100,"quantity":2}]}]},
				{"id":1002,"financial_status":"pending","line_items":[]}
			]}`))
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("page_info"))
		w.Header().Set("Link", `<`+serverURL+`/admin/api/2024-01/orders.json?limit=2&page_info=p1>; rel="previous"`)
		_, _ = w.Write([]byte(`{"orders":[{"id":1003,"financial_status":"paid","line_items":[]}]}`))
	})
	serverURL = server.URL

	orders, errs := collect(t, client)

	require.Empty(t, errs)
	require.Len(t, orders, 3)
	assert.Equal(t, int32(2), requests.Load())

	first := orders[0]
	assert.Equal(t, "1001", first.ExternalID())
	assert.Equal(t, integration.FinancialStatusPaid, first.FinancialStatus)
	assert.Equal(t, int64(501), first.Customer.ID)
	assert.True(t, first.LineItems[0].Price.Equal(decimal.RequireFromString("10")))
	assert.True(t, first.TaxLines[0].Rate.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, first.DiscountCodes[0].Amount.Equal(decimal.RequireFromString("2.5")))
	require.Len(t, first.Fulfillments, 1)
	assert.Equal(t, "9001", first.Fulfillments[0].ExternalID())
	assert.Equal(t, "1003", orders[2].ExternalID())
}

func TestClient_Orders_StopsWhenConsumerStops(t *testing.T) {
	var requests atomic.Int32
	var serverURL string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Link", `<`+serverURL+`/admin/api/2024-01/orders.json?page_info=next>; rel="next"`)
		_, _ = w.Write([]byte(`{"orders":[{"id":1},{"id":2}]}`))
	})
	serverURL = server.URL

	for order, err := range client.Orders(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, int64(1), order.ID)
		break
	}
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_Orders_MalformedOrderIsSkipped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"id":"not-a-number"},{"id":2}]}`))
	})

	orders, errs := collect(t, client)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], integration.ErrPlatformInvalidResponse)
	assert.False(t, integration.IsUpstreamFatal(errs[0]))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
}

func TestClient_Orders_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFatal bool
		wantMsg   string
	}{
		{"payment required", http.StatusPaymentRequired, `{"errors":"Unavailable Shop"}`, true, "Unavailable Shop"},
		{"rate limited", http.StatusTooManyRequests, `{"errors":"Exceeded 2 calls per second"}`, true, "Exceeded"},
		{"unauthorized", http.StatusUnauthorized, `{"errors":"Invalid API key or access token"}`, false, "HTTP 401"},
		{"server error", http.StatusInternalServerError, `oops`, false, "HTTP 500"},
		{"field errors", http.StatusUnprocessableEntity, `{"errors":{"limit":["must be at most 250"]}}`, false, "limit must be at most 250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			orders, errs := collect(t, client)

			assert.Empty(t, orders)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantFatal, integration.IsUpstreamFatal(errs[0]))
			assert.Contains(t, errs[0].Error(), tt.wantMsg)
			if !tt.wantFatal {
				assert.ErrorIs(t, errs[0], integration.ErrPlatformRequestFailed)
			}
		})
	}
}

func TestClient_Orders_RejectsForeignNextLink(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://evil.example.com/orders.json?page_info=x>; rel="next"`)
		_, _ = w.Write([]byte(`{"orders":[{"id":1}]}`))
	})

	orders, errs := collect(t, client)

	assert.Len(t, orders, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], integration.ErrPlatformInvalidResponse)
}

func TestClient_Orders_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range client.Orders(ctx) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestClient_GetProduct(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/api/2024-01/products/20.json":
			_, _ = w.Write([]byte(`{"product":{"id":20,"title":"Mug","vendor":"Acme",
				"variants":[{"id":200,"product_id":20,"title":"White","sku":"MUG-W","price":"5.00"}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":"Not Found"}`))
		}
	})

	t.Run("found", func(t *testing.T) {
		product, err := client.GetProduct(context.Background(), 20)
		require.NoError(t, err)
		assert.Equal(t, "Mug", product.Title)
		require.Len(t, product.Variants, 1)
		assert.Equal(t, "MUG-W", product.Variants[0].SKU)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.GetProduct(context.Background(), 99)
		assert.ErrorIs(t, err, integration.ErrProductNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := client.GetProduct(context.Background(), 0)
		assert.ErrorIs(t, err, integration.ErrPlatformRequestFailed)
	})
}

func TestClient_GetProduct_RateLimitedIsFatal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetProduct(context.Background(), 20)

	var fatal *integration.UpstreamFatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, http.StatusTooManyRequests, fatal.StatusCode)
	assert.Equal(t, "/admin/api/2024-01/products/20.json", fatal.Endpoint)
}

func TestClient_BodyIsCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"id":1},{"id":2},{"id":3}]}`))
	}))
	defer server.Close()
	client, err := NewClient(Config{BaseURL: server.URL, AccessToken: testToken, MaxBodyBytes: 16}, zap.NewNop())
	require.NoError(t, err)

	_, errs := collect(t, client)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], integration.ErrPlatformInvalidResponse)
}

func TestParseNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{``, ``},
		{`<https://s/orders.json?page_info=a>; rel="next"`, `https://s/orders.json?page_info=a`},
		{`<https://s/p>; rel="previous", <https://s/n>; rel="next"`, `https://s/n`},
		{`<https://s/p>; rel="previous"`, ``},
		{`garbage; rel="next"`, ``},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, parseNextLink(tt.header))
		})
	}
}
