// Package storefront implements the order and product sources on top of the
// storefront admin REST API.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/telemetry"
)

// AccessTokenHeader carries the admin API access token
const AccessTokenHeader = "X-Shopify-Access-Token"

var errNotFound = errors.New("resource not found")

// Client reads orders and products from the storefront admin API.
// It implements integration.OrderSource and integration.ProductSource.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ integration.OrderSource   = (*Client)(nil)
	_ integration.ProductSource = (*Client)(nil)
)

// NewClient creates a new Client with the given configuration
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Orders pages through every order of the shop, newest first, following the
// rel="next" cursor of the Link header. Pages are fetched lazily: a consumer
// that stops early stops the paging. A page that cannot be fetched ends the
// sequence with its error; an order that cannot be decoded is yielded as an
// error and paging continues.
func (c *Client) Orders(ctx context.Context) iter.Seq2[integration.StorefrontOrder, error] {
	return func(yield func(integration.StorefrontOrder, error) bool) {
		query := url.Values{}
		query.Set("status", "any")
		query.Set("limit", strconv.Itoa(c.config.PageSize))
		next := c.endpoint("orders.json") + "?" + query.Encode()

		for page := 1; next != ""; page++ {
			body, header, err := c.get(ctx, next)
			if err != nil {
				yield(integration.StorefrontOrder{}, err)
				return
			}

			var resp ordersPage
			if err := json.Unmarshal(body, &resp); err != nil {
				yield(integration.StorefrontOrder{}, fmt.Errorf("%w: orders page %d: %v", integration.ErrPlatformInvalidResponse, page, err))
				return
			}
			c.logger.Debug("Fetched storefront orders page",
				zap.Int("page", page),
				zap.Int("orders", len(resp.Orders)),
			)

			for _, raw := range resp.Orders {
				var order integration.StorefrontOrder
				if err := json.Unmarshal(raw, &order); err != nil {
					err = fmt.Errorf("%w: order on page %d: %v", integration.ErrPlatformInvalidResponse, page, err)
					if !yield(integration.StorefrontOrder{}, err) {
						return
					}
					continue
				}
				if !yield(order, nil) {
					return
				}
			}

			next, err = c.nextPage(header.Get("Link"))
			if err != nil {
				yield(integration.StorefrontOrder{}, err)
				return
			}
		}
	}
}

// GetProduct fetches one product with its variants
func (c *Client) GetProduct(ctx context.Context, productID int64) (*integration.StorefrontProduct, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: invalid product id %d", integration.ErrPlatformRequestFailed, productID)
	}

	body, _, err := c.get(ctx, c.endpoint("products/"+strconv.FormatInt(productID, 10)+".json"))
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("%w: %d", integration.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	var resp productEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse product: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if resp.Product == nil {
		return nil, fmt.Errorf("%w: %d", integration.ErrProductNotFound, productID)
	}
	return resp.Product, nil
}

func (c *Client) endpoint(resource string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/admin/api/" + c.config.APIVersion + "/" + resource
}

// get performs an authenticated GET. 402 and 429 become UpstreamFatalError,
// any other failure status ErrPlatformRequestFailed.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	ctx, span := telemetry.StartSpan(ctx, "storefront.get", "http.url", rawURL)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("storefront: failed to create request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, c.config.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		telemetry.RecordError(span, err)
		return nil, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("storefront: failed to read response: %w", err)
	}
	telemetry.SetAttributes(span, "http.status_code", resp.StatusCode)

	if resp.StatusCode < 400 {
		return body, resp.Header, nil
	}

	endpoint := req.URL.Path
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	detail := eb.message()

	var reqErr error
	switch resp.StatusCode {
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		reqErr = &integration.UpstreamFatalError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Err:        errors.New(orDefault(detail, http.StatusText(resp.StatusCode))),
		}
	case http.StatusNotFound:
		reqErr = fmt.Errorf("%w: %w on %s", integration.ErrPlatformRequestFailed, errNotFound, endpoint)
	default:
		reqErr = fmt.Errorf("%w: HTTP %d on %s", integration.ErrPlatformRequestFailed, resp.StatusCode, endpoint)
		if detail != "" {
			reqErr = fmt.Errorf("%w: %s", reqErr, detail)
		}
	}
	telemetry.RecordError(span, reqErr)
	return nil, nil, reqErr
}

// nextPage extracts the rel="next" target of a Link header. The target must
// stay on the configured shop, since the access token is sent along.
func (c *Client) nextPage(link string) (string, error) {
	target := parseNextLink(link)
	if target == "" {
		return "", nil
	}
	base, _ := url.Parse(c.config.BaseURL)
	next, err := url.Parse(target)
	if err != nil || next.Host != base.Host {
		return "", fmt.Errorf("%w: unexpected next page link %q", integration.ErrPlatformInvalidResponse, target)
	}
	return target, nil
}

// parseNextLink returns the URL tagged rel="next" in an RFC 8288 Link header
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if param == `rel="next"` || param == "rel=next" {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
