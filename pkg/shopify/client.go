package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultAPIVersion = "2024-10"
	defaultTimeout    = 15 * time.Second

	// Shopify's standard REST bucket refills at 2 requests per second.
	defaultRateLimit = 2.0
)

// Client defines the Admin API operations the optimization engine uses.
type Client interface {
	GetProduct(ctx context.Context, creds Credentials, productID string) (*Product, error)
	ListProducts(ctx context.Context, creds Credentials, opts ListOptions) ([]Product, error)
	UpdateProduct(ctx context.Context, creds Credentials, productID string, patch Patch) error
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAPIVersion overrides the default Admin API version.
func WithAPIVersion(version string) Option {
	return func(c *httpClient) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithRateLimit sets a per-second rate limit for Admin API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiVersion string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an Admin REST client. Credentials are supplied per
// call so one client serves every connected shop.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		apiVersion: defaultAPIVersion,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) baseURL(creds Credentials) string {
	host := creds.Domain
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	version := creds.APIVersion
	if version == "" {
		version = c.apiVersion
	}
	return fmt.Sprintf("%s/admin/api/%s", strings.TrimRight(host, "/"), version)
}

func (c *httpClient) GetProduct(ctx context.Context, creds Credentials, productID string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/products/%s.json", c.baseURL(creds), url.PathEscape(productID))

	var wrapper struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, creds, http.MethodGet, endpoint, nil, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "shopify: get product %s", productID)
	}
	return &wrapper.Product, nil
}

func (c *httpClient) ListProducts(ctx context.Context, creds Credentials, opts ListOptions) ([]Product, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 250 {
		limit = 250
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	endpoint := fmt.Sprintf("%s/products.json?%s", c.baseURL(creds), q.Encode())

	var products []Product
	for endpoint != "" {
		var wrapper struct {
			Products []Product `json:"products"`
		}
		next, err := c.doPaged(ctx, creds, endpoint, &wrapper)
		if err != nil {
			return nil, eris.Wrap(err, "shopify: list products")
		}
		products = append(products, wrapper.Products...)
		endpoint = next
	}
	return products, nil
}

func (c *httpClient) UpdateProduct(ctx context.Context, creds Credentials, productID string, patch Patch) error {
	id, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return eris.Wrapf(err, "shopify: parse product id %q", productID)
	}

	var endpoint string
	var body any

	switch p := patch.(type) {
	case TitlePatch:
		endpoint = fmt.Sprintf("%s/products/%d.json", c.baseURL(creds), id)
		body = map[string]any{"product": map[string]any{"id": id, "title": p.Title}}
	case DescriptionPatch:
		endpoint = fmt.Sprintf("%s/products/%d.json", c.baseURL(creds), id)
		body = map[string]any{"product": map[string]any{"id": id, "body_html": p.BodyHTML}}
	case TagsPatch:
		endpoint = fmt.Sprintf("%s/products/%d.json", c.baseURL(creds), id)
		body = map[string]any{"product": map[string]any{"id": id, "tags": p.Tags}}
	case PricePatch:
		endpoint = fmt.Sprintf("%s/variants/%d.json", c.baseURL(creds), p.VariantID)
		body = map[string]any{"variant": map[string]any{"id": p.VariantID, "price": p.Price}}
	default:
		return eris.Errorf("shopify: unsupported patch type %T", patch)
	}

	if err := c.do(ctx, creds, http.MethodPut, endpoint, body, nil); err != nil {
		return eris.Wrapf(err, "shopify: update product %s", productID)
	}
	return nil
}

// do executes one Admin API request and decodes the response into out
// (when non-nil). Non-2xx statuses are mapped to the package's sentinel
// errors.
func (c *httpClient) do(ctx context.Context, creds Credentials, method, endpoint string, body, out any) error {
	_, err := c.request(ctx, creds, method, endpoint, body, out)
	return err
}

// doPaged executes a GET and returns the rel="next" URL from the Link
// header, or "" when there are no further pages.
func (c *httpClient) doPaged(ctx context.Context, creds Credentials, endpoint string, out any) (string, error) {
	header, err := c.request(ctx, creds, http.MethodGet, endpoint, nil, out)
	if err != nil {
		return "", err
	}
	return nextPageURL(header.Get("Link")), nil
}

func (c *httpClient) request(ctx context.Context, creds Credentials, method, endpoint string, body, out any) (http.Header, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}

	if err := mapStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, eris.Wrap(err, "unmarshal response")
		}
	}
	return resp.Header, nil
}

func mapStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnprocessableEntity:
		return &ValidationError{Messages: parseErrorMessages(body)}
	case status == http.StatusTooManyRequests || status >= 500:
		return eris.Wrapf(ErrUnavailable, "status %d", status)
	default:
		return eris.Errorf("unexpected status %d: %s", status, string(body))
	}
}

// parseErrorMessages flattens the 422 error payload, which is either a
// plain string or a map of field name to message list.
func parseErrorMessages(body []byte) []string {
	var wrapper struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || len(wrapper.Errors) == 0 {
		return []string{string(body)}
	}

	var asString string
	if err := json.Unmarshal(wrapper.Errors, &asString); err == nil {
		return []string{asString}
	}

	var asMap map[string][]string
	if err := json.Unmarshal(wrapper.Errors, &asMap); err == nil {
		var msgs []string
		for field, fieldMsgs := range asMap {
			for _, m := range fieldMsgs {
				msgs = append(msgs, field+" "+m)
			}
		}
		return msgs
	}

	return []string{string(wrapper.Errors)}
}

// nextPageURL extracts the rel="next" URL from a Link header.
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if strings.TrimSpace(section[1]) != `rel="next"` {
			continue
		}
		u := strings.TrimSpace(section[0])
		u = strings.TrimPrefix(u, "<")
		u = strings.TrimSuffix(u, ">")
		return u
	}
	return ""
}
