// Package woocommerce is a client for the subset of the WooCommerce products REST api
// that catalog synchronization needs.
package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"catalogsync/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_list_products   = "client.list-products"
	report_client_lookup_sku      = "client.lookup-sku"
	report_client_update_price    = "client.update-price"
	report_client_create_product  = "client.create-product"
	report_client_delete_product  = "client.delete-product"
	report_client_list_categories = "client.list-categories"
)

var ErrMissingCredentials = errors.New("missing woocommerce credentials")

// StatusError is returned when the api answers with a non 2xx status.
type StatusError struct {
	Method     string
	Url        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Url, e.StatusCode, body)
}

type Options struct {
	// BaseUrl is the products endpoint, ex. https://shop.example/wp-json/wc/v3/products
	BaseUrl        string
	ConsumerKey    string
	ConsumerSecret string
	// Timeout bounds a single call, defaults to 30 seconds.
	Timeout time.Duration
	// PerPage is the page size used when listing, defaults to 100 (the api maximum).
	PerPage int
	// ForceDelete skips the trash when deleting products.
	ForceDelete bool
	// Output receives full http message dumps when set.
	Output telemetry.InstrumentOutput
}

type Client struct {
	http *resty.Client
	opts Options
	tel  telemetry.API

	categoryLock sync.Mutex
	categories   []Category
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	if opts.BaseUrl == "" || opts.ConsumerKey == "" || opts.ConsumerSecret == "" {
		return nil, ErrMissingCredentials
	}
	_, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}

	tel = telemetry.NewScopedAPI("woocommerce", tel)

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("accept", "application/json")
	telemetry.InstrumentResty(client, "catalogsync/woocommerce/http", tel, opts.Output)

	return &Client{http: client, opts: opts, tel: tel}, nil
}

// read is a request authenticated through query parameters.
func (c *Client) read(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetQueryParam("consumer_key", c.opts.ConsumerKey).
		SetQueryParam("consumer_secret", c.opts.ConsumerSecret)
}

// write is a request authenticated through basic auth.
func (c *Client) write(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)
}

func checkResponse(res *resty.Response) error {
	if !res.IsError() {
		return nil
	}
	return &StatusError{
		Method:     res.Request.Method,
		Url:        res.Request.URL,
		StatusCode: res.StatusCode(),
		Body:       res.String(),
	}
}

func decode[T any](res *resty.Response, out *T) error {
	err := checkResponse(res)
	if err != nil {
		return err
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

func idPath(id int64) string {
	return "/" + strconv.FormatInt(id, 10)
}
