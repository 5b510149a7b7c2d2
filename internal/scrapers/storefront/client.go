// Package storefront scrapes product listings and product details off the
// retailer's storefront.
package storefront

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/retry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("catalogsync/scrapers/storefront")

const (
	report_client_fetch_page     = "client.fetch-page"
	report_client_fetch_category = "client.fetch-category"
	report_client_product_detail = "client.product-detail"
	report_client_parse_product  = "client.parse-product"
)

type Options struct {
	BaseUrl string
	// Workers is the number of category pages fetched in parallel, defaults to 4.
	Workers int
	Retry   retry.Policy
	// RequestsPerSecond limits outgoing requests, 0 means unlimited.
	RequestsPerSecond float64
	// Timeout bounds a single request, defaults to 30 seconds.
	Timeout time.Duration
	// SearchPath is the storefront search page queried with ?q=<sku>, defaults to /search.
	SearchPath       string
	BypassCloudflare bool
	UserAgent        string
	// Output receives full http message dumps when set.
	Output telemetry.InstrumentOutput
}

type Client struct {
	http *resty.Client
	opts Options
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SearchPath == "" {
		opts.SearchPath = "/search"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
	if opts.BaseUrl != "" {
		_, err := url.Parse(opts.BaseUrl)
		if err != nil {
			return nil, err
		}
	}

	tel = telemetry.NewScopedAPI("storefront", tel)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", opts.UserAgent)
	if opts.BypassCloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	if opts.RequestsPerSecond > 0 {
		// burst of 1 keeps requests evenly spaced
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(client, "catalogsync/storefront/http", tel, opts.Output)

	return &Client{http: client, opts: opts, tel: tel}, nil
}

// fetchPage gets a page and parses it, retrying according to the client's policy.
func (c *Client) fetchPage(ctx context.Context, link string, query url.Values) (*goquery.Document, error) {
	var doc *goquery.Document
	err := c.opts.Retry.Do(ctx, func(ctx context.Context) error {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			Get(link)
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("unexpected status: %s", res.Status())
		}

		doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return retry.Permanent(fmt.Errorf("parse html: %w", err))
		}
		if res.RawResponse != nil && res.RawResponse.Request != nil {
			doc.Url = res.RawResponse.Request.URL
		}
		return nil
	}, func(attempt int, err error) {
		c.tel.ReportWarning(
			report_client_fetch_page,
			fmt.Errorf("retrying (%d/%d): %w", attempt, c.opts.Retry.MaxAttempts, err),
			link,
		)
	})
	if err != nil {
		c.tel.ReportBroken(
			report_client_fetch_page,
			fmt.Errorf("giving up: %w", err),
			link,
		)
		return nil, err
	}
	return doc, nil
}
