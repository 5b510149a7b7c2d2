package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"catalogsync/internal/catalog"
	"catalogsync/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MissingSKU is the sku recorded for a product container without an sku heading.
const MissingSKU = "N/A"

// CleanPrice parses a price as displayed on the storefront, ex. "1.234,50 €".
// Commas are decimal separators and a dot followed by three digits is a thousands separator.
// Anything unparsable yields the absent price.
func CleanPrice(raw string) catalog.Price {
	var digits []rune
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			if r == ',' {
				r = '.'
			}
			digits = append(digits, r)
		}
	}

	var cleaned strings.Builder
	for i, r := range digits {
		if r == '.' && i > 0 && unicode.IsDigit(digits[i-1]) && followedByDigits(digits[i+1:], 3) {
			continue
		}
		cleaned.WriteRune(r)
	}
	if cleaned.Len() == 0 {
		return catalog.Price{}
	}

	d, err := decimal.NewFromString(cleaned.String())
	if err != nil {
		return catalog.Price{}
	}
	return catalog.NewPrice(d)
}

func followedByDigits(rest []rune, n int) bool {
	if len(rest) < n {
		return false
	}
	for _, r := range rest[:n] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ParseTotalPages reads the page count off the pagination links of a category page,
// a page without pagination has 1 page.
func ParseTotalPages(doc *goquery.Document) int {
	links := doc.Find("div#pagination a.num")
	if links.Length() == 0 {
		return 1
	}
	total, err := strconv.Atoi(htmlutil.Text(links.Last()))
	if err != nil || total < 1 {
		return 1
	}
	return total
}

// ParseProducts reads every product container on a category page.
func ParseProducts(doc *goquery.Document) []catalog.ProductRecord {
	var products []catalog.ProductRecord
	doc.Find("div.prdv div.prd").Each(func(_ int, container *goquery.Selection) {
		sku := MissingSKU
		heading := container.Find("h4").First()
		if heading.Length() > 0 {
			if text := htmlutil.Text(heading); text != "" {
				sku = text
			}
		}

		var price catalog.Price
		priceElement := container.Find("p.prc").First()
		if priceElement.Length() > 0 {
			span := priceElement.Find("span").First()
			if text := htmlutil.Text(span); text != "" {
				price = CleanPrice(text)
			} else {
				price = CleanPrice(priceElement.AttrOr("data-price", ""))
			}
		}

		products = append(products, catalog.ProductRecord{SKU: sku, Price: price})
	})
	return products
}

func pageQuery(page int) url.Values {
	return url.Values{"p": []string{strconv.Itoa(page)}}
}

// FetchCategory scrapes every page of a category. A page that fails after all
// retries is skipped, the error is returned alongside whatever was collected.
// If the first page cannot be fetched, the category is abandoned.
func (c *Client) FetchCategory(ctx context.Context, categoryUrl string) ([]catalog.ProductRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category", categoryUrl))

	first, err := c.fetchPage(ctx, categoryUrl, nil)
	if err != nil {
		span.SetStatus(codes.Error, "fetch first page")
		return nil, fmt.Errorf("category %s: %w", categoryUrl, err)
	}
	total := ParseTotalPages(first)
	span.SetAttributes(attribute.Int("pages", total))

	var products []catalog.ProductRecord
	var errList []error
	for page := 1; page <= total; page++ {
		c.tel.ReportDebug("fetching page", page, total, categoryUrl)

		doc, err := c.fetchPage(ctx, categoryUrl, pageQuery(page))
		if err != nil {
			errList = append(errList, fmt.Errorf("category %s page %d: %w", categoryUrl, page, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		products = append(products, ParseProducts(doc)...)
	}

	err = errors.Join(errList...)
	if err != nil {
		span.RecordError(err)
	}
	return products, err
}

// FetchAll scrapes every category with a fixed size pool of workers. Each category
// keeps its own result slice, they are merged in category order once all workers are done.
// Products without an sku are dropped and the result is deduplicated by sku.
func (c *Client) FetchAll(ctx context.Context, categoryUrls []string) ([]catalog.ProductRecord, error) {
	results := make([][]catalog.ProductRecord, len(categoryUrls))
	errs := make([]error, len(categoryUrls))

	jobs := make(chan int)
	wg := sync.WaitGroup{}
	for w := 0; w < c.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx], errs[idx] = c.FetchCategory(ctx, categoryUrls[idx])
				if errs[idx] != nil {
					c.tel.ReportWarning(report_client_fetch_category, errs[idx])
				}
			}
		}()
	}

	for idx := range categoryUrls {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	var products []catalog.ProductRecord
	dropped := 0
	for _, categoryProducts := range results {
		for _, p := range categoryProducts {
			if p.SKU == MissingSKU || p.SKU == "" {
				dropped++
				continue
			}
			products = append(products, p)
		}
	}
	if dropped > 0 {
		c.tel.ReportWarning(report_client_parse_product, fmt.Errorf("dropped %d products without an sku", dropped))
	}

	products = catalog.DedupeProducts(products)
	c.tel.ReportCount("products", int64(len(products)))

	errList := errs
	if ctx.Err() != nil {
		errList = append(errList, ctx.Err())
	}
	return products, errors.Join(errList...)
}
