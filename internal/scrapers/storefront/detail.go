package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"catalogsync/internal/catalog"
	"catalogsync/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var ErrProductNotFound = errors.New("product not found on storefront")

// findProductLink searches the storefront for a product container whose sku heading
// matches exactly and returns the link to its detail page.
func findProductLink(doc *goquery.Document, sku string) (string, bool) {
	var link string
	doc.Find("div.prdv div.prd").EachWithBreak(func(_ int, container *goquery.Selection) bool {
		if htmlutil.Text(container.Find("h4").First()) != sku {
			return true
		}
		href, ok := container.Find("a[href]").First().Attr("href")
		if !ok {
			return true
		}
		resolved, err := htmlutil.ResolveHref(doc.Url, href)
		if err != nil {
			return true
		}
		link = resolved
		return false
	})
	return link, link != ""
}

// ParseProductDetail reads the descriptive fields off a product page.
func ParseProductDetail(doc *goquery.Document, sku string) (catalog.ProductDetail, error) {
	detail := catalog.ProductDetail{
		SKU:        sku,
		Name:       htmlutil.Text(doc.Find("h1").First()),
		Attributes: map[string]string{},
	}
	if detail.Name == "" {
		return catalog.ProductDetail{}, fmt.Errorf("product page for %s has no title", sku)
	}

	description, err := doc.Find("div.description").First().Html()
	if err == nil {
		detail.Description = strings.TrimSpace(description)
	}
	detail.ShortDescription = htmlutil.Text(doc.Find("div.short-description").First())

	crumbs := doc.Find("ul.breadcrumb li a")
	if crumbs.Length() > 0 {
		detail.Category = htmlutil.Text(crumbs.Last())
	}

	doc.Find("div.gallery img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		if src == "" {
			return
		}
		resolved, err := htmlutil.ResolveHref(doc.Url, src)
		if err != nil {
			return
		}
		detail.Images = append(detail.Images, resolved)
	})

	doc.Find("ul.tags li").Each(func(_ int, tag *goquery.Selection) {
		if text := htmlutil.Text(tag); text != "" {
			detail.Tags = append(detail.Tags, text)
		}
	})

	doc.Find("table.attributes tr").Each(func(_ int, row *goquery.Selection) {
		key := htmlutil.Text(row.Find("th").First())
		value := htmlutil.Text(row.Find("td").First())
		if key != "" {
			detail.Attributes[key] = value
		}
	})

	return detail, nil
}

// ProductDetail looks a product up through the storefront search and scrapes its
// detail page. Any failure along the way is returned, callers must not create a
// product off a partial detail.
func (c *Client) ProductDetail(ctx context.Context, sku string) (catalog.ProductDetail, error) {
	ctx, span := tracer.Start(ctx, "ProductDetail")
	defer span.End()

	search, err := c.fetchPage(ctx, c.opts.SearchPath, url.Values{"q": []string{sku}})
	if err != nil {
		c.tel.ReportBroken(report_client_product_detail, fmt.Errorf("search: %w", err), sku)
		return catalog.ProductDetail{}, err
	}

	link, ok := findProductLink(search, sku)
	if !ok {
		c.tel.ReportWarning(report_client_product_detail, ErrProductNotFound, sku)
		return catalog.ProductDetail{}, fmt.Errorf("%s: %w", sku, ErrProductNotFound)
	}

	page, err := c.fetchPage(ctx, link, nil)
	if err != nil {
		c.tel.ReportBroken(report_client_product_detail, fmt.Errorf("fetch detail: %w", err), sku, link)
		return catalog.ProductDetail{}, err
	}

	detail, err := ParseProductDetail(page, sku)
	if err != nil {
		c.tel.ReportBroken(report_client_product_detail, err, sku, link)
		return catalog.ProductDetail{}, err
	}
	return detail, nil
}
