package woocommerce

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catalogsync/internal/catalog"
)

// Product is the part of a remote product this client reads.
type Product struct {
	ID           int64  `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
}

type CategoryRef struct {
	ID int64 `json:"id"`
}

type ImageRef struct {
	Src string `json:"src"`
}

type TagRef struct {
	Name string `json:"name"`
}

type AttributeRef struct {
	Name    string   `json:"name"`
	Visible bool     `json:"visible"`
	Options []string `json:"options"`
}

// NewProduct is the body of a product creation.
type NewProduct struct {
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	RegularPrice     string         `json:"regular_price"`
	Description      string         `json:"description"`
	ShortDescription string         `json:"short_description"`
	SKU              string         `json:"sku"`
	Categories       []CategoryRef  `json:"categories"`
	Images           []ImageRef     `json:"images"`
	Tags             []TagRef       `json:"tags"`
	Attributes       []AttributeRef `json:"attributes,omitempty"`
}

// NewProductFromDetail builds the creation body of a simple product.
// categoryId is left out when 0.
func NewProductFromDetail(detail catalog.ProductDetail, price catalog.Price, categoryId int64) NewProduct {
	p := NewProduct{
		Name:             detail.Name,
		Type:             "simple",
		RegularPrice:     price.String(),
		Description:      detail.Description,
		ShortDescription: detail.ShortDescription,
		SKU:              detail.SKU,
		Categories:       []CategoryRef{},
		Images:           []ImageRef{},
		Tags:             []TagRef{},
	}
	if categoryId != 0 {
		p.Categories = append(p.Categories, CategoryRef{ID: categoryId})
	}
	for _, src := range detail.Images {
		p.Images = append(p.Images, ImageRef{Src: src})
	}
	for _, tag := range detail.Tags {
		p.Tags = append(p.Tags, TagRef{Name: tag})
	}

	names := make([]string, 0, len(detail.Attributes))
	for name := range detail.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.Attributes = append(p.Attributes, AttributeRef{
			Name:    name,
			Visible: true,
			Options: []string{detail.Attributes[name]},
		})
	}
	return p
}

// ListProducts walks every page of the catalog until an empty page. If a page fails,
// what was fetched so far is returned alongside the error.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	for page := 1; ; page++ {
		c.tel.ReportDebug("fetching products page", page)

		res, err := c.read(ctx).
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("per_page", strconv.Itoa(c.opts.PerPage)).
			Get("")
		if err != nil {
			c.tel.ReportBroken(report_client_list_products, fmt.Errorf("fetch: %w", err), page)
			return products, err
		}

		var batch []Product
		err = decode(res, &batch)
		if err != nil {
			c.tel.ReportBroken(report_client_list_products, err, page)
			return products, err
		}
		if len(batch) == 0 {
			break
		}
		products = append(products, batch...)
	}

	c.tel.ReportCount("products", int64(len(products)))
	return products, nil
}

// LookupSKU returns every remote product with exactly the given sku.
func (c *Client) LookupSKU(ctx context.Context, sku string) ([]Product, error) {
	// an empty filter is ignored by the api and would list every product
	if strings.TrimSpace(sku) == "" {
		return nil, catalog.ErrEmptySku
	}
	res, err := c.read(ctx).
		SetQueryParam("sku", sku).
		Get("")
	if err != nil {
		c.tel.ReportBroken(report_client_lookup_sku, fmt.Errorf("fetch: %w", err), sku)
		return nil, err
	}

	var candidates []Product
	err = decode(res, &candidates)
	if err != nil {
		c.tel.ReportBroken(report_client_lookup_sku, err, sku)
		return nil, err
	}

	// the api matches sku lists loosely, only exact matches count
	var exact []Product
	for _, p := range candidates {
		if p.SKU == sku {
			exact = append(exact, p)
		}
	}
	return exact, nil
}

func (c *Client) UpdatePrice(ctx context.Context, id int64, price catalog.Price) (Product, error) {
	res, err := c.write(ctx).
		SetBody(map[string]string{"regular_price": price.String()}).
		Put(idPath(id))
	if err != nil {
		c.tel.ReportBroken(report_client_update_price, fmt.Errorf("fetch: %w", err), id)
		return Product{}, err
	}

	var updated Product
	err = decode(res, &updated)
	if err != nil {
		c.tel.ReportBroken(report_client_update_price, err, id)
		return Product{}, err
	}
	return updated, nil
}

func (c *Client) CreateProduct(ctx context.Context, product NewProduct) (Product, error) {
	res, err := c.write(ctx).
		SetBody(product).
		Post("")
	if err != nil {
		c.tel.ReportBroken(report_client_create_product, fmt.Errorf("fetch: %w", err), product.SKU)
		return Product{}, err
	}

	var created Product
	err = decode(res, &created)
	if err != nil {
		c.tel.ReportBroken(report_client_create_product, err, product.SKU)
		return Product{}, err
	}
	return created, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	req := c.write(ctx)
	if c.opts.ForceDelete {
		req.SetQueryParam("force", "true")
	}
	res, err := req.Delete(idPath(id))
	if err != nil {
		c.tel.ReportBroken(report_client_delete_product, fmt.Errorf("fetch: %w", err), id)
		return err
	}
	err = checkResponse(res)
	if err != nil {
		c.tel.ReportBroken(report_client_delete_product, err, id)
		return err
	}
	return nil
}

// RemoteRecords converts listed products into a remote snapshot. The regular price is
// the one compared against, it is also the one price updates write to.
// Products without an sku cannot be reconciled and are skipped.
func (c *Client) RemoteRecords(products []Product) []catalog.RemoteRecord {
	records := make([]catalog.RemoteRecord, 0, len(products))
	for _, p := range products {
		p.SKU = strings.TrimSpace(p.SKU)
		if p.SKU == "" {
			c.tel.ReportWarning(report_client_list_products, "product without sku", p.ID)
			continue
		}
		price, err := catalog.ParsePrice(p.RegularPrice)
		if err != nil {
			c.tel.ReportWarning(report_client_list_products, err, p.SKU)
		}
		records = append(records, catalog.RemoteRecord{SKU: p.SKU, Price: price})
	}
	return catalog.DedupeRemote(records)
}
