package woocommerce

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

// minCategorySimilarity is the jaro-winkler similarity a category name must reach
// to be accepted when no name matches exactly.
const minCategorySimilarity = 0.92

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func normalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(html.UnescapeString(name)))
}

// ListCategories fetches every product category, they are cached for the lifetime of the client.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	c.categoryLock.Lock()
	defer c.categoryLock.Unlock()
	if c.categories != nil {
		return c.categories, nil
	}

	categories := []Category{}
	for page := 1; ; page++ {
		res, err := c.read(ctx).
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("per_page", strconv.Itoa(c.opts.PerPage)).
			Get("/categories")
		if err != nil {
			c.tel.ReportBroken(report_client_list_categories, fmt.Errorf("fetch: %w", err), page)
			return nil, err
		}

		var batch []Category
		err = decode(res, &batch)
		if err != nil {
			c.tel.ReportBroken(report_client_list_categories, err, page)
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		categories = append(categories, batch...)
		if len(batch) < c.opts.PerPage {
			break
		}
	}

	c.categories = categories
	return categories, nil
}

// MatchCategory finds a category by name, case-insensitively. If no name matches exactly
// the most similar name is accepted if it is similar enough.
func MatchCategory(categories []Category, name string) (Category, bool) {
	target := normalizeCategoryName(name)
	if target == "" {
		return Category{}, false
	}

	for _, category := range categories {
		if normalizeCategoryName(category.Name) == target {
			return category, true
		}
	}

	var best Category
	var bestSimilarity float64
	for _, category := range categories {
		similarity := matchr.JaroWinkler(target, normalizeCategoryName(category.Name), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = category
		}
	}
	if bestSimilarity >= minCategorySimilarity {
		return best, true
	}
	return Category{}, false
}

// ResolveCategory looks up the id of a category by its name.
func (c *Client) ResolveCategory(ctx context.Context, name string) (Category, bool, error) {
	categories, err := c.ListCategories(ctx)
	if err != nil {
		return Category{}, false, err
	}
	category, ok := MatchCategory(categories, name)
	if ok && normalizeCategoryName(category.Name) != normalizeCategoryName(name) {
		c.tel.ReportWarning(report_client_list_categories, "approximate category match", name, category.Name)
	}
	return category, ok, nil
}
