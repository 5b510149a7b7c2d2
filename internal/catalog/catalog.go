package catalog

import (
	"errors"
	"fmt"
)

// ErrEmptySku is returned wherever a record or lookup has no identifier.
var ErrEmptySku = errors.New("empty sku")

// ProductRecord is a product as observed on the storefront during one scrape.
type ProductRecord struct {
	SKU   string
	Price Price
}

// RemoteRecord is a product as it exists on the remote platform.
// Matched is only meaningful within a single reconciliation pass.
type RemoteRecord struct {
	SKU     string
	Price   Price
	Matched bool
}

// ProductDetail is the descriptive data needed to list a new product remotely.
type ProductDetail struct {
	SKU              string
	Name             string
	Description      string
	ShortDescription string
	Category         string
	Images           []string
	Tags             []string
	Attributes       map[string]string
}

type ActionKind int

const (
	ActionUpdatePrice ActionKind = iota
	ActionCreate
	ActionDelete
)

func (k ActionKind) String() string {
	switch k {
	case ActionUpdatePrice:
		return "update-price"
	case ActionCreate:
		return "create"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Action is a single change that must be applied to the remote catalog.
// Price is unset for ActionDelete.
type Action struct {
	Kind  ActionKind
	SKU   string
	Price Price
}

func UpdatePrice(sku string, price Price) Action {
	return Action{Kind: ActionUpdatePrice, SKU: sku, Price: price}
}

func Create(sku string, price Price) Action {
	return Action{Kind: ActionCreate, SKU: sku, Price: price}
}

func Delete(sku string) Action {
	return Action{Kind: ActionDelete, SKU: sku}
}

func (a Action) String() string {
	if a.Kind == ActionDelete {
		return fmt.Sprintf("%s %s", a.Kind, a.SKU)
	}
	return fmt.Sprintf("%s %s %q", a.Kind, a.SKU, a.Price.String())
}
