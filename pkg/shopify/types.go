// Package shopify provides Admin REST API access to Shopify product catalogs.
package shopify

import "strconv"

// Credentials identifies one shop and the access token to call it with.
// Domain is normally the myshopify host; a value that already carries a
// scheme is used as the base URL unchanged.
type Credentials struct {
	Domain      string
	AccessToken string
	APIVersion  string // optional per-shop override
}

// Product is the Admin REST read model for a catalog product.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	BodyHTML    string    `json:"body_html"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Tags        string    `json:"tags"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
	Variants    []Variant `json:"variants"`
	Images      []Image   `json:"images"`
}

// IDString renders the numeric product ID the way the engine keys records.
func (p Product) IDString() string {
	return strconv.FormatInt(p.ID, 10)
}

// Variant is a purchasable variation of a product. Prices are decimal
// strings as the API returns them; CompareAtPrice is empty when unset.
type Variant struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"product_id"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compare_at_price"`
	SKU            string `json:"sku"`
	Position       int    `json:"position"`
}

// Image is a product image.
type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ListOptions controls catalog listing.
type ListOptions struct {
	Limit  int    // page size, capped at 250 by the API
	Status string // optional filter: active, draft, archived
}
