package domain

// Product is the catalog snapshot returned by the product service. Existence,
// price and stock are cached under different freshness windows, so a Product
// read from cache may be older for some concerns than others.
type Product struct {
	ID       int64   `json:"_id"`
	SKU      string  `json:"sku"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Stock    int     `json:"stock"`
	IsActive bool    `json:"isActive"`
}

func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

func (p *Product) AvailableForPurchase() bool {
	return p.IsActive && p.Stock > 0
}

func (p *Product) HasValidPrice() bool {
	return p.Price > 0
}
