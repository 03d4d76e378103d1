package domain

import "math"

const DefaultCurrency = "USD"

type Cart struct {
	UserID   int64      `json:"user_id"`
	Items    []CartItem `json:"items"`
	Total    float64    `json:"total"`
	Currency string     `json:"currency"`
}

type CartItem struct {
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
}

func NewCart(userID int64) *Cart {
	return &Cart{
		UserID:   userID,
		Items:    []CartItem{},
		Currency: DefaultCurrency,
	}
}

// AddItem merges into an existing line with the same product id by adding
// quantities, otherwise appends a new line. The total is recomputed before
// returning.
func (c *Cart) AddItem(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].Price = item.Price
			c.RecomputeTotal()
			return
		}
	}
	if item.Currency != "" {
		c.Currency = item.Currency
	}
	c.Items = append(c.Items, item)
	c.RecomputeTotal()
}

// RemoveItem deletes the line with the given product id and reports whether
// a removal occurred.
func (c *Cart) RemoveItem(productID int64) bool {
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.RecomputeTotal()
			return true
		}
	}
	return false
}

// UpdateItemQuantity sets the quantity of an existing line. A quantity of
// zero or below removes the line. Returns false if the product id is not in
// the cart.
func (c *Cart) UpdateItemQuantity(productID int64, quantity int) bool {
	if quantity <= 0 {
		return c.RemoveItem(productID)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.RecomputeTotal()
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Total = 0
}

func (c *Cart) RecomputeTotal() {
	var total float64
	for _, item := range c.Items {
		total += item.TotalPrice()
	}
	c.Total = round2(total)
}

func (c *Cart) Item(productID int64) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func (c *Cart) ItemCount() int {
	return len(c.Items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) IsValid() bool {
	return c.UserID > 0 && c.Items != nil
}

func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]CartItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

func (i CartItem) TotalPrice() float64 {
	return round2(i.Price * float64(i.Quantity))
}

func (i CartItem) IsValid() bool {
	return i.ProductID > 0 && i.Title != "" && i.Quantity > 0 && i.Price > 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
