// Package service composes validation, the aggregate and the store into the
// externally visible cart operations. Every mutation runs the same sequence:
// authenticate, authorize, validate the product, mutate, persist. A failure
// at any stage leaves the stored cart untouched.
package service

import (
	"context"
	"log"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/domain"
	"github.com/storefront/cart-service/internal/store"
	"github.com/storefront/cart-service/internal/validation"
)

type CartService struct {
	store    store.CartStore
	users    *validation.UserValidator
	products *validation.ProductValidator
	sfg      singleflight.Group // collapses concurrent loads of the same cart
}

type Summary struct {
	ItemCount int     `json:"item_count"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}

func NewCartService(cartStore store.CartStore, users *validation.UserValidator, products *validation.ProductValidator) *CartService {
	return &CartService{
		store:    cartStore,
		users:    users,
		products: products,
	}
}

// GetCart returns the cart owned by the token's identity, creating an empty
// one lazily on first read.
func (s *CartService) GetCart(ctx context.Context, token string) (*domain.Cart, error) {
	userID, err := s.users.UserID(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.loadCart(ctx, userID)
}

// GetCartForUser serves the path-addressed read. The path user id must match
// the token's identity; mismatches are rejected before any store access.
func (s *CartService) GetCartForUser(ctx context.Context, token string, userID int64) (*domain.Cart, error) {
	if err := s.users.RequireOwner(ctx, token, userID); err != nil {
		return nil, err
	}
	return s.loadCart(ctx, userID)
}

// AddItem validates the identity and the product, then merges a line built
// from the validated snapshot into the cart and persists it.
func (s *CartService) AddItem(ctx context.Context, token string, productID int64, quantity int) (*domain.Cart, error) {
	if productID <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "product id must be positive")
	}

	user, err := s.users.ValidateUserOrFail(ctx, token)
	if err != nil {
		return nil, err
	}

	product, err := s.products.ValidateForCart(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	item := newCartItem(product, quantity)
	if !item.IsValid() {
		return nil, apperr.New(apperr.InvalidInput, "invalid cart item")
	}

	cart, err := s.loadCart(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	cart.AddItem(item)
	if errSave := s.store.Save(ctx, cart); errSave != nil {
		return nil, errSave
	}

	log.Printf("item added to cart: product=%d user=%d qty=%d", productID, user.ID, quantity)
	return cart, nil
}

// RemoveItem deletes a line from the token owner's cart. Removing a product
// that is not in the cart is NotFound, not a silent success.
func (s *CartService) RemoveItem(ctx context.Context, token string, productID int64) (*domain.Cart, error) {
	userID, err := s.users.UserID(ctx, token)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !cart.RemoveItem(productID) {
		return nil, apperr.Newf(apperr.NotFound, "product not in cart: %d", productID)
	}

	if errSave := s.store.Save(ctx, cart); errSave != nil {
		return nil, errSave
	}
	return cart, nil
}

// UpdateQuantity sets the quantity of an existing line. Increases re-check
// stock against the catalog first; a quantity of zero or below removes the
// line.
func (s *CartService) UpdateQuantity(ctx context.Context, token string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity > validation.MaxQuantityPerProduct {
		return nil, apperr.Newf(apperr.InvalidInput,
			"maximum quantity per product is %d, requested: %d", validation.MaxQuantityPerProduct, quantity)
	}

	userID, err := s.users.UserID(ctx, token)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, ok := cart.Item(productID)
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "product not in cart: %d", productID)
	}

	if quantity > existing.Quantity {
		hasStock, errStock := s.products.HasStock(ctx, productID, quantity)
		if errStock != nil {
			return nil, errStock
		}
		if !hasStock {
			return nil, apperr.New(apperr.ProductInvalid, "insufficient stock for requested quantity")
		}
	}

	cart.UpdateItemQuantity(productID, quantity)
	if errSave := s.store.Save(ctx, cart); errSave != nil {
		return nil, errSave
	}
	return cart, nil
}

// ClearCart deletes the stored cart and reports whether one existed.
func (s *CartService) ClearCart(ctx context.Context, token string) (bool, error) {
	userID, err := s.users.UserID(ctx, token)
	if err != nil {
		return false, err
	}
	return s.store.Delete(ctx, userID)
}

// Summary returns the line count, total and currency of the owner's cart.
func (s *CartService) Summary(ctx context.Context, token string) (*Summary, error) {
	cart, err := s.GetCart(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ItemCount: cart.ItemCount(),
		Total:     cart.Total,
		Currency:  cart.Currency,
	}, nil
}

// ValidateForCheckout fails fast on an empty cart, re-validates every line
// against current catalog state, reconciles prices in place and persists the
// refreshed cart before returning it as the checkout-eligible snapshot.
func (s *CartService) ValidateForCheckout(ctx context.Context, token string) (*domain.Cart, error) {
	user, err := s.users.ValidateUserOrFail(ctx, token)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperr.New(apperr.InvalidInput, "cart is empty")
	}

	products, err := s.products.ValidateForCheckout(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	for i := range cart.Items {
		product, ok := products[cart.Items[i].ProductID]
		if !ok {
			continue
		}
		if cart.Items[i].Price != product.Price {
			log.Printf("price updated for product %d: %.2f -> %.2f",
				cart.Items[i].ProductID, cart.Items[i].Price, product.Price)
			cart.Items[i].Price = product.Price
		}
	}
	cart.RecomputeTotal()

	if errSave := s.store.Save(ctx, cart); errSave != nil {
		return nil, errSave
	}

	log.Printf("cart validated for checkout: user=%d items=%d", user.ID, cart.ItemCount())
	return cart, nil
}

// RefreshCart drops lines whose product is no longer purchasable, updates
// prices for the remainder, persists, and returns the remaining line count.
func (s *CartService) RefreshCart(ctx context.Context, token string) (int, error) {
	userID, err := s.users.UserID(ctx, token)
	if err != nil {
		return 0, err
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return 0, err
	}

	refreshed, err := s.products.RefreshItems(ctx, cart.Items)
	if err != nil {
		return 0, err
	}

	cart.Items = refreshed
	cart.RecomputeTotal()
	if errSave := s.store.Save(ctx, cart); errSave != nil {
		return 0, errSave
	}

	log.Printf("cart refreshed: user=%d, %d items remain", userID, cart.ItemCount())
	return cart.ItemCount(), nil
}

// AllCarts lists every stored cart. Administrators only.
func (s *CartService) AllCarts(ctx context.Context, token string) ([]*domain.Cart, error) {
	if err := s.users.RequireAdmin(ctx, token); err != nil {
		return nil, err
	}
	return s.store.All(ctx)
}

func (s *CartService) loadCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return s.store.Load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	// Clone so concurrent callers sharing the singleflight result never
	// mutate the same cart value.
	return v.(*domain.Cart).Clone(), nil
}

func newCartItem(product *domain.Product, quantity int) domain.CartItem {
	currency := product.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return domain.CartItem{
		ProductID: product.ID,
		SKU:       product.SKU,
		Title:     product.Title,
		Quantity:  quantity,
		Price:     product.Price,
		Currency:  currency,
	}
}
