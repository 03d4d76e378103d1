package validation

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/cache"
	"github.com/storefront/cart-service/internal/domain"
)

// MaxQuantityPerProduct is the business limit on units of one product per
// cart operation.
const MaxQuantityPerProduct = 50

// checkoutConcurrency bounds parallel product lookups during bulk
// validation.
const checkoutConcurrency = 5

// ProductAPI is the slice of the product client this package consumes.
type ProductAPI interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

// ProductValidator validates catalog state for cart operations. Existence,
// price and stock are cached independently because they change at different
// rates.
type ProductValidator struct {
	client       ProductAPI
	details      *cache.TTLCache[int64, *domain.Product]
	prices       *cache.TTLCache[int64, float64]
	availability *cache.TTLCache[int64, *domain.Product]
}

func NewProductValidator(client ProductAPI) *ProductValidator {
	return &ProductValidator{
		client:       client,
		details:      cache.New[int64, *domain.Product](),
		prices:       cache.New[int64, float64](),
		availability: cache.New[int64, *domain.Product](),
	}
}

// ClearCaches drops every cached product view, forcing the next lookup back
// to the catalog.
func (v *ProductValidator) ClearCaches() {
	v.details.Clear()
	v.prices.Clear()
	v.availability.Clear()
}

func (v *ProductValidator) StartSweepers(ctx context.Context) {
	v.details.StartSweeper(ctx, "productDetails", productDetailWindow)
	v.prices.StartSweeper(ctx, "productPrices", priceWindow)
	v.availability.StartSweeper(ctx, "productAvailability", stockWindow)
}

// Details returns the product snapshot under the slow-moving detail window.
func (v *ProductValidator) Details(ctx context.Context, productID int64) (*domain.Product, error) {
	return v.details.GetOrFetch(ctx, productID, productDetailWindow, func(ctx context.Context) (*domain.Product, error) {
		return v.client.GetProduct(ctx, productID)
	})
}

// Price returns the current unit price under the price window.
func (v *ProductValidator) Price(ctx context.Context, productID int64) (float64, error) {
	return v.prices.GetOrFetch(ctx, productID, priceWindow, func(ctx context.Context) (float64, error) {
		product, err := v.client.GetProduct(ctx, productID)
		if err != nil {
			return 0, err
		}
		return product.Price, nil
	})
}

// current returns the product under the stock window, the freshest view this
// validator hands out. Stock-sensitive checks go through here.
func (v *ProductValidator) current(ctx context.Context, productID int64) (*domain.Product, error) {
	return v.availability.GetOrFetch(ctx, productID, stockWindow, func(ctx context.Context) (*domain.Product, error) {
		return v.client.GetProduct(ctx, productID)
	})
}

// ValidateForCart confirms the product can be added with the requested
// quantity: active, sufficient stock, a sane price, and within the per-product
// business limit.
func (v *ProductValidator) ValidateForCart(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "quantity must be positive")
	}
	if quantity > MaxQuantityPerProduct {
		return nil, apperr.Newf(apperr.InvalidInput,
			"maximum quantity per product is %d, requested: %d", MaxQuantityPerProduct, quantity)
	}

	product, err := v.current(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.Newf(apperr.ProductInvalid, "product is not available: %s", product.Title)
	}
	if !product.HasStock(quantity) {
		return nil, apperr.Newf(apperr.ProductInvalid,
			"insufficient stock for product %s: available %d, requested %d", product.Title, product.Stock, quantity)
	}
	if !product.HasValidPrice() {
		return nil, apperr.Newf(apperr.ProductInvalid, "product has invalid price: %s", product.Title)
	}
	return product, nil
}

// HasStock reports whether the product is active with at least the requested
// quantity in stock.
func (v *ProductValidator) HasStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	product, err := v.current(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.IsActive && product.HasStock(quantity), nil
}

// ValidateForCheckout re-validates every line in bulk with bounded
// concurrency and returns the current snapshots keyed by product id. Any
// line that is missing, inactive or short on stock fails the whole
// validation: checkout is all-or-nothing.
func (v *ProductValidator) ValidateForCheckout(ctx context.Context, items []domain.CartItem) (map[int64]*domain.Product, error) {
	products, err := v.fetchAll(ctx, items, false)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, apperr.Newf(apperr.ProductInvalid, "product not found in catalog: %d", item.ProductID)
		}
		if !product.AvailableForPurchase() {
			return nil, apperr.Newf(apperr.ProductInvalid, "product no longer available: %s", product.Title)
		}
		if !product.HasStock(item.Quantity) {
			return nil, apperr.Newf(apperr.ProductInvalid,
				"insufficient stock for %s: available %d, requested %d", product.Title, product.Stock, item.Quantity)
		}
	}
	return products, nil
}

// RefreshItems drops lines whose product is gone or no longer purchasable
// and updates prices for the remainder. Dependency failures propagate so a
// flaky catalog never silently empties a cart.
func (v *ProductValidator) RefreshItems(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error) {
	products, err := v.fetchAll(ctx, items, true)
	if err != nil {
		return nil, err
	}

	refreshed := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.AvailableForPurchase() {
			log.Printf("dropping unavailable product %d from cart", item.ProductID)
			continue
		}
		if item.Price != product.Price {
			log.Printf("price updated for product %d: %.2f -> %.2f", item.ProductID, item.Price, product.Price)
			item.Price = product.Price
		}
		refreshed = append(refreshed, item)
	}
	return refreshed, nil
}

// fetchAll loads current snapshots for every distinct product id with at
// most checkoutConcurrency calls in flight. With tolerateMissing set,
// NotFound and ProductInvalid outcomes leave the product out of the result
// instead of failing the batch.
func (v *ProductValidator) fetchAll(ctx context.Context, items []domain.CartItem, tolerateMissing bool) (map[int64]*domain.Product, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(checkoutConcurrency)

	var mu sync.Mutex
	products := make(map[int64]*domain.Product, len(items))

	for _, item := range items {
		productID := item.ProductID
		g.Go(func() error {
			product, err := v.current(ctx, productID)
			if err != nil {
				if tolerateMissing {
					switch apperr.KindOf(err) {
					case apperr.NotFound, apperr.ProductInvalid:
						return nil
					}
				}
				return err
			}
			mu.Lock()
			products[productID] = product
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}
