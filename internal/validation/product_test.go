package validation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/domain"
)

type mockProductAPI struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	err      error
	calls    int
	inFlight int
	maxSeen  int
}

func (m *mockProductAPI) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	product, ok := m.products[productID]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "product not found: %d", productID)
	}
	clone := *product
	return &clone, nil
}

func testProduct(id int64, price float64, stock int, active bool) *domain.Product {
	return &domain.Product{ID: id, SKU: "S", Title: "Widget", Price: price, Stock: stock, IsActive: active, Currency: "USD"}
}

func TestValidateForCart_Success(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{42: testProduct(42, 10.00, 5, true)}}
	v := NewProductValidator(api)

	product, err := v.ValidateForCart(context.Background(), 42, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), product.ID)
}

func TestValidateForCart_QuantityOverBusinessLimit(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{7: testProduct(7, 1.00, 1000, true)}}
	v := NewProductValidator(api)

	_, err := v.ValidateForCart(context.Background(), 7, 100)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	// The limit is checked before any remote call.
	assert.Equal(t, 0, api.calls)
}

func TestValidateForCart_NonPositiveQuantity(t *testing.T) {
	v := NewProductValidator(&mockProductAPI{})

	_, err := v.ValidateForCart(context.Background(), 1, 0)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestValidateForCart_InsufficientStock(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{9: testProduct(9, 5.00, 1, true)}}
	v := NewProductValidator(api)

	_, err := v.ValidateForCart(context.Background(), 9, 3)
	assert.True(t, apperr.IsKind(err, apperr.ProductInvalid))
	assert.Contains(t, err.Error(), "insufficient stock")
}

func TestValidateForCart_InactiveProduct(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{9: testProduct(9, 5.00, 10, false)}}
	v := NewProductValidator(api)

	_, err := v.ValidateForCart(context.Background(), 9, 1)
	assert.True(t, apperr.IsKind(err, apperr.ProductInvalid))
}

func TestValidateForCart_InvalidPrice(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{9: testProduct(9, 0, 10, true)}}
	v := NewProductValidator(api)

	_, err := v.ValidateForCart(context.Background(), 9, 1)
	assert.True(t, apperr.IsKind(err, apperr.ProductInvalid))
	assert.Contains(t, err.Error(), "invalid price")
}

func TestHasStock(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{1: testProduct(1, 1.00, 3, true)}}
	v := NewProductValidator(api)

	ok, err := v.HasStock(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.HasStock(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasStock_CachesWithinWindow(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{1: testProduct(1, 1.00, 3, true)}}
	v := NewProductValidator(api)

	for i := 0; i < 4; i++ {
		_, err := v.HasStock(context.Background(), 1, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.calls)
}

func TestValidateForCheckout_AllValid(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{
		1: testProduct(1, 2.00, 10, true),
		2: testProduct(2, 3.00, 10, true),
	}}
	v := NewProductValidator(api)

	items := []domain.CartItem{
		{ProductID: 1, Title: "A", Quantity: 2, Price: 2.00},
		{ProductID: 2, Title: "B", Quantity: 1, Price: 3.00},
	}
	products, err := v.ValidateForCheckout(context.Background(), items)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestValidateForCheckout_FailsOnShortStock(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{
		1: testProduct(1, 2.00, 1, true),
	}}
	v := NewProductValidator(api)

	items := []domain.CartItem{{ProductID: 1, Title: "A", Quantity: 5, Price: 2.00}}
	_, err := v.ValidateForCheckout(context.Background(), items)
	assert.True(t, apperr.IsKind(err, apperr.ProductInvalid))
}

func TestValidateForCheckout_FailsOnMissingProduct(t *testing.T) {
	v := NewProductValidator(&mockProductAPI{products: map[int64]*domain.Product{}})

	items := []domain.CartItem{{ProductID: 404, Title: "A", Quantity: 1, Price: 2.00}}
	_, err := v.ValidateForCheckout(context.Background(), items)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestValidateForCheckout_BoundedConcurrency(t *testing.T) {
	products := make(map[int64]*domain.Product)
	items := make([]domain.CartItem, 0, 30)
	for i := int64(1); i <= 30; i++ {
		products[i] = testProduct(i, 1.00, 10, true)
		items = append(items, domain.CartItem{ProductID: i, Title: "P", Quantity: 1, Price: 1.00})
	}
	api := &mockProductAPI{products: products}
	v := NewProductValidator(api)

	_, err := v.ValidateForCheckout(context.Background(), items)
	require.NoError(t, err)
	assert.LessOrEqual(t, api.maxSeen, checkoutConcurrency)
}

func TestRefreshItems_DropsUnavailableAndUpdatesPrices(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{
		1: testProduct(1, 2.50, 10, true),  // price changed from 2.00
		2: testProduct(2, 3.00, 0, true),   // out of stock
		3: testProduct(3, 4.00, 10, false), // inactive
	}}
	v := NewProductValidator(api)

	items := []domain.CartItem{
		{ProductID: 1, Title: "A", Quantity: 2, Price: 2.00},
		{ProductID: 2, Title: "B", Quantity: 1, Price: 3.00},
		{ProductID: 3, Title: "C", Quantity: 1, Price: 4.00},
		{ProductID: 4, Title: "D", Quantity: 1, Price: 5.00}, // gone from catalog
	}
	refreshed, err := v.RefreshItems(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, refreshed, 1)
	assert.Equal(t, int64(1), refreshed[0].ProductID)
	assert.InDelta(t, 2.50, refreshed[0].Price, 0.001)
}

func TestRefreshItems_PropagatesDependencyFailure(t *testing.T) {
	api := &mockProductAPI{err: apperr.New(apperr.DependencyUnavailable, "product service unreachable")}
	v := NewProductValidator(api)

	items := []domain.CartItem{{ProductID: 1, Title: "A", Quantity: 1, Price: 2.00}}
	_, err := v.RefreshItems(context.Background(), items)
	assert.True(t, apperr.IsKind(err, apperr.DependencyUnavailable))
}

func TestDetails_CachedSeparatelyFromAvailability(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{1: testProduct(1, 9.99, 5, true)}}
	v := NewProductValidator(api)

	_, err := v.HasStock(context.Background(), 1, 1)
	require.NoError(t, err)

	product, err := v.Details(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", product.Title)
	assert.Equal(t, 2, api.calls)
}

func TestClearCaches_ForcesRefetch(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{1: testProduct(1, 9.99, 5, true)}}
	v := NewProductValidator(api)

	_, err := v.HasStock(context.Background(), 1, 1)
	require.NoError(t, err)
	v.ClearCaches()
	_, err = v.HasStock(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestPrice_UsesOwnCache(t *testing.T) {
	api := &mockProductAPI{products: map[int64]*domain.Product{1: testProduct(1, 9.99, 5, true)}}
	v := NewProductValidator(api)

	price, err := v.Price(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 9.99, price, 0.001)

	_, err = v.Price(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}
