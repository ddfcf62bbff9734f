package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// PlaceOrder locks the product row, checks stock, inserts the order and decrements stock in one transaction
	PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// ListOrdersByBuyer returns the buyer's orders, newest first
	ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.OrderSummary, error)
}

type ProductRepository interface {
	// CreateProduct inserts a product and, when imgPath is set, its image row in the same transaction
	CreateProduct(ctx context.Context, product domain.Product, imgPath string) (int64, error)

	// UpdateProduct overwrites the mutable fields and, when imgPath is set, replaces the image rows.
	// It returns the paths of the image rows that were replaced.
	UpdateProduct(ctx context.Context, prodNo int64, fields domain.ProductFields, requester, imgPath string) ([]string, error)

	// DeleteProduct removes the product's images, orders and the product itself, returning the removed image paths
	DeleteProduct(ctx context.Context, prodNo int64, seller string) ([]string, error)

	// GetProduct retrieves a product with its image path
	GetProduct(ctx context.Context, prodNo int64) (*domain.Product, error)

	// ListProducts returns products matching the filter ordered by product number
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}
