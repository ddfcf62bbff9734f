package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	useCaseCreateProduct = "product.create"
	useCaseUpdateProduct = "product.update"
	useCaseDeleteProduct = "product.delete"
	useCaseGetProduct    = "product.get"
	useCaseListProducts  = "product.list"

	cleanupTimeout = 5 * time.Second
)

// ImageUpload is an image file received from a client.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

type ProductService struct {
	repo  port.ProductRepository
	files port.FileStorage
	opts  options
}

func NewProductService(repo port.ProductRepository, files port.FileStorage, opts ...Option) *ProductService {
	return &ProductService{
		repo:  repo,
		files: files,
		opts:  newOptions(opts),
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, f domain.ProductFields, seller string, img *ImageUpload) (prodNo int64, err error) {
	ctx, run := s.opts.begin(ctx, useCaseCreateProduct, attribute.String("product.seller", seller))
	defer func() { run.end(err, zap.Int64("prod_no", prodNo), zap.String("seller", seller)) }()

	f = normalizeFields(f)
	seller = strings.TrimSpace(seller)
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("product fields: %w", err)
	}
	if seller == "" {
		return 0, fmt.Errorf("seller is required: %w", domain.ErrInvalidInput)
	}

	imgPath, err := s.storeImage(ctx, img)
	if err != nil {
		return 0, err
	}

	prodNo, err = s.repo.CreateProduct(ctx, domain.Product{
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Price:       f.Price,
		Count:       f.Count,
		Seller:      seller,
		CreatedAt:   time.Now().UTC(),
	}, imgPath)
	if err != nil {
		s.removeFiles(ctx, imgPath)
		return 0, err
	}
	return prodNo, nil
}

// UpdateProduct overwrites the product fields. A non-empty requester must own the
// product. When img is set the product's image is replaced and the old files are
// removed after commit.
func (s *ProductService) UpdateProduct(ctx context.Context, prodNo int64, f domain.ProductFields, requester string, img *ImageUpload) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseUpdateProduct, attribute.Int64("product.no", prodNo))
	defer func() { run.end(err, zap.Int64("prod_no", prodNo), zap.Bool("image", img != nil)) }()

	f = normalizeFields(f)
	if prodNo <= 0 {
		return fmt.Errorf("prodNo: %w", domain.ErrInvalidInput)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("product fields: %w", err)
	}

	imgPath, err := s.storeImage(ctx, img)
	if err != nil {
		return err
	}

	replaced, err := s.repo.UpdateProduct(ctx, prodNo, f, strings.TrimSpace(requester), imgPath)
	if err != nil {
		s.removeFiles(ctx, imgPath)
		return err
	}

	s.removeFiles(ctx, replaced...)
	return nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, prodNo int64, seller string) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseDeleteProduct, attribute.Int64("product.no", prodNo))
	defer func() { run.end(err, zap.Int64("prod_no", prodNo), zap.String("seller", seller)) }()

	seller = strings.TrimSpace(seller)
	if prodNo <= 0 {
		return fmt.Errorf("prodNo: %w", domain.ErrInvalidInput)
	}
	if seller == "" {
		return fmt.Errorf("seller is required: %w", domain.ErrInvalidInput)
	}

	removed, err := s.repo.DeleteProduct(ctx, prodNo, seller)
	if err != nil {
		return err
	}

	s.removeFiles(ctx, removed...)
	return nil
}

func (s *ProductService) GetProduct(ctx context.Context, prodNo int64) (p *domain.Product, err error) {
	ctx, run := s.opts.begin(ctx, useCaseGetProduct)
	defer func() { run.end(err, zap.Int64("prod_no", prodNo)) }()

	if prodNo <= 0 {
		return nil, fmt.Errorf("prodNo: %w", domain.ErrInvalidInput)
	}
	return s.repo.GetProduct(ctx, prodNo)
}

func (s *ProductService) ListProducts(ctx context.Context, filter domain.ProductFilter) (products []domain.Product, err error) {
	ctx, run := s.opts.begin(ctx, useCaseListProducts)
	defer func() { run.end(err, zap.Int("products", len(products))) }()

	filter.Keyword = strings.TrimSpace(filter.Keyword)
	return s.repo.ListProducts(ctx, filter)
}

func (s *ProductService) storeImage(ctx context.Context, img *ImageUpload) (string, error) {
	if img == nil {
		return "", nil
	}
	if s.files == nil {
		return "", fmt.Errorf("image upload not configured: %w", domain.ErrInvalidInput)
	}

	p, err := s.files.Store(ctx, img.Filename, img.Content)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return p, nil
}

// removeFiles is best effort: failures are logged and counted, never returned.
func (s *ProductService) removeFiles(ctx context.Context, paths ...string) {
	if s.files == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.files.Delete(ctx, p); err != nil {
			s.opts.metrics.CleanupFailed()
			s.opts.logger.Warn("image_cleanup_failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func normalizeFields(f domain.ProductFields) domain.ProductFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	return f
}
