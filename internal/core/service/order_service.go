package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrDuplicateRequest  = domain.ErrDuplicateRequest
	ErrInsufficientStock = domain.ErrInsufficientStock
)

const (
	useCasePlaceOrder = "order.place"
	useCaseListOrders = "order.list"

	releaseTimeout = 2 * time.Second
)

type PlaceOrderInput struct {
	RequestID string
	ProdNo    int64
	Count     int
	Buyer     string
	Seller    string
}

type OrderService struct {
	repo       port.OrderRepository
	cache      port.CacheRepository
	orderQueue chan domain.Order
	opts       options

	mu     sync.RWMutex
	closed bool
}

// NewOrderService builds the order placement service. cache may be nil, in which
// case requests are not deduplicated.
func NewOrderService(repo port.OrderRepository, cache port.CacheRepository, queueSize int, opts ...Option) *OrderService {
	return &OrderService{
		repo:       repo,
		cache:      cache,
		orderQueue: make(chan domain.Order, queueSize),
		opts:       newOptions(opts),
	}
}

func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order domain.Order, err error) {
	ctx, run := s.opts.begin(ctx, useCasePlaceOrder,
		attribute.Int64("product.no", in.ProdNo),
		attribute.Int("order.count", in.Count),
	)
	defer func() {
		run.end(err,
			zap.Int64("prod_no", in.ProdNo),
			zap.Int("count", in.Count),
			zap.String("buyer", in.Buyer),
			zap.Int64("ord_no", order.OrdNo),
		)
	}()

	in.Buyer = strings.TrimSpace(in.Buyer)
	in.Seller = strings.TrimSpace(in.Seller)
	if in.ProdNo <= 0 || in.Count <= 0 || in.Buyer == "" {
		return domain.Order{}, fmt.Errorf("prodNo, positive count and buyer are required: %w", domain.ErrInvalidInput)
	}

	if s.cache != nil && in.RequestID != "" {
		key := "order:" + in.RequestID

		ok, cacheErr := s.cache.SetIdempotency(ctx, key)
		if cacheErr != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", cacheErr)
		}
		if !ok {
			return domain.Order{}, ErrDuplicateRequest
		}

		// a failed placement must not burn the request id
		defer func() {
			if err != nil {
				s.releaseKey(ctx, key)
			}
		}()
	}

	order, err = s.repo.PlaceOrder(ctx, domain.Order{
		ProdNo:    in.ProdNo,
		Count:     in.Count,
		Buyer:     in.Buyer,
		Seller:    in.Seller,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.enqueue(ctx, order)
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, buyer string) (orders []domain.OrderSummary, err error) {
	ctx, run := s.opts.begin(ctx, useCaseListOrders)
	defer func() { run.end(err, zap.Int("orders", len(orders))) }()

	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return nil, fmt.Errorf("buyerId is required: %w", domain.ErrInvalidInput)
	}
	return s.repo.ListOrdersByBuyer(ctx, buyer)
}

func (s *OrderService) releaseKey(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
		s.opts.logger.Warn("idempotency_release_failed", zap.String("key", key), zap.Error(err))
	}
}

// enqueue hands a committed order to the workers without blocking. A full or
// closed queue drops the event; the order itself is already durable.
func (s *OrderService) enqueue(ctx context.Context, order domain.Order) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.orderQueue <- order:
	default:
		s.opts.metrics.EventDropped()
		s.opts.logger.Warn("order_event_dropped", zap.Int64("ord_no", order.OrdNo))
	}
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.orderQueue)
}
