package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

// LogPublisher writes order events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	p.logger.Info("order_placed",
		zap.Int64("ord_no", order.OrdNo),
		zap.Int64("prod_no", order.ProdNo),
		zap.Int("count", order.Count),
		zap.String("buyer", order.Buyer),
		zap.String("seller", order.Seller),
		zap.Time("created_at", order.CreatedAt),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
