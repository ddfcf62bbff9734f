package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/logging"
	"github.com/rl1809/storefront/internal/metrics"
)

// IsBusinessError reports whether err is an expected rejection rather than a system failure.
func IsBusinessError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrDuplicateRequest)
}

type useCaseRun struct {
	useCase string
	start   time.Time
	span    trace.Span
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (o options) begin(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, *useCaseRun) {
	ctx, span := o.tracer.Start(ctx, useCase, trace.WithAttributes(attrs...))

	logger := logging.For(ctx, o.logger)
	return ctx, &useCaseRun{
		useCase: useCase,
		start:   time.Now(),
		span:    span,
		logger:  logger.With(zap.String("use_case", useCase)),
		metrics: o.metrics,
	}
}

func (r *useCaseRun) end(err error, fields ...zap.Field) {
	defer r.span.End()
	r.metrics.ObserveUseCase(r.useCase, r.start, err)

	fields = append(fields,
		zap.String("outcome", metrics.Outcome(err)),
		zap.Duration("latency", time.Since(r.start)),
	)
	switch {
	case err == nil:
		r.span.SetStatus(codes.Ok, "")
		r.logger.Info("use_case_done", fields...)
	case IsBusinessError(err):
		r.span.SetAttributes(attribute.String("rejection", err.Error()))
		r.logger.Info("use_case_rejected", append(fields, zap.Error(err))...)
	default:
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		r.logger.Error("use_case_failed", append(fields, zap.Error(err))...)
	}
}
