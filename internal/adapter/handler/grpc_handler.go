package handler

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/adapter/handler/pb"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedOrderServiceServer
	orderService *service.OrderService
}

func NewGRPCHandler(orderService *service.OrderService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *pb.PlaceOrderRequest) (*pb.PlaceOrderResponse, error) {
	order, err := h.orderService.PlaceOrder(ctx, service.PlaceOrderInput{
		RequestID: req.GetRequestId(),
		ProdNo:    req.GetProdNo(),
		Count:     int(req.GetCount()),
		Buyer:     req.GetBuyer(),
		Seller:    req.GetSeller(),
	})
	if err != nil {
		return &pb.PlaceOrderResponse{
			Success: false,
			Message: grpcMessage(err),
		}, nil
	}

	return &pb.PlaceOrderResponse{
		Success: true,
		Message: "order placed successfully",
		OrdNo:   order.OrdNo,
	}, nil
}

func grpcMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return "duplicate request"
	case errors.Is(err, service.ErrInsufficientStock):
		return "sold out"
	case errors.Is(err, domain.ErrNotFound):
		return "product not found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid request"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "service unavailable"
	default:
		return "internal error"
	}
}
