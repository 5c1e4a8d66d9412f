package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/kyungseok/payment-risk-go/services/payment/api/paymentv1"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/service"
)

// GRPCHandler payment.v1.PaymentService 구현
type GRPCHandler struct {
	paymentService service.PaymentService
	logger         *zap.Logger
}

var _ paymentv1.PaymentServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler gRPC 핸들러 생성
func NewGRPCHandler(paymentService service.PaymentService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// ProcessPayment 결제 처리 RPC
func (h *GRPCHandler) ProcessPayment(ctx context.Context, req *paymentv1.ProcessPaymentRequest) (*paymentv1.PaymentResponse, error) {
	cmd, err := toCommand(req)
	if err != nil {
		return nil, h.toStatus("process payment", err)
	}

	payment, err := h.paymentService.ProcessPayment(ctx, cmd)
	if err != nil {
		return nil, h.toStatus("process payment", err)
	}

	return toResponse(payment), nil
}

// GetPayment 결제 조회 RPC
func (h *GRPCHandler) GetPayment(ctx context.Context, req *paymentv1.GetPaymentRequest) (*paymentv1.PaymentResponse, error) {
	payment, err := h.paymentService.GetPayment(ctx, req.TransactionID)
	if err != nil {
		return nil, h.toStatus("get payment", err)
	}

	return toResponse(payment), nil
}

func (h *GRPCHandler) toStatus(op string, err error) error {
	code := grpcCode(err)
	h.logger.Warn("rpc failed",
		zap.String("operation", op),
		zap.String("code", code.String()),
		zap.Error(err))
	return status.Error(code, publicMessage(err))
}
