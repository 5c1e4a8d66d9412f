package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/api/paymentv1"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/service"
)

// toCommand 전송 요청을 서비스 명령으로 변환
func toCommand(req *paymentv1.ProcessPaymentRequest) (service.ProcessPaymentCommand, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return service.ProcessPaymentCommand{}, errors.Newf(errors.ErrCodeValidation, "invalid amount %q", req.Amount)
	}

	return service.ProcessPaymentCommand{
		IdempotencyKey: req.IdempotencyKey,
		PayerID:        req.PayerID,
		PayeeID:        req.PayeeID,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
	}, nil
}

func toResponse(p *domain.Payment) *paymentv1.PaymentResponse {
	return &paymentv1.PaymentResponse{
		PaymentID:      p.ID,
		IdempotencyKey: p.IdempotencyKey,
		TransactionID:  p.TransactionID,
		Status:         string(p.Status),
		Message:        p.Message,
		Amount:         formatAmount(p.Amount),
		Currency:       p.Currency,
		CreatedAt:      p.CreatedAt,
	}
}

// formatAmount 최소 소수 둘째 자리까지, 그 이하 자릿수는 잘라내지 않음
func formatAmount(amount decimal.Decimal) string {
	places := int32(2)
	if exp := -amount.Exponent(); exp > places {
		places = exp
	}
	return amount.StringFixed(places)
}

// grpcCode 에러 -> gRPC 상태 코드
func grpcCode(err error) codes.Code {
	switch {
	case stderrors.Is(err, context.Canceled):
		return codes.Canceled
	case stderrors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	code, ok := errors.CodeOf(err)
	if !ok {
		return codes.Internal
	}
	switch code {
	case errors.ErrCodeValidation:
		return codes.InvalidArgument
	case errors.ErrCodeNotFound:
		return codes.NotFound
	case errors.ErrCodeConflict:
		return codes.Aborted
	case errors.ErrCodeDatabaseError, errors.ErrCodeNetworkError:
		return codes.Unavailable
	case errors.ErrCodeTimeoutError:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// httpStatus 에러 -> HTTP 상태 코드
func httpStatus(err error) int {
	switch grpcCode(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage 내부 에러는 상세 내용을 노출하지 않음
func publicMessage(err error) string {
	var domainErr *errors.DomainError
	if stderrors.As(err, &domainErr) && errors.IsBusinessError(err) {
		return domainErr.Message
	}
	return "internal error"
}
