package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kyungseok/payment-risk-go/services/payment/api/paymentv1"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/service"
)

// HTTPHandler HTTP 핸들러
type HTTPHandler struct {
	paymentService service.PaymentService
	logger         *zap.Logger
}

// NewHTTPHandler HTTP 핸들러 생성
func NewHTTPHandler(paymentService service.PaymentService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// ErrorResponse 에러 응답
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Register 라우트 등록
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments", h.ProcessPayment)
	mux.HandleFunc("GET /payments/{transactionId}", h.GetPayment)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// ProcessPayment 결제 처리 API
//
// 헤더 Idempotency-Key 가 있으면 본문의 idempotencyKey 보다 우선한다.
func (h *HTTPHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentv1.ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	cmd, err := toCommand(&req)
	if err != nil {
		h.fail(w, "process payment", err)
		return
	}

	payment, err := h.paymentService.ProcessPayment(r.Context(), cmd)
	if err != nil {
		h.fail(w, "process payment", err)
		return
	}

	h.respondJSON(w, http.StatusOK, toResponse(payment))
}

// GetPayment 거래 ID로 결제 조회 API
func (h *HTTPHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.paymentService.GetPayment(r.Context(), r.PathValue("transactionId"))
	if err != nil {
		h.fail(w, "get payment", err)
		return
	}

	h.respondJSON(w, http.StatusOK, toResponse(payment))
}

// HealthCheck 헬스 체크 API
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) fail(w http.ResponseWriter, op string, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("operation", op), zap.Error(err))
	} else {
		h.logger.Info("request rejected", zap.String("operation", op), zap.Error(err))
	}
	h.respondError(w, status, publicMessage(err), grpcCode(err).String())
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string, code string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
