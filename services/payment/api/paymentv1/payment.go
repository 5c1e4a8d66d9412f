// Package paymentv1 payment.v1.PaymentService gRPC 계약.
//
// protoc 생성 코드 대신 common/rpc 의 JSON 코덱으로 Go 구조체를 그대로 주고받는다.
// 클라이언트는 content-subtype "json" 으로 호출해야 한다 (NewPaymentServiceClient 가 자동 설정).
package paymentv1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/kyungseok/payment-risk-go/common/rpc"
)

const (
	ServiceName = "payment.v1.PaymentService"

	ProcessPaymentFullMethod = "/" + ServiceName + "/ProcessPayment"
	GetPaymentFullMethod     = "/" + ServiceName + "/GetPayment"
)

// ProcessPaymentRequest 결제 처리 요청
type ProcessPaymentRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	PayerID        string `json:"payerId"`
	PayeeID        string `json:"payeeId"`
	// Amount 10진 문자열 (예: "500.00")
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// GetPaymentRequest 거래 ID 조회 요청
type GetPaymentRequest struct {
	TransactionID string `json:"transactionId"`
}

// PaymentResponse 결제 응답 (거절이면 TransactionID 는 빈 값)
type PaymentResponse struct {
	PaymentID      int64     `json:"paymentId"`
	IdempotencyKey string    `json:"idempotencyKey"`
	TransactionID  string    `json:"transactionId,omitempty"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PaymentServiceServer 서버 구현 인터페이스
type PaymentServiceServer interface {
	ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (*PaymentResponse, error)
	GetPayment(ctx context.Context, req *GetPaymentRequest) (*PaymentResponse, error)
}

// RegisterPaymentServiceServer gRPC 서버에 서비스 등록
func RegisterPaymentServiceServer(s grpc.ServiceRegistrar, srv PaymentServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc payment.v1.PaymentService 서비스 디스크립터
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessPayment",
			Handler:    processPaymentHandler,
		},
		{
			MethodName: "GetPayment",
			Handler:    getPaymentHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payment/v1/payment",
}

func processPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProcessPaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentServiceServer).ProcessPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ProcessPaymentFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentServiceServer).ProcessPayment(ctx, req.(*ProcessPaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentServiceServer).GetPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetPaymentFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentServiceServer).GetPayment(ctx, req.(*GetPaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PaymentServiceClient 클라이언트 인터페이스
type PaymentServiceClient interface {
	ProcessPayment(ctx context.Context, in *ProcessPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error)
	GetPayment(ctx context.Context, in *GetPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error)
}

type paymentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPaymentServiceClient 클라이언트 생성
func NewPaymentServiceClient(cc grpc.ClientConnInterface) PaymentServiceClient {
	return &paymentServiceClient{cc: cc}
}

func (c *paymentServiceClient) ProcessPayment(ctx context.Context, in *ProcessPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error) {
	out := new(PaymentResponse)
	if err := c.cc.Invoke(ctx, ProcessPaymentFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentServiceClient) GetPayment(ctx context.Context, in *GetPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error) {
	out := new(PaymentResponse)
	if err := c.cc.Invoke(ctx, GetPaymentFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(rpc.CodecName)}, opts...)
}
