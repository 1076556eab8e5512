package handler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/platform/logger"
)

const (
	allocationServiceName = "allocation.v1.Allocation"
	requestIDMetadataKey  = "x-request-id"
)

type AddBatchRequest struct {
	Reference string `json:"reference"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	ETA       string `json:"eta,omitempty"`
}

type AddBatchResponse struct {
	Reference string `json:"reference"`
}

type AllocateRequest struct {
	RequestID string `json:"request_id,omitempty"`
	OrderID   string `json:"order_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

type AllocateResponse struct {
	BatchRef string `json:"batchref"`
}

type DeallocateRequest struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type DeallocateResponse struct {
	BatchRef string `json:"batchref"`
}

// AllocationServer is the server API of allocation.v1.Allocation.
type AllocationServer interface {
	AddBatch(context.Context, *AddBatchRequest) (*AddBatchResponse, error)
	Allocate(context.Context, *AllocateRequest) (*AllocateResponse, error)
	Deallocate(context.Context, *DeallocateRequest) (*DeallocateResponse, error)
}

func RegisterAllocationServer(s grpc.ServiceRegistrar, srv AllocationServer) {
	s.RegisterService(&allocationServiceDesc, srv)
}

var allocationServiceDesc = grpc.ServiceDesc{
	ServiceName: allocationServiceName,
	HandlerType: (*AllocationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddBatch", Handler: addBatchHandler},
		{MethodName: "Allocate", Handler: allocateHandler},
		{MethodName: "Deallocate", Handler: deallocateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "allocation/v1/allocation",
}

func addBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServer).AddBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + allocationServiceName + "/AddBatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServer).AddBatch(ctx, req.(*AddBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func allocateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AllocateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServer).Allocate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + allocationServiceName + "/Allocate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServer).Allocate(ctx, req.(*AllocateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deallocateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeallocateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServer).Deallocate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + allocationServiceName + "/Deallocate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServer).Deallocate(ctx, req.(*DeallocateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	allocations *service.AllocationService
}

func NewGRPCHandler(allocations *service.AllocationService) *GRPCHandler {
	return &GRPCHandler{allocations: allocations}
}

func (h *GRPCHandler) AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error) {
	eta, err := parseETA(req.ETA)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := h.allocations.AddBatch(ctx, req.Reference, req.SKU, req.Quantity, eta); err != nil {
		return nil, toStatus(err)
	}
	return &AddBatchResponse{Reference: req.Reference}, nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *AllocateRequest) (*AllocateResponse, error) {
	ref, err := h.allocations.AllocateIdempotent(ctx, req.RequestID, req.OrderID, req.SKU, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AllocateResponse{BatchRef: ref}, nil
}

func (h *GRPCHandler) Deallocate(ctx context.Context, req *DeallocateRequest) (*DeallocateResponse, error) {
	ref, err := h.allocations.Deallocate(ctx, req.OrderID, req.SKU, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeallocateResponse{BatchRef: ref}, nil
}

func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	switch code := service.CodeOf(err); code {
	case service.CodeInvalidInput, service.CodeInvalidSku, service.CodeInvalidSymbol:
		return status.Error(codes.InvalidArgument, err.Error())
	case service.CodeOutOfStock, service.CodeAlreadyAllocated, service.CodeNotAllocated:
		return status.Error(codes.FailedPrecondition, err.Error())
	case service.CodeConflict:
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryLoggingInterceptor tags each call with a request id, taken from the
// x-request-id metadata when the client sent one, and logs its outcome.
func UnaryLoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDMetadataKey); len(ids) > 0 {
				requestID = ids[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		kv := []interface{}{"request_id", requestID, "method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
		if code == codes.Internal || code == codes.Unknown {
			log.Error("grpc request", append(kv, "error", err)...)
		} else {
			log.Info("grpc request", kv...)
		}
		return resp, err
	}
}
