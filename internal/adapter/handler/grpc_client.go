package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// AllocationClient calls allocation.v1.Allocation over an existing connection.
type AllocationClient struct {
	cc grpc.ClientConnInterface
}

func NewAllocationClient(cc grpc.ClientConnInterface) *AllocationClient {
	return &AllocationClient{cc: cc}
}

// Dial opens an insecure client connection to target that speaks the JSON codec.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

func (c *AllocationClient) AddBatch(ctx context.Context, in *AddBatchRequest, opts ...grpc.CallOption) (*AddBatchResponse, error) {
	out := new(AddBatchResponse)
	if err := c.invoke(ctx, "AddBatch", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AllocationClient) Allocate(ctx context.Context, in *AllocateRequest, opts ...grpc.CallOption) (*AllocateResponse, error) {
	out := new(AllocateResponse)
	if err := c.invoke(ctx, "Allocate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AllocationClient) Deallocate(ctx context.Context, in *DeallocateRequest, opts ...grpc.CallOption) (*DeallocateResponse, error) {
	out := new(DeallocateResponse)
	if err := c.invoke(ctx, "Deallocate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AllocationClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+allocationServiceName+"/"+method, in, out, opts...)
}
