package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// JSONCodecName is the content subtype clients must request
// (application/grpc+json).
const JSONCodecName = "json"

const (
	inventoryServiceName   = "inventory.v1.InventoryService"
	computeInventoryMethod = "/" + inventoryServiceName + "/ComputeInventory"
	recordMovementMethod   = "/" + inventoryServiceName + "/RecordMovement"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ComputeInventoryRequest struct {
	OrganizationID int64 `json:"organization_id"`
}

type ComputeInventoryResponse struct {
	Inventory InventoryView `json:"inventory"`
}

type RecordMovementRequest struct {
	OrganizationID int64         `json:"organization_id"`
	Movement       MovementInput `json:"movement"`
}

type RecordMovementResponse struct {
	Event RecordedEventView `json:"event"`
}

type InventoryServiceServer interface {
	ComputeInventory(context.Context, *ComputeInventoryRequest) (*ComputeInventoryResponse, error)
	RecordMovement(context.Context, *RecordMovementRequest) (*RecordMovementResponse, error)
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeInventory", Handler: computeInventoryHandler},
		{MethodName: "RecordMovement", Handler: recordMovementHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

func computeInventoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ComputeInventoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ComputeInventory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: computeInventoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).ComputeInventory(ctx, req.(*ComputeInventoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recordMovementHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecordMovementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).RecordMovement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recordMovementMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).RecordMovement(ctx, req.(*RecordMovementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InventoryClient calls InventoryService over the JSON codec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func (c *InventoryClient) ComputeInventory(ctx context.Context, in *ComputeInventoryRequest, opts ...grpc.CallOption) (*ComputeInventoryResponse, error) {
	out := new(ComputeInventoryResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, computeInventoryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) RecordMovement(ctx context.Context, in *RecordMovementRequest, opts ...grpc.CallOption) (*RecordMovementResponse, error) {
	out := new(RecordMovementResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, recordMovementMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
