package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-ledger/internal/core/service"
)

type GRPCHandler struct {
	inventory service.InventoryComputer
	movements MovementRecorder
	logger    *zap.Logger
}

func NewGRPCHandler(inventory service.InventoryComputer, movements MovementRecorder, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		inventory: inventory,
		movements: movements,
		logger:    logger,
	}
}

// NewGRPCServer registers the inventory service and the standard health
// service on a new server.
func NewGRPCServer(h *GRPCHandler, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(opts...)
	RegisterInventoryServiceServer(srv, h)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(inventoryServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv, hs
}

func (h *GRPCHandler) ComputeInventory(ctx context.Context, req *ComputeInventoryRequest) (*ComputeInventoryResponse, error) {
	if req.OrganizationID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "organization id is required")
	}

	inventory, err := h.inventory.ComputeInventory(ctx, req.OrganizationID)
	if err != nil {
		return nil, h.statusError(err, req.OrganizationID, readErrorMappings)
	}
	return &ComputeInventoryResponse{Inventory: NewInventoryView(inventory)}, nil
}

func (h *GRPCHandler) RecordMovement(ctx context.Context, req *RecordMovementRequest) (*RecordMovementResponse, error) {
	event, err := h.movements.RecordMovement(ctx, req.Movement.toRequest(req.OrganizationID))
	if err != nil {
		return nil, h.statusError(err, req.OrganizationID, errorMappings)
	}
	return &RecordMovementResponse{Event: NewRecordedEventView(event)}, nil
}

func (h *GRPCHandler) statusError(err error, organizationID int64, mappings []errorMapping) error {
	_, code, message, known := classify(err, mappings)
	if !known {
		h.logger.Error("rpc failed",
			zap.Int64("organization_id", organizationID),
			zap.Error(err),
		)
	}
	return status.Error(code, message)
}
