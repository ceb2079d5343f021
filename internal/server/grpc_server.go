package server

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/topology-core/internal/metrics"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName = "topology.v1.TopologyService"
	// MethodBuildMap is the full method name of BuildMap
	MethodBuildMap = "/" + ServiceName + "/BuildMap"

	metadataRequestID = "x-request-id"
)

// TopologyServiceServer builds maps from Struct requests with the fields
// from, to (RFC 3339) and optionally application and service_type.
type TopologyServiceServer interface {
	BuildMap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// TopologyServiceDesc describes the service for grpc.Server.RegisterService
var TopologyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TopologyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BuildMap", Handler: buildMapHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "topology/v1/topology.proto",
}

func buildMapHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TopologyServiceServer).BuildMap(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodBuildMap}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TopologyServiceServer).BuildMap(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer implements TopologyServiceServer on a MapService
type GRPCServer struct {
	service *MapService
	catalog *models.Catalog
	logger  *slog.Logger
}

// NewGRPCServer creates the gRPC API
func NewGRPCServer(service *MapService, catalog *models.Catalog) *GRPCServer {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	return &GRPCServer{service: service, catalog: catalog, logger: service.logger}
}

// Register adds the topology service and a health service reporting it as serving
func (s *GRPCServer) Register(gs *grpc.Server) *health.Server {
	gs.RegisterService(&TopologyServiceDesc, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

func (s *GRPCServer) BuildMap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q := url.Values{}
	for _, field := range []string{"from", "to", "application", "service_type"} {
		if v, ok := req.GetFields()[field]; ok {
			q.Set(field, v.GetStringValue())
		}
	}
	mapReq, err := parseMapRequest(q, s.catalog)
	if err != nil {
		return nil, status.Error(grpcCode(errInvalid(err)), err.Error())
	}

	m, err := s.service.Build(ctx, mapReq)
	if err != nil {
		s.logger.Warn("map build failed", "request_id", RequestID(ctx), "error", err)
		return nil, status.Error(grpcCode(err), err.Error())
	}

	out, err := NewMapView(m, s.service.Schemas()).Struct()
	if err != nil {
		return nil, status.Error(grpcCode(err), err.Error())
	}
	return out, nil
}

// UnaryInterceptor assigns request ids, logs calls and records request metrics. recorder may be nil.
func UnaryInterceptor(recorder *metrics.Recorder, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(metadataRequestID); len(values) > 0 {
				id = values[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(metadataRequestID, id)); err != nil {
			logger.Warn("failed to set request id header", "request_id", id, "method", info.FullMethod, "error", err)
		}

		resp, err := handler(context.WithValue(ctx, requestIDKey{}, id), req)

		code := status.Code(err)
		elapsed := time.Since(start)
		if recorder != nil {
			recorder.RecordRequest(info.FullMethod, int(code), elapsed)
		}
		logger.Debug("grpc request", "request_id", id, "method", info.FullMethod, "code", code.String(), "elapsed", elapsed)
		return resp, err
	}
}
