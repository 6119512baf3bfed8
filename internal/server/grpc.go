package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
)

const (
	orderToolsService = "groupbuy.v1.OrderTools"
	requestIDHeader   = "x-request-id"
)

// OrderToolsServer is the server API for the groupbuy.v1.OrderTools service.
// Messages are well-known types so no generated code is needed.
type OrderToolsServer interface {
	LoadGuide(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ParseOrder(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CallTool(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var OrderToolsServiceDesc = grpc.ServiceDesc{
	ServiceName: orderToolsService,
	HandlerType: (*OrderToolsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadGuide", Handler: loadGuideHandler},
		{MethodName: "ParseOrder", Handler: parseOrderHandler},
		{MethodName: "CallTool", Handler: callToolHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "groupbuy/v1/order_tools.proto",
}

func RegisterOrderToolsServer(s grpc.ServiceRegistrar, srv OrderToolsServer) {
	s.RegisterService(&OrderToolsServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + orderToolsService + "/" + name }

func loadGuideHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderToolsServer).LoadGuide(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("LoadGuide")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderToolsServer).LoadGuide(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func parseOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderToolsServer).ParseOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ParseOrder")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderToolsServer).ParseOrder(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func callToolHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderToolsServer).CallTool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("CallTool")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderToolsServer).CallTool(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderToolsClient calls groupbuy.v1.OrderTools.
type OrderToolsClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderToolsClient(cc grpc.ClientConnInterface) *OrderToolsClient {
	return &OrderToolsClient{cc: cc}
}

func (c *OrderToolsClient) LoadGuide(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("LoadGuide"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderToolsClient) ParseOrder(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("ParseOrder"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderToolsClient) CallTool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("CallTool"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ToolsServer adapts OrderService to OrderToolsServer.
type ToolsServer struct {
	svc    *OrderService
	logger *slog.Logger
}

var _ OrderToolsServer = (*ToolsServer)(nil)

func NewToolsServer(svc *OrderService, logger *slog.Logger) *ToolsServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolsServer{svc: svc, logger: logger}
}

func (s *ToolsServer) LoadGuide(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	g, err := s.svc.LoadGuide(ctx, in.GetValue())
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(g)
}

func (s *ToolsServer) ParseOrder(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	o, err := s.svc.ParseOrder(ctx, in.GetValue())
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(o)
}

// CallTool expects {"name": string, "arguments": object}.
func (s *ToolsServer) CallTool(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name := in.GetFields()["name"].GetStringValue()
	if name == "" {
		return nil, common.InvalidArgumentError("name is required")
	}
	args := []byte("{}")
	if a := in.GetFields()["arguments"].GetStructValue(); a != nil {
		b, err := protojson.Marshal(a)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("arguments: %v", err)
		}
		args = b
	}
	out, err := s.svc.CallTool(ctx, name, args)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(out)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, ok := v.(json.RawMessage)
	if !ok {
		var err error
		if b, err = json.Marshal(v); err != nil {
			return nil, common.InternalErrorf("encode response: %v", err)
		}
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// RequestIDInterceptor tags each call with the caller's x-request-id, or a
// fresh one, and logs the outcome.
func RequestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)

		resp, err := handler(ctx, req)
		logger.Info("grpc.call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"request_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// NewGRPCServer registers the tool service, health and reflection.
func NewGRPCServer(svc *OrderService, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(RequestIDInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(orderToolsService, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(gs)

	RegisterOrderToolsServer(gs, NewToolsServer(svc, logger))
	return gs, hs
}
