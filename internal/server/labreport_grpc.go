package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LabReportServiceName is the fully-qualified gRPC service name.
const LabReportServiceName = "labreport.v1.LabReportService"

const (
	methodExtractText     = "/" + LabReportServiceName + "/ExtractText"
	methodExtractDocument = "/" + LabReportServiceName + "/ExtractDocument"
	methodGetReport       = "/" + LabReportServiceName + "/GetReport"
	methodListReports     = "/" + LabReportServiceName + "/ListReports"
)

// LabReportServer is the server API for LabReportService. Requests and
// responses are well-known protobuf types so no generated code is needed.
type LabReportServer interface {
	// ExtractText parses already-extracted text into records.
	ExtractText(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ExtractDocument runs OCR and parsing over {filename, content_base64}.
	ExtractDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListReports(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterLabReportServer(s grpc.ServiceRegistrar, srv LabReportServer) {
	s.RegisterService(&LabReportServiceDesc, srv)
}

// LabReportServiceDesc describes LabReportService for grpc.Server.
var LabReportServiceDesc = grpc.ServiceDesc{
	ServiceName: LabReportServiceName,
	HandlerType: (*LabReportServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ExtractText",
			Handler: unaryHandler(methodExtractText, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				LabReportServer.ExtractText),
		},
		{
			MethodName: "ExtractDocument",
			Handler: unaryHandler(methodExtractDocument, func() *structpb.Struct { return new(structpb.Struct) },
				LabReportServer.ExtractDocument),
		},
		{
			MethodName: "GetReport",
			Handler: unaryHandler(methodGetReport, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				LabReportServer.GetReport),
		},
		{
			MethodName: "ListReports",
			Handler: unaryHandler(methodListReports, func() *emptypb.Empty { return new(emptypb.Empty) },
				LabReportServer.ListReports),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "labreport/v1/labreport.proto",
}

func unaryHandler[Req any](
	fullMethod string,
	newReq func() Req,
	call func(LabReportServer, context.Context, Req) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LabReportServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LabReportServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LabReportClient is the client API for LabReportService.
type LabReportClient struct {
	cc grpc.ClientConnInterface
}

func NewLabReportClient(cc grpc.ClientConnInterface) *LabReportClient {
	return &LabReportClient{cc: cc}
}

func (c *LabReportClient) ExtractText(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodExtractText, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LabReportClient) ExtractDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodExtractDocument, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LabReportClient) GetReport(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetReport, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LabReportClient) ListReports(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListReports, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
