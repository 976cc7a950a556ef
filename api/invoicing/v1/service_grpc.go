package invoicingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "invoicing.v1.InvoiceService"

const (
	InvoiceService_CreateInvoice_FullMethodName      = "/invoicing.v1.InvoiceService/CreateInvoice"
	InvoiceService_GetInvoice_FullMethodName         = "/invoicing.v1.InvoiceService/GetInvoice"
	InvoiceService_ListInvoices_FullMethodName       = "/invoicing.v1.InvoiceService/ListInvoices"
	InvoiceService_ListInvoiceLines_FullMethodName   = "/invoicing.v1.InvoiceService/ListInvoiceLines"
	InvoiceService_GetInvoiceTimeline_FullMethodName = "/invoicing.v1.InvoiceService/GetInvoiceTimeline"
	InvoiceService_ApplyDiscount_FullMethodName      = "/invoicing.v1.InvoiceService/ApplyDiscount"
	InvoiceService_CorrectLine_FullMethodName        = "/invoicing.v1.InvoiceService/CorrectLine"
	InvoiceService_VoidInvoice_FullMethodName        = "/invoicing.v1.InvoiceService/VoidInvoice"
	InvoiceService_AdjustStock_FullMethodName        = "/invoicing.v1.InvoiceService/AdjustStock"
	InvoiceService_TopCustomers_FullMethodName       = "/invoicing.v1.InvoiceService/TopCustomers"
	InvoiceService_ProductRanking_FullMethodName     = "/invoicing.v1.InvoiceService/ProductRanking"
	InvoiceService_LowStockRanking_FullMethodName    = "/invoicing.v1.InvoiceService/LowStockRanking"
	InvoiceService_SalespersonRanking_FullMethodName = "/invoicing.v1.InvoiceService/SalespersonRanking"
)

// InvoiceServiceServer реализуется транспортным слоем сервиса.
type InvoiceServiceServer interface {
	CreateInvoice(context.Context, *CreateInvoiceRequest) (*CreateInvoiceResponse, error)
	GetInvoice(context.Context, *GetInvoiceRequest) (*GetInvoiceResponse, error)
	ListInvoices(context.Context, *ListInvoicesRequest) (*ListInvoicesResponse, error)
	ListInvoiceLines(context.Context, *ListInvoiceLinesRequest) (*ListInvoiceLinesResponse, error)
	GetInvoiceTimeline(context.Context, *GetInvoiceTimelineRequest) (*GetInvoiceTimelineResponse, error)
	ApplyDiscount(context.Context, *ApplyDiscountRequest) (*ApplyDiscountResponse, error)
	CorrectLine(context.Context, *CorrectLineRequest) (*CorrectLineResponse, error)
	VoidInvoice(context.Context, *VoidInvoiceRequest) (*VoidInvoiceResponse, error)
	AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error)
	TopCustomers(context.Context, *TopCustomersRequest) (*TopCustomersResponse, error)
	ProductRanking(context.Context, *ProductRankingRequest) (*ProductRankingResponse, error)
	LowStockRanking(context.Context, *LowStockRankingRequest) (*LowStockRankingResponse, error)
	SalespersonRanking(context.Context, *SalespersonRankingRequest) (*SalespersonRankingResponse, error)
	mustEmbedUnimplementedInvoiceServiceServer()
}

// UnimplementedInvoiceServiceServer встраивается в реализации для совместимости вперёд.
type UnimplementedInvoiceServiceServer struct{}

func (UnimplementedInvoiceServiceServer) CreateInvoice(context.Context, *CreateInvoiceRequest) (*CreateInvoiceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateInvoice not implemented")
}
func (UnimplementedInvoiceServiceServer) GetInvoice(context.Context, *GetInvoiceRequest) (*GetInvoiceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInvoice not implemented")
}
func (UnimplementedInvoiceServiceServer) ListInvoices(context.Context, *ListInvoicesRequest) (*ListInvoicesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListInvoices not implemented")
}
func (UnimplementedInvoiceServiceServer) ListInvoiceLines(context.Context, *ListInvoiceLinesRequest) (*ListInvoiceLinesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListInvoiceLines not implemented")
}
func (UnimplementedInvoiceServiceServer) GetInvoiceTimeline(context.Context, *GetInvoiceTimelineRequest) (*GetInvoiceTimelineResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInvoiceTimeline not implemented")
}
func (UnimplementedInvoiceServiceServer) ApplyDiscount(context.Context, *ApplyDiscountRequest) (*ApplyDiscountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ApplyDiscount not implemented")
}
func (UnimplementedInvoiceServiceServer) CorrectLine(context.Context, *CorrectLineRequest) (*CorrectLineResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CorrectLine not implemented")
}
func (UnimplementedInvoiceServiceServer) VoidInvoice(context.Context, *VoidInvoiceRequest) (*VoidInvoiceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VoidInvoice not implemented")
}
func (UnimplementedInvoiceServiceServer) AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AdjustStock not implemented")
}
func (UnimplementedInvoiceServiceServer) TopCustomers(context.Context, *TopCustomersRequest) (*TopCustomersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TopCustomers not implemented")
}
func (UnimplementedInvoiceServiceServer) ProductRanking(context.Context, *ProductRankingRequest) (*ProductRankingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProductRanking not implemented")
}
func (UnimplementedInvoiceServiceServer) LowStockRanking(context.Context, *LowStockRankingRequest) (*LowStockRankingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LowStockRanking not implemented")
}
func (UnimplementedInvoiceServiceServer) SalespersonRanking(context.Context, *SalespersonRankingRequest) (*SalespersonRankingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SalespersonRanking not implemented")
}
func (UnimplementedInvoiceServiceServer) mustEmbedUnimplementedInvoiceServiceServer() {}

// RegisterInvoiceServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterInvoiceServiceServer(s grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	s.RegisterService(&InvoiceService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](fullMethod string, call func(InvoiceServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InvoiceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InvoiceServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// InvoiceService_ServiceDesc описывает сервис для grpc.Server.
var InvoiceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateInvoice", Handler: unaryHandler(InvoiceService_CreateInvoice_FullMethodName, InvoiceServiceServer.CreateInvoice)},
		{MethodName: "GetInvoice", Handler: unaryHandler(InvoiceService_GetInvoice_FullMethodName, InvoiceServiceServer.GetInvoice)},
		{MethodName: "ListInvoices", Handler: unaryHandler(InvoiceService_ListInvoices_FullMethodName, InvoiceServiceServer.ListInvoices)},
		{MethodName: "ListInvoiceLines", Handler: unaryHandler(InvoiceService_ListInvoiceLines_FullMethodName, InvoiceServiceServer.ListInvoiceLines)},
		{MethodName: "GetInvoiceTimeline", Handler: unaryHandler(InvoiceService_GetInvoiceTimeline_FullMethodName, InvoiceServiceServer.GetInvoiceTimeline)},
		{MethodName: "ApplyDiscount", Handler: unaryHandler(InvoiceService_ApplyDiscount_FullMethodName, InvoiceServiceServer.ApplyDiscount)},
		{MethodName: "CorrectLine", Handler: unaryHandler(InvoiceService_CorrectLine_FullMethodName, InvoiceServiceServer.CorrectLine)},
		{MethodName: "VoidInvoice", Handler: unaryHandler(InvoiceService_VoidInvoice_FullMethodName, InvoiceServiceServer.VoidInvoice)},
		{MethodName: "AdjustStock", Handler: unaryHandler(InvoiceService_AdjustStock_FullMethodName, InvoiceServiceServer.AdjustStock)},
		{MethodName: "TopCustomers", Handler: unaryHandler(InvoiceService_TopCustomers_FullMethodName, InvoiceServiceServer.TopCustomers)},
		{MethodName: "ProductRanking", Handler: unaryHandler(InvoiceService_ProductRanking_FullMethodName, InvoiceServiceServer.ProductRanking)},
		{MethodName: "LowStockRanking", Handler: unaryHandler(InvoiceService_LowStockRanking_FullMethodName, InvoiceServiceServer.LowStockRanking)},
		{MethodName: "SalespersonRanking", Handler: unaryHandler(InvoiceService_SalespersonRanking_FullMethodName, InvoiceServiceServer.SalespersonRanking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoicing/v1/invoice_service",
}

// InvoiceServiceClient это клиент invoicing.v1.InvoiceService.
type InvoiceServiceClient interface {
	CreateInvoice(ctx context.Context, in *CreateInvoiceRequest, opts ...grpc.CallOption) (*CreateInvoiceResponse, error)
	GetInvoice(ctx context.Context, in *GetInvoiceRequest, opts ...grpc.CallOption) (*GetInvoiceResponse, error)
	ListInvoices(ctx context.Context, in *ListInvoicesRequest, opts ...grpc.CallOption) (*ListInvoicesResponse, error)
	ListInvoiceLines(ctx context.Context, in *ListInvoiceLinesRequest, opts ...grpc.CallOption) (*ListInvoiceLinesResponse, error)
	GetInvoiceTimeline(ctx context.Context, in *GetInvoiceTimelineRequest, opts ...grpc.CallOption) (*GetInvoiceTimelineResponse, error)
	ApplyDiscount(ctx context.Context, in *ApplyDiscountRequest, opts ...grpc.CallOption) (*ApplyDiscountResponse, error)
	CorrectLine(ctx context.Context, in *CorrectLineRequest, opts ...grpc.CallOption) (*CorrectLineResponse, error)
	VoidInvoice(ctx context.Context, in *VoidInvoiceRequest, opts ...grpc.CallOption) (*VoidInvoiceResponse, error)
	AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error)
	TopCustomers(ctx context.Context, in *TopCustomersRequest, opts ...grpc.CallOption) (*TopCustomersResponse, error)
	ProductRanking(ctx context.Context, in *ProductRankingRequest, opts ...grpc.CallOption) (*ProductRankingResponse, error)
	LowStockRanking(ctx context.Context, in *LowStockRankingRequest, opts ...grpc.CallOption) (*LowStockRankingResponse, error)
	SalespersonRanking(ctx context.Context, in *SalespersonRankingRequest, opts ...grpc.CallOption) (*SalespersonRankingResponse, error)
}

type invoiceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInvoiceServiceClient создаёт клиента; JSON content-subtype проставляется на каждый вызов.
func NewInvoiceServiceClient(cc grpc.ClientConnInterface) InvoiceServiceClient {
	return &invoiceServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *invoiceServiceClient) CreateInvoice(ctx context.Context, in *CreateInvoiceRequest, opts ...grpc.CallOption) (*CreateInvoiceResponse, error) {
	return invoke[CreateInvoiceResponse](ctx, c.cc, InvoiceService_CreateInvoice_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) GetInvoice(ctx context.Context, in *GetInvoiceRequest, opts ...grpc.CallOption) (*GetInvoiceResponse, error) {
	return invoke[GetInvoiceResponse](ctx, c.cc, InvoiceService_GetInvoice_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) ListInvoices(ctx context.Context, in *ListInvoicesRequest, opts ...grpc.CallOption) (*ListInvoicesResponse, error) {
	return invoke[ListInvoicesResponse](ctx, c.cc, InvoiceService_ListInvoices_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) ListInvoiceLines(ctx context.Context, in *ListInvoiceLinesRequest, opts ...grpc.CallOption) (*ListInvoiceLinesResponse, error) {
	return invoke[ListInvoiceLinesResponse](ctx, c.cc, InvoiceService_ListInvoiceLines_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) GetInvoiceTimeline(ctx context.Context, in *GetInvoiceTimelineRequest, opts ...grpc.CallOption) (*GetInvoiceTimelineResponse, error) {
	return invoke[GetInvoiceTimelineResponse](ctx, c.cc, InvoiceService_GetInvoiceTimeline_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) ApplyDiscount(ctx context.Context, in *ApplyDiscountRequest, opts ...grpc.CallOption) (*ApplyDiscountResponse, error) {
	return invoke[ApplyDiscountResponse](ctx, c.cc, InvoiceService_ApplyDiscount_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) CorrectLine(ctx context.Context, in *CorrectLineRequest, opts ...grpc.CallOption) (*CorrectLineResponse, error) {
	return invoke[CorrectLineResponse](ctx, c.cc, InvoiceService_CorrectLine_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) VoidInvoice(ctx context.Context, in *VoidInvoiceRequest, opts ...grpc.CallOption) (*VoidInvoiceResponse, error) {
	return invoke[VoidInvoiceResponse](ctx, c.cc, InvoiceService_VoidInvoice_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error) {
	return invoke[AdjustStockResponse](ctx, c.cc, InvoiceService_AdjustStock_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) TopCustomers(ctx context.Context, in *TopCustomersRequest, opts ...grpc.CallOption) (*TopCustomersResponse, error) {
	return invoke[TopCustomersResponse](ctx, c.cc, InvoiceService_TopCustomers_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) ProductRanking(ctx context.Context, in *ProductRankingRequest, opts ...grpc.CallOption) (*ProductRankingResponse, error) {
	return invoke[ProductRankingResponse](ctx, c.cc, InvoiceService_ProductRanking_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) LowStockRanking(ctx context.Context, in *LowStockRankingRequest, opts ...grpc.CallOption) (*LowStockRankingResponse, error) {
	return invoke[LowStockRankingResponse](ctx, c.cc, InvoiceService_LowStockRanking_FullMethodName, in, opts)
}

func (c *invoiceServiceClient) SalespersonRanking(ctx context.Context, in *SalespersonRankingRequest, opts ...grpc.CallOption) (*SalespersonRankingResponse, error) {
	return invoke[SalespersonRankingResponse](ctx, c.cc, InvoiceService_SalespersonRanking_FullMethodName, in, opts)
}
