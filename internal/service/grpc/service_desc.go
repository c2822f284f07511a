package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// Полные имена методов shop.v1.OrderService.
const (
	ServiceName       = "shop.v1.OrderService"
	MethodPlaceOrder  = "/shop.v1.OrderService/PlaceOrder"
	MethodUpdateOrder = "/shop.v1.OrderService/UpdateOrder"
	MethodGetOrder    = "/shop.v1.OrderService/GetOrder"
	MethodListOrders  = "/shop.v1.OrderService/ListOrders"
	MethodDeleteOrder = "/shop.v1.OrderService/DeleteOrder"
)

// OrderServiceServer: серверная сторона shop.v1.OrderService.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*OrderReply, error)
	UpdateOrder(context.Context, *UpdateOrderRequest) (*OrderReply, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderReply, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersReply, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderReply, error)
}

// OrderServiceDesc описывает сервис для grpc.Server.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unaryHandler(MethodPlaceOrder, OrderServiceServer.PlaceOrder)},
		{MethodName: "UpdateOrder", Handler: unaryHandler(MethodUpdateOrder, OrderServiceServer.UpdateOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(MethodGetOrder, OrderServiceServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler(MethodListOrders, OrderServiceServer.ListOrders)},
		{MethodName: "DeleteOrder", Handler: unaryHandler(MethodDeleteOrder, OrderServiceServer.DeleteOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shop/v1/order_service",
}

// RegisterOrderServiceServer регистрирует реализацию на сервере.
func RegisterOrderServiceServer(registrar grpc.ServiceRegistrar, srv OrderServiceServer) {
	registrar.RegisterService(&OrderServiceDesc, srv)
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(OrderServiceServer, context.Context, *Req) (*Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderServiceClient: клиент shop.v1.OrderService.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх соединения.
func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// PlaceOrder вызывает shop.v1.OrderService/PlaceOrder.
func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, MethodPlaceOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOrder вызывает shop.v1.OrderService/UpdateOrder.
func (c *OrderServiceClient) UpdateOrder(ctx context.Context, in *UpdateOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, MethodUpdateOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder вызывает shop.v1.OrderService/GetOrder.
func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, MethodGetOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders вызывает shop.v1.OrderService/ListOrders.
func (c *OrderServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersReply, error) {
	out := new(ListOrdersReply)
	if err := c.invoke(ctx, MethodListOrders, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOrder вызывает shop.v1.OrderService/DeleteOrder.
func (c *OrderServiceClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderReply, error) {
	out := new(DeleteOrderReply)
	if err := c.invoke(ctx, MethodDeleteOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
