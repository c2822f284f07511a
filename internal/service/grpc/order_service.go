package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/lifecycle"
)

const (
	defaultListOrdersLimit = 100
	maxListOrdersLimit     = 1000
)

// OrderService реализует shop.v1.OrderService поверх движка заказов.
type OrderService struct {
	orders *lifecycle.AuthorizedEngine
	logger *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(orders *lifecycle.AuthorizedEngine, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{orders: orders, logger: logger}
}

// PlaceOrder оформляет заказ и запускает фоновую обработку.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderReply, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	customerID := req.CustomerID
	if customerID == "" {
		customerID = requester
	}

	order, err := s.orders.PlaceAs(ctx, requester, customerID, req.Product, req.Quantity)
	if err != nil {
		return nil, s.fail(err, "place order")
	}
	return &OrderReply{Order: toOrder(order)}, nil
}

// UpdateOrder меняет товар и количество заказа.
func (s *OrderService) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderReply, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.orders.UpdateAs(ctx, requester, req.OrderID, req.Product, req.Quantity)
	if err != nil {
		return nil, s.fail(err, "update order")
	}
	return &OrderReply{Order: toOrder(order)}, nil
}

// GetOrder возвращает заказ вместе с историей.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderReply, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.orders.GetAs(ctx, requester, req.OrderID)
	if err != nil {
		return nil, s.fail(err, "get order")
	}
	reply := &OrderReply{Order: toOrder(order)}

	events, err := s.orders.Engine().Timeline(ctx, req.OrderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", req.OrderID).Warn("failed to load timeline")
		return reply, nil
	}
	for _, e := range events {
		reply.Timeline = append(reply.Timeline, TimelineEvent{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return reply, nil
}

// ListOrders возвращает заказы запрашивающего или все заказы для администратора.
func (s *OrderService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}

	limit := int(req.Limit)
	switch {
	case limit < 0:
		return nil, status.Error(codes.InvalidArgument, "limit must be >= 0")
	case limit == 0:
		limit = defaultListOrdersLimit
	case limit > maxListOrdersLimit:
		limit = maxListOrdersLimit
	}

	orders, err := s.orders.ListAs(ctx, requester, limit)
	if err != nil {
		return nil, s.fail(err, "list orders")
	}
	reply := &ListOrdersReply{Orders: make([]Order, 0, len(orders))}
	for _, order := range orders {
		reply.Orders = append(reply.Orders, toOrder(order))
	}
	return reply, nil
}

// DeleteOrder удаляет заказ и отменяет его обработку.
func (s *OrderService) DeleteOrder(ctx context.Context, req *DeleteOrderRequest) (*DeleteOrderReply, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.OrderID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	if err := s.orders.DeleteAs(ctx, requester, req.OrderID); err != nil {
		return nil, s.fail(err, "delete order")
	}
	return &DeleteOrderReply{OrderID: req.OrderID}, nil
}

func (s *OrderService) fail(err error, operation string) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.WithError(err).WithField("operation", operation).Error("grpc request failed")
	}
	return st
}

func requesterFrom(ctx context.Context) (string, error) {
	subject, ok := auth.SubjectFromContext(ctx)
	if !ok || subject == "" {
		return "", status.Error(codes.Unauthenticated, "request is not authenticated")
	}
	return subject, nil
}

var _ OrderServiceServer = (*OrderService)(nil)
