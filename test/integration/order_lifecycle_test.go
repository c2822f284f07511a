package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/customer"
	grpcsvc "github.com/vladislavdragonenkov/simpleshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/outbox"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
)

const (
	processingDelay = 20 * time.Millisecond
	completionDelay = 150 * time.Millisecond
)

// OrderLifecycleTestSuite прогоняет заказ через сервисы клиентов, доступа и жизненного цикла.
type OrderLifecycleTestSuite struct {
	suite.Suite

	orders    domain.OrderRepository
	outbox    *memory.OutboxRepository
	tokens    *auth.TokenService
	engine    *lifecycle.Engine
	customers *customer.Service
	service   *grpcsvc.OrderService

	ownerID string
	otherID string
	adminID string
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	registry := prometheus.NewRegistry()
	authMetrics := metrics.NewAuthMetricsWithRegisterer(registry)

	s.orders = memory.NewOrderRepository()
	s.outbox = memory.NewOutboxRepository()
	customers := memory.NewCustomerRepository()
	roles := memory.NewRoleRepository()

	tokens, err := auth.NewTokenService([]byte("integration-secret"), auth.WithTokenMetrics(authMetrics))
	s.Require().NoError(err)
	s.tokens = tokens

	policy := auth.NewPolicy(roles, auth.WithPolicyLogger(logger), auth.WithPolicyMetrics(authMetrics))
	s.engine = lifecycle.NewEngine(s.orders, customers,
		lifecycle.WithTimeline(memory.NewTimelineRepository()),
		lifecycle.WithOutbox(s.outbox),
		lifecycle.WithDelays(processingDelay, completionDelay),
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(metrics.NewLifecycleMetricsWithRegisterer(registry)),
	)
	s.customers = customer.NewService(customers, roles, tokens, policy,
		customer.WithOrderCleaner(s.engine),
		customer.WithOutbox(s.outbox),
		customer.WithLogger(logger),
		customer.WithMetrics(authMetrics),
	)
	s.service = grpcsvc.NewOrderService(lifecycle.NewAuthorizedEngine(s.engine, policy), logger)

	s.ownerID = s.register("owner", false)
	s.otherID = s.register("other", false)
	s.adminID = s.register("admin", true)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.engine.Shutdown(ctx))
}

// register заводит клиента, входит по паролю и возвращает subject выданного токена.
func (s *OrderLifecycleTestSuite) register(username string, admin bool) string {
	ctx := context.Background()
	in := customer.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: username + "-password",
	}

	var err error
	if admin {
		_, err = s.customers.RegisterAdmin(ctx, in)
	} else {
		_, err = s.customers.Register(ctx, in)
	}
	s.Require().NoError(err)

	token, c, err := s.customers.Login(ctx, in.Email, in.Password)
	s.Require().NoError(err)
	subject, err := s.tokens.Authenticate(token)
	s.Require().NoError(err)
	s.Require().Equal(c.CustomerID, subject)
	return subject
}

func (s *OrderLifecycleTestSuite) as(customerID string) context.Context {
	return auth.WithSubject(context.Background(), customerID)
}

func (s *OrderLifecycleTestSuite) waitForStatus(orderID int64, want domain.OrderStatus) {
	s.Require().Eventually(func() bool {
		order, err := s.orders.Get(orderID)
		return err == nil && order.Status == want
	}, 2*time.Second, 5*time.Millisecond, "order %d did not reach %s", orderID, want)
}

func (s *OrderLifecycleTestSuite) TestPlacedOrderCompletes() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Laptop", Quantity: 1})
	s.Require().NoError(err)
	s.Equal(string(domain.OrderStatusCreated), placed.Order.Status)
	s.Equal(s.ownerID, placed.Order.CustomerID)

	s.waitForStatus(placed.Order.ID, domain.OrderStatusCompleted)
	s.Require().Eventually(func() bool { return s.engine.PendingTasks() == 0 }, time.Second, 5*time.Millisecond)

	got, err := s.service.GetOrder(s.as(s.ownerID), &grpcsvc.GetOrderRequest{OrderID: placed.Order.ID})
	s.Require().NoError(err)
	s.Equal(string(domain.OrderStatusCompleted), got.Order.Status)

	var reasons []string
	for _, event := range got.Timeline {
		if event.Type == domain.TimelineStatusChanged {
			reasons = append(reasons, event.Reason)
		}
	}
	s.Equal([]string{"CREATED -> PROCESSING", "PROCESSING -> COMPLETED"}, reasons)
}

func (s *OrderLifecycleTestSuite) TestUpdateAfterCompletionRestartsProcessing() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Mouse", Quantity: 1})
	s.Require().NoError(err)
	s.waitForStatus(placed.Order.ID, domain.OrderStatusCompleted)

	updated, err := s.service.UpdateOrder(s.as(s.ownerID), &grpcsvc.UpdateOrderRequest{
		OrderID:  placed.Order.ID,
		Product:  "Keyboard",
		Quantity: 2,
	})
	s.Require().NoError(err)
	s.Equal(string(domain.OrderStatusUpdated), updated.Order.Status)
	s.Greater(updated.Order.Version, placed.Order.Version)

	s.waitForStatus(placed.Order.ID, domain.OrderStatusCompleted)
	order, err := s.orders.Get(placed.Order.ID)
	s.Require().NoError(err)
	s.Equal("Keyboard", order.Product)
	s.EqualValues(2, order.Quantity)
}

func (s *OrderLifecycleTestSuite) TestDeletedOrderIsNotResurrected() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Chair", Quantity: 4})
	s.Require().NoError(err)
	s.waitForStatus(placed.Order.ID, domain.OrderStatusProcessing)

	_, err = s.service.DeleteOrder(s.as(s.ownerID), &grpcsvc.DeleteOrderRequest{OrderID: placed.Order.ID})
	s.Require().NoError(err)

	time.Sleep(2 * completionDelay)

	_, err = s.orders.Get(placed.Order.ID)
	s.ErrorIs(err, domain.ErrOrderNotFound)
	_, err = s.service.GetOrder(s.as(s.ownerID), &grpcsvc.GetOrderRequest{OrderID: placed.Order.ID})
	s.Equal(codes.NotFound, status.Code(err))
	s.Zero(s.engine.PendingTasks())
}

func (s *OrderLifecycleTestSuite) TestNonOwnerCannotTouchOrder() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Lamp", Quantity: 1})
	s.Require().NoError(err)

	_, err = s.service.UpdateOrder(s.as(s.otherID), &grpcsvc.UpdateOrderRequest{OrderID: placed.Order.ID, Product: "Stolen", Quantity: 9})
	s.Equal(codes.PermissionDenied, status.Code(err))
	_, err = s.service.DeleteOrder(s.as(s.otherID), &grpcsvc.DeleteOrderRequest{OrderID: placed.Order.ID})
	s.Equal(codes.PermissionDenied, status.Code(err))
	_, err = s.service.PlaceOrder(s.as(s.otherID), &grpcsvc.PlaceOrderRequest{CustomerID: s.ownerID, Product: "Gift", Quantity: 1})
	s.Equal(codes.PermissionDenied, status.Code(err))

	order, err := s.orders.Get(placed.Order.ID)
	s.Require().NoError(err)
	s.Equal("Lamp", order.Product)

	byAdmin, err := s.service.UpdateOrder(s.as(s.adminID), &grpcsvc.UpdateOrderRequest{OrderID: placed.Order.ID, Product: "Lamp XL", Quantity: 1})
	s.Require().NoError(err)
	s.Equal("Lamp XL", byAdmin.Order.Product)

	own, err := s.service.ListOrders(s.as(s.otherID), &grpcsvc.ListOrdersRequest{})
	s.Require().NoError(err)
	s.Empty(own.Orders)
	all, err := s.service.ListOrders(s.as(s.adminID), &grpcsvc.ListOrdersRequest{})
	s.Require().NoError(err)
	s.Len(all.Orders, 1)
}

func (s *OrderLifecycleTestSuite) TestCustomerDeletionRemovesOrders() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Desk", Quantity: 1})
	s.Require().NoError(err)

	s.Require().NoError(s.customers.DeleteAs(context.Background(), s.adminID, s.ownerID))

	_, err = s.orders.Get(placed.Order.ID)
	s.ErrorIs(err, domain.ErrOrderNotFound)
	time.Sleep(processingDelay + completionDelay)
	_, err = s.orders.Get(placed.Order.ID)
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *OrderLifecycleTestSuite) TestOutboxCarriesLifecycleEvents() {
	placed, err := s.service.PlaceOrder(s.as(s.ownerID), &grpcsvc.PlaceOrderRequest{Product: "Phone", Quantity: 1})
	s.Require().NoError(err)
	s.waitForStatus(placed.Order.ID, domain.OrderStatusCompleted)

	publisher := &recordingPublisher{}
	worker := outbox.NewWorker(s.outbox, publisher,
		outbox.WithRetryBaseDelay(0),
		outbox.WithBatchSize(100),
		outbox.WithRegisterer(prometheus.NewRegistry()),
	)
	result := worker.ProcessOnce(context.Background())
	s.Zero(result.Failed)
	s.Empty(s.outbox.AllPending())

	var orderEvents []string
	for _, event := range publisher.snapshot() {
		if event.AggregateType == "order" {
			orderEvents = append(orderEvents, event.EventType)
		}
	}
	s.Equal([]string{"order.placed", "order.status_changed", "order.status_changed"}, orderEvents)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) snapshot() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.events...)
}

func TestOrderLifecycleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite skipped in short mode")
	}
	suite.Run(t, new(OrderLifecycleTestSuite))
}
