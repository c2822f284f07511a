package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
)

const (
	// DefaultProcessingDelay: пауза перед переводом в PROCESSING.
	DefaultProcessingDelay = 3 * time.Second
	// DefaultCompletionDelay: пауза перед переводом в COMPLETED.
	DefaultCompletionDelay = 3 * time.Second

	updateMaxRetries = 3
)

// Options задаёт зависимости и параметры движка.
type Options struct {
	Timeline        domain.TimelineRepository
	Outbox          domain.OutboxRepository
	Logger          *log.Entry
	Metrics         *metrics.LifecycleMetrics
	ProcessingDelay time.Duration
	CompletionDelay time.Duration
	Clock           func() time.Time
}

// Option настраивает Engine.
type Option func(*Options)

// WithTimeline включает запись истории заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(opts *Options) {
		opts.Timeline = repo
	}
}

// WithOutbox включает постановку событий в transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = repo
	}
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики жизненного цикла.
func WithMetrics(m *metrics.LifecycleMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithDelays задаёт паузы фоновых переходов.
func WithDelays(processing, completion time.Duration) Option {
	return func(opts *Options) {
		opts.ProcessingDelay = processing
		opts.CompletionDelay = completion
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// Engine управляет заказами и их асинхронным жизненным циклом.
type Engine struct {
	orders          domain.OrderRepository
	customers       domain.CustomerRepository
	timeline        domain.TimelineRepository
	outbox          domain.OutboxRepository
	scheduler       *Scheduler
	logger          *log.Entry
	metrics         *metrics.LifecycleMetrics
	processingDelay time.Duration
	completionDelay time.Duration
	now             func() time.Time
}

// NewEngine создаёт движок жизненного цикла заказов.
func NewEngine(orders domain.OrderRepository, customers domain.CustomerRepository, options ...Option) *Engine {
	opts := Options{
		ProcessingDelay: DefaultProcessingDelay,
		CompletionDelay: DefaultCompletionDelay,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-lifecycle")
	}
	if opts.ProcessingDelay < 0 {
		opts.ProcessingDelay = 0
	}
	if opts.CompletionDelay < 0 {
		opts.CompletionDelay = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		orders:          orders,
		customers:       customers,
		timeline:        opts.Timeline,
		outbox:          opts.Outbox,
		scheduler:       NewScheduler(logger.WithField("part", "scheduler"), opts.Metrics),
		logger:          logger,
		metrics:         opts.Metrics,
		processingDelay: opts.ProcessingDelay,
		completionDelay: opts.CompletionDelay,
		now:             clock,
	}
}

// Place создаёт заказ в статусе CREATED и планирует его обработку.
func (e *Engine) Place(ctx context.Context, customerID, product string, quantity int32) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		CustomerID: strings.TrimSpace(customerID),
		Product:    strings.TrimSpace(product),
		Quantity:   quantity,
		Status:     domain.OrderStatusCreated,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	exists, err := e.customers.ExistsByCustomerID(order.CustomerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("check customer %s: %w", order.CustomerID, err)
	}
	if !exists {
		return domain.Order{}, domain.ErrCustomerNotFound
	}

	now := e.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	created, err := e.orders.Create(order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	// Клиента могли удалить между проверкой и записью заказа.
	if exists, err := e.customers.ExistsByCustomerID(created.CustomerID); err == nil && !exists {
		if delErr := e.orders.Delete(created.ID); delErr != nil && !errors.Is(delErr, domain.ErrOrderNotFound) {
			e.logger.WithError(delErr).WithField("order_id", created.ID).Error("failed to drop order of deleted customer")
		}
		return domain.Order{}, domain.ErrCustomerNotFound
	}

	if e.metrics != nil {
		e.metrics.RecordOrderPlaced()
	}
	e.logger.WithFields(log.Fields{
		"order_id":    created.ID,
		"customer_id": created.CustomerID,
	}).Info("order placed")
	e.emit(created, domain.TimelineOrderPlaced, "", eventOrderPlaced)
	e.schedule(created)
	return created, nil
}

// Update перезаписывает товар и количество, переводит заказ в UPDATED и
// перезапускает обработку. Проверка прав выполняется вызывающей стороной.
// Отклонённое обновление не трогает запланированную обработку: прежняя задача
// снимается только новым Schedule после успешной записи.
func (e *Engine) Update(ctx context.Context, orderID int64, product string, quantity int32) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	product = strings.TrimSpace(product)
	if errs := domain.ValidateOrderLine(product, quantity); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	var lastErr error
	for attempt := 1; attempt <= updateMaxRetries; attempt++ {
		current, err := e.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		current.Product = product
		current.Quantity = quantity
		current.Status = domain.OrderStatusUpdated
		current.UpdatedAt = e.now()
		if errs := current.ValidateInvariants(); len(errs) > 0 {
			return domain.Order{}, errors.Join(errs...)
		}

		saved, err := e.orders.Save(current)
		if err == nil {
			if e.metrics != nil {
				e.metrics.RecordOrderUpdated()
			}
			e.logger.WithFields(log.Fields{
				"order_id": saved.ID,
				"version":  saved.Version,
			}).Info("order updated")
			e.emit(saved, domain.TimelineOrderUpdated, "", eventOrderUpdated)
			e.schedule(saved)
			return saved, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Order{}, fmt.Errorf("save order %d: %w", orderID, err)
		}

		lastErr = err
		e.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt,
		}).Warn("version conflict on update, retrying")
	}
	return domain.Order{}, fmt.Errorf("update order %d: %w", orderID, lastErr)
}

// Get возвращает заказ по идентификатору.
func (e *Engine) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	return e.orders.Get(orderID)
}

// List возвращает все заказы.
func (e *Engine) List(ctx context.Context, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.orders.List(limit)
}

// ListByCustomer возвращает заказы клиента.
func (e *Engine) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.orders.ListByCustomer(customerID, limit)
}

// IsOwnedBy сообщает, существует ли заказ с указанным владельцем.
func (e *Engine) IsOwnedBy(orderID int64, customerID string) bool {
	order, err := e.orders.Get(orderID)
	if err != nil {
		return false
	}
	return order.CustomerID == customerID
}

// Timeline возвращает историю заказа.
func (e *Engine) Timeline(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := e.orders.Get(orderID); err != nil {
		return nil, err
	}
	if e.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return e.timeline.List(orderID)
}

// Delete отменяет фоновую задачу и удаляет заказ.
func (e *Engine) Delete(ctx context.Context, orderID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.scheduler.Cancel(orderID)

	order, err := e.orders.Get(orderID)
	if err != nil {
		return err
	}
	if err := e.orders.Delete(orderID); err != nil {
		return err
	}

	if e.timeline != nil {
		if err := e.timeline.DeleteByOrder(orderID); err != nil {
			e.logger.WithError(err).WithField("order_id", orderID).Warn("failed to clear order timeline")
		}
	}
	if e.metrics != nil {
		e.metrics.RecordOrderDeleted()
	}
	e.logger.WithField("order_id", orderID).Info("order deleted")
	e.publish(order, eventOrderDeleted)
	return nil
}

// DeleteByCustomer удаляет все заказы клиента.
func (e *Engine) DeleteByCustomer(ctx context.Context, customerID string) error {
	orders, err := e.ListByCustomer(ctx, customerID, 0)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := e.Delete(ctx, order.ID); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return fmt.Errorf("delete order %d: %w", order.ID, err)
		}
	}
	return nil
}

// PendingTasks возвращает число заказов с незавершённой обработкой.
func (e *Engine) PendingTasks() int {
	return e.scheduler.Len()
}

// Shutdown дожидается фоновых задач; по истечении ctx отменяет их.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.scheduler.Shutdown(ctx)
}

func (e *Engine) schedule(order domain.Order) {
	if !e.scheduler.Schedule(order.ID, e.progress(order)) {
		e.logger.WithField("order_id", order.ID).Warn("scheduler is closed, order left unprocessed")
	}
}

// progress проводит заказ через PROCESSING в COMPLETED.
// Каждая запись применяется, только если заказ существует и его версия не менялась.
func (e *Engine) progress(order domain.Order) func(ctx context.Context) {
	return func(ctx context.Context) {
		started := order.UpdatedAt
		observed := order.Version
		for _, delay := range []time.Duration{e.processingDelay, e.completionDelay} {
			if !sleep(ctx, delay) {
				e.discard(order.ID, metrics.DiscardCanceled, nil)
				return
			}
			saved, ok := e.advance(ctx, order.ID, observed)
			if !ok {
				return
			}
			observed = saved.Version
			if saved.Status.IsTerminal() {
				if e.metrics != nil {
					e.metrics.RecordCycleDuration(e.now().Sub(started))
				}
				return
			}
		}
	}
}

func (e *Engine) advance(ctx context.Context, orderID, observedVersion int64) (domain.Order, bool) {
	current, err := e.orders.Get(orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			e.discard(orderID, metrics.DiscardOrderDeleted, nil)
		} else {
			e.discard(orderID, metrics.DiscardStoreError, err)
		}
		return domain.Order{}, false
	}
	if current.Version != observedVersion {
		e.discard(orderID, metrics.DiscardVersionChanged, nil)
		return domain.Order{}, false
	}
	next, ok := current.Status.Next()
	if !ok {
		e.discard(orderID, metrics.DiscardInvalidStatus, nil)
		return domain.Order{}, false
	}
	if ctx.Err() != nil {
		e.discard(orderID, metrics.DiscardCanceled, nil)
		return domain.Order{}, false
	}

	previous := current.Status
	current.Status = next
	current.UpdatedAt = e.now()
	saved, err := e.orders.Save(current)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOrderNotFound):
		e.discard(orderID, metrics.DiscardOrderDeleted, nil)
		return domain.Order{}, false
	case domain.IsVersionConflict(err):
		e.discard(orderID, metrics.DiscardVersionChanged, nil)
		return domain.Order{}, false
	default:
		e.discard(orderID, metrics.DiscardStoreError, err)
		return domain.Order{}, false
	}

	if e.metrics != nil {
		e.metrics.RecordTransition(string(next))
	}
	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     previous,
		"to":       next,
	}).Debug("order status advanced")
	e.emit(saved, domain.TimelineStatusChanged, fmt.Sprintf("%s -> %s", previous, next), eventOrderStatusChanged)
	return saved, true
}

func (e *Engine) discard(orderID int64, reason string, err error) {
	if e.metrics != nil {
		e.metrics.RecordDiscarded(reason)
	}
	entry := e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"reason":   reason,
	})
	if err != nil {
		entry.WithError(err).Warn("status transition discarded")
		return
	}
	entry.Debug("status transition discarded")
}

// sleep ждёт delay и возвращает false, если ctx отменён раньше.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
