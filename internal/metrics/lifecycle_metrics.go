package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины, по которым фоновый переход статуса был отброшен.
const (
	DiscardOrderDeleted   = "order_deleted"
	DiscardVersionChanged = "version_changed"
	DiscardCanceled       = "canceled"
	DiscardInvalidStatus  = "invalid_status"
	DiscardStoreError     = "store_error"
)

// LifecycleMetrics содержит метрики жизненного цикла заказов.
type LifecycleMetrics struct {
	ordersPlaced  prometheus.Counter
	ordersUpdated prometheus.Counter
	ordersDeleted prometheus.Counter

	transitions *prometheus.CounterVec
	discarded   *prometheus.CounterVec

	// Время от записи заказа клиентом до статуса COMPLETED.
	cycleDuration prometheus.Histogram

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	scheduledTasks prometheus.Gauge
}

// NewLifecycleMetrics создаёт метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer создаёт метрики в переданном реестре.
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_updated_total",
			Help: "Total number of orders updated by clients",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_transitions_total",
			Help: "Total number of background status transitions applied",
		}, []string{"status"}),
		discarded: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_transitions_discarded_total",
			Help: "Total number of background status transitions discarded",
		}, []string{"reason"}),
		cycleDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_order_cycle_duration_seconds",
			Help:    "Time from client write to completed status",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10, 15, 30, 60},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		scheduledTasks: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_order_scheduled_tasks",
			Help: "Number of orders with a pending background transition",
		}),
	}
}

// RecordOrderPlaced увеличивает счётчик созданных заказов.
func (m *LifecycleMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderUpdated увеличивает счётчик изменённых заказов.
func (m *LifecycleMetrics) RecordOrderUpdated() {
	m.ordersUpdated.Inc()
}

// RecordOrderDeleted увеличивает счётчик удалённых заказов.
func (m *LifecycleMetrics) RecordOrderDeleted() {
	m.ordersDeleted.Inc()
}

// RecordTransition фиксирует применённый фоновый переход.
func (m *LifecycleMetrics) RecordTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

// RecordDiscarded фиксирует отброшенный фоновый переход.
func (m *LifecycleMetrics) RecordDiscarded(reason string) {
	m.discarded.WithLabelValues(reason).Inc()
}

// RecordCycleDuration записывает полное время обработки заказа.
func (m *LifecycleMetrics) RecordCycleDuration(duration time.Duration) {
	m.cycleDuration.Observe(duration.Seconds())
}

// RecordTaskScheduled увеличивает количество активных фоновых задач.
func (m *LifecycleMetrics) RecordTaskScheduled() {
	m.scheduledTasks.Inc()
}

// RecordTaskFinished уменьшает количество активных фоновых задач.
func (m *LifecycleMetrics) RecordTaskFinished() {
	m.scheduledTasks.Dec()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LifecycleMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LifecycleMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
