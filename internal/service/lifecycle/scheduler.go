package lifecycle

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
)

// task: фоновая задача заказа и её cancel-хендл.
type task struct {
	seq    uint64
	cancel context.CancelFunc
}

// Scheduler запускает не более одной фоновой задачи на заказ.
// Повторное планирование отменяет предыдущую задачу того же заказа.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[int64]*task
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
	baseCtx context.Context
	stopAll context.CancelFunc
	logger  *log.Entry
	metrics *metrics.LifecycleMetrics
}

// NewScheduler создаёт планировщик фоновых задач.
func NewScheduler(logger *log.Entry, m *metrics.LifecycleMetrics) *Scheduler {
	if logger == nil {
		logger = log.WithField("component", "lifecycle-scheduler")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:   make(map[int64]*task),
		baseCtx: ctx,
		stopAll: cancel,
		logger:  logger,
		metrics: m,
	}
}

// Schedule запускает fn для заказа. Возвращает false после Shutdown.
func (s *Scheduler) Schedule(orderID int64, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if prev, ok := s.tasks[orderID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.seq++
	t := &task{seq: s.seq, cancel: cancel}
	s.tasks[orderID] = t
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTaskScheduled()
	}

	go func() {
		defer s.wg.Done()
		defer s.finish(orderID, t)
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(log.Fields{
					"order_id": orderID,
					"panic":    r,
				}).Error("lifecycle task panicked")
			}
		}()
		fn(ctx)
	}()
	return true
}

// Cancel отменяет задачу заказа, если она есть.
func (s *Scheduler) Cancel(orderID int64) bool {
	s.mu.Lock()
	t, ok := s.tasks[orderID]
	if ok {
		delete(s.tasks, orderID)
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
	}
	return ok
}

// Pending сообщает, есть ли у заказа незавершённая задача.
func (s *Scheduler) Pending(orderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[orderID]
	return ok
}

// Len возвращает число активных задач.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown перестаёт принимать задачи и ждёт завершения текущих.
// По истечении ctx оставшиеся задачи отменяются.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.stopAll()
		return nil
	case <-ctx.Done():
		s.logger.WithField("pending", s.Len()).Warn("shutdown deadline reached, canceling lifecycle tasks")
		s.stopAll()
		<-done
		return ctx.Err()
	}
}

func (s *Scheduler) finish(orderID int64, t *task) {
	s.mu.Lock()
	if current, ok := s.tasks[orderID]; ok && current.seq == t.seq {
		delete(s.tasks, orderID)
	}
	s.mu.Unlock()

	t.cancel()
	if s.metrics != nil {
		s.metrics.RecordTaskFinished()
	}
}
