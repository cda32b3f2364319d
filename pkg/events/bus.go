/**
 * Package events 提供事件总线实现
 *
 * EventBus 是发布-订阅模式的核心实现，支持：
 * - 按类型订阅和通配符订阅
 * - 每个订阅者独立的无界有序队列
 * - 中间件链
 * - 优雅关闭
 */

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chenyang-zz/capsflow/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusStopped 总线已停止
var ErrBusStopped = errors.New("event bus is stopped")

/**
 * EventHandler 事件处理函数类型
 *
 * Parameters:
 *   - event: 事件对象
 *
 * Returns:
 *   - error: 处理过程中的错误
 */
type EventHandler func(event Event) error

/**
 * EventFilter 事件过滤器函数类型
 *
 * 返回 true 表示事件应该被处理，false 表示跳过
 */
type EventFilter func(event Event) bool

/**
 * Middleware 中间件类型
 *
 * 中间件可以包装事件处理函数，添加日志、恢复等功能
 */
type Middleware func(EventHandler) EventHandler

/**
 * Subscriber 订阅者信息
 *
 * 事件先进入订阅者自己的队列，再由专属 goroutine 按发布顺序处理。
 * 队列不设上限，发布方永远不会因为慢订阅者而阻塞或丢事件。
 */
type Subscriber struct {
	// ID 订阅者唯一标识
	ID string

	// Handler 事件处理函数
	Handler EventHandler

	// Filter 事件过滤器（可选）
	Filter EventFilter

	// mu 保护 queue 和 closed
	mu sync.Mutex

	// queue 待处理事件
	queue []Event

	// closed 取消订阅后置位，之后入队和出队都失效
	closed bool

	// draining 队列处理完后自动关闭
	draining bool

	// notify 有新事件或关闭时的唤醒信号
	notify chan struct{}
}

func newSubscriber(handler EventHandler, filter EventFilter) *Subscriber {
	return &Subscriber{
		ID:      generateSubscriberID(),
		Handler: handler,
		Filter:  filter,
		notify:  make(chan struct{}, 1),
	}
}

// enqueue 追加事件，订阅者已关闭时返回 false
func (s *Subscriber) enqueue(event Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	s.wake()
	return true
}

// next 取出队首事件
//
// Returns: 事件、是否取到、订阅者是否已关闭
func (s *Subscriber) next() (Event, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Event{}, false, true
	}
	if len(s.queue) == 0 {
		if s.draining {
			s.closed = true
			return Event{}, false, true
		}
		return Event{}, false, false
	}

	event := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return event, true, false
}

// Pending 返回尚未处理的事件数量
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// close 关闭订阅者，丢弃尚未处理的事件
func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.wake()
}

// drain 不再接收新订阅，队列处理完后关闭
func (s *Subscriber) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.wake()
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

/**
 * EventBus 事件总线
 *
 * 核心的发布-订阅系统实现
 */
type EventBus struct {
	// subscribers 订阅者映射：事件类型 -> 订阅者列表
	subscribers map[string][]*Subscriber

	// mutex 保护 subscribers 和 middleware 的读写锁
	mutex sync.RWMutex

	// wg 等待组，用于优雅关闭
	wg sync.WaitGroup

	// stopChan 停止信号通道
	stopChan chan struct{}

	// middleware 中间件链
	middleware []Middleware

	// stopped 原子标志，标记总线是否已停止
	stopped atomic.Bool

	// syncDelivery 在发布方 goroutine 中直接调用处理函数
	syncDelivery bool
}

/**
 * NewEventBus 创建新的事件总线
 *
 * Parameters:
 *   - opts: 配置选项（可选）
 *
 * Returns:
 *   - *EventBus: 新创建的事件总线
 */
func NewEventBus(opts ...Option) *EventBus {
	bus := &EventBus{
		subscribers: make(map[string][]*Subscriber),
		stopChan:    make(chan struct{}),
		middleware:  make([]Middleware, 0),
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

/**
 * Option 配置选项类型
 */
type Option func(*EventBus)

/**
 * WithSyncDelivery 同步交付
 *
 * Publish 在调用方 goroutine 中依次执行处理函数后才返回，主要用于测试。
 */
func WithSyncDelivery() Option {
	return func(bus *EventBus) {
		bus.syncDelivery = true
	}
}

/**
 * Subscribe 订阅事件
 *
 * Parameters:
 *   - eventType: 事件类型，使用 "*" 订阅所有事件
 *   - handler: 事件处理函数
 *
 * Returns:
 *   - string: 订阅者 ID，用于取消订阅
 */
func (bus *EventBus) Subscribe(eventType EventType, handler EventHandler) string {
	return bus.SubscribeWithFilter(eventType, handler, nil)
}

/**
 * SubscribeWithFilter 带过滤器订阅事件
 *
 * Parameters:
 *   - eventType: 事件类型
 *   - handler: 事件处理函数
 *   - filter: 事件过滤器（可选）
 *
 * Returns:
 *   - string: 订阅者 ID
 */
func (bus *EventBus) SubscribeWithFilter(
	eventType EventType,
	handler EventHandler,
	filter EventFilter,
) string {
	subscriber := newSubscriber(handler, filter)

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	key := string(eventType)
	bus.subscribers[key] = append(bus.subscribers[key], subscriber)

	logger.Debug("订阅事件",
		zap.String("component", "event_bus"),
		zap.String("event_type", key),
		zap.String("subscriber_id", subscriber.ID),
	)

	if !bus.syncDelivery && !bus.stopped.Load() {
		bus.wg.Add(1)
		go bus.processSubscriber(subscriber)
	}

	return subscriber.ID
}

/**
 * Unsubscribe 取消订阅
 *
 * 返回后该订阅者不会再处理任何事件，队列中未处理的事件被丢弃。
 *
 * Parameters:
 *   - subscriberID: 订阅者 ID
 *
 * Returns:
 *   - bool: 订阅者是否存在
 */
func (bus *EventBus) Unsubscribe(subscriberID string) bool {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	for eventType, subscribers := range bus.subscribers {
		for i, sub := range subscribers {
			if sub.ID != subscriberID {
				continue
			}

			bus.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			if len(bus.subscribers[eventType]) == 0 {
				delete(bus.subscribers, eventType)
			}
			sub.close()

			logger.Debug("取消订阅",
				zap.String("component", "event_bus"),
				zap.String("event_type", eventType),
				zap.String("subscriber_id", subscriberID),
			)
			return true
		}
	}

	logger.Debug("订阅者不存在，无法取消订阅",
		zap.String("component", "event_bus"),
		zap.String("subscriber_id", subscriberID),
	)
	return false
}

/**
 * Retire 退役订阅者
 *
 * 与 Unsubscribe 不同，已经入队的事件仍会按顺序处理完，之后订阅者才关闭。
 * 退役后的发布不再投递给它。同步模式下等同于 Unsubscribe。
 *
 * Parameters:
 *   - subscriberID: 订阅者 ID
 *
 * Returns:
 *   - bool: 订阅者是否存在
 */
func (bus *EventBus) Retire(subscriberID string) bool {
	if bus.syncDelivery || bus.stopped.Load() {
		return bus.Unsubscribe(subscriberID)
	}

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	for eventType, subscribers := range bus.subscribers {
		for i, sub := range subscribers {
			if sub.ID != subscriberID {
				continue
			}

			bus.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			if len(bus.subscribers[eventType]) == 0 {
				delete(bus.subscribers, eventType)
			}
			sub.drain()

			logger.Debug("订阅者退役",
				zap.String("component", "event_bus"),
				zap.String("event_type", eventType),
				zap.String("subscriber_id", subscriberID),
				zap.Int("pending", sub.Pending()),
			)
			return true
		}
	}
	return false
}

/**
 * Publish 发布事件
 *
 * 异步模式下只入队，不等待处理；同步模式下依次执行处理函数。
 *
 * Parameters:
 *   - event: 事件对象
 *
 * Returns:
 *   - error: 总线已停止时返回 ErrBusStopped
 */
func (bus *EventBus) Publish(event Event) error {
	if bus.stopped.Load() {
		logger.Warn("事件总线已停止，无法发布事件",
			zap.String("component", "event_bus"),
			zap.String("event_type", string(event.Type)),
		)
		return ErrBusStopped
	}

	bus.mutex.RLock()
	subscribers := bus.getSubscribers(string(event.Type))
	bus.mutex.RUnlock()

	subscriberCount := 0
	for _, subscriber := range subscribers {
		if subscriber.Filter != nil && !subscriber.Filter(event) {
			continue
		}

		if bus.syncDelivery {
			if subscriber.isClosed() {
				continue
			}
			bus.handle(subscriber, event)
			subscriberCount++
			continue
		}

		if subscriber.enqueue(event) {
			subscriberCount++
		}
	}

	logger.Debug("事件已发送",
		zap.String("component", "event_bus"),
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.Int("subscriber_count", subscriberCount),
	)

	return nil
}

/**
 * Use 添加中间件
 *
 * 中间件按添加顺序执行
 *
 * Parameters:
 *   - middleware: 中间件函数
 */
func (bus *EventBus) Use(middleware Middleware) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.middleware = append(bus.middleware, middleware)
}

/**
 * Stop 优雅停止事件总线
 *
 * 通知所有订阅者 goroutine 退出并等待，重复调用直接返回。
 *
 * Parameters:
 *   - timeout: 超时时间
 *
 * Returns:
 *   - error: 超时返回错误
 */
func (bus *EventBus) Stop(timeout time.Duration) error {
	if !bus.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(bus.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		bus.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for event bus to stop")
	}
}

/**
 * processSubscriber 处理订阅者事件
 *
 * 在独立的 goroutine 中运行，按入队顺序逐个处理
 *
 * Parameters:
 *   - subscriber: 订阅者对象
 */
func (bus *EventBus) processSubscriber(subscriber *Subscriber) {
	defer bus.wg.Done()

	for {
		select {
		case <-subscriber.notify:
		case <-bus.stopChan:
			return
		}

		for {
			event, ok, closed := subscriber.next()
			if closed {
				return
			}
			if !ok {
				break
			}
			bus.handle(subscriber, event)
		}
	}
}

// handle 经过中间件链调用订阅者的处理函数
func (bus *EventBus) handle(subscriber *Subscriber, event Event) {
	bus.mutex.RLock()
	handler := bus.applyMiddleware(subscriber.Handler)
	bus.mutex.RUnlock()

	if err := handler(event); err != nil {
		logger.Error("事件处理错误",
			zap.String("component", "event_bus"),
			zap.String("subscriber_id", subscriber.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

/**
 * getSubscribers 获取事件类型的所有订阅者
 *
 * 包括通配符订阅者，调用方需持有读锁
 */
func (bus *EventBus) getSubscribers(eventType string) []*Subscriber {
	subscribers := make([]*Subscriber, 0, len(bus.subscribers[eventType])+len(bus.subscribers["*"]))
	subscribers = append(subscribers, bus.subscribers[eventType]...)
	subscribers = append(subscribers, bus.subscribers["*"]...)
	return subscribers
}

/**
 * applyMiddleware 应用中间件链，调用方需持有读锁
 */
func (bus *EventBus) applyMiddleware(handler EventHandler) EventHandler {
	// 洋葱模型：先添加的中间件在最外层
	for i := len(bus.middleware) - 1; i >= 0; i-- {
		handler = bus.middleware[i](handler)
	}
	return handler
}

func generateSubscriberID() string {
	return "sub-" + uuid.New().String()
}

/**
 * RecoveryMiddleware 恢复中间件
 *
 * 防止事件处理函数中的 panic 导致程序崩溃
 */
func RecoveryMiddleware() Middleware {
	return func(next EventHandler) EventHandler {
		return func(event Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(event)
		}
	}
}

/**
 * LoggingMiddleware 日志中间件
 *
 * 在 Debug 级别记录每次事件处理
 *
 * Parameters:
 *   - log: 日志记录器，为 nil 时使用全局 logger
 */
func LoggingMiddleware(log *zap.Logger) Middleware {
	return func(next EventHandler) EventHandler {
		return func(event Event) error {
			l := log
			if l == nil {
				l = logger.GetLogger()
			}
			l.Debug("处理事件",
				zap.String("component", "event_bus"),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
			)
			return next(event)
		}
	}
}
