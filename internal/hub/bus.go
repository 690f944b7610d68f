package hub

import (
	"sync"

	"github.com/dhkang/stock-hub/internal/wire"
)

// Topic names recognized by the event bus. "order accepted" carries the
// same payload as "broadcast" and is handled identically.
type Topic string

const (
	TopicBroadcast     Topic = "broadcast"
	TopicLoginUser     Topic = "loginUser"
	TopicOrderAccepted Topic = "order accepted"
	TopicNotice        Topic = "notice"
)

// BroadcastEvent is published by the order layer when a trade executes.
type BroadcastEvent struct {
	StockCode string      `json:"stockCode"`
	Update    wire.Update `json:"msg"`
}

// LoginEvent is published by the auth layer on successful login.
type LoginEvent struct {
	UserID     int64  `json:"userId"`
	AlarmToken string `json:"alarmToken"`
}

// NoticeEvent is published by the domain layer to alert one user.
type NoticeEvent struct {
	UserID  int64 `json:"userId"`
	Message any   `json:"msg"`
}

// HandlerFunc consumes one published event.
type HandlerFunc func(event any)

// Bus is the process-wide publish/subscribe dispatcher. Handlers are
// registered once at startup and live for the process lifetime; producers
// hold a reference to the bus rather than any ambient global.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]HandlerFunc
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]HandlerFunc)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, h HandlerFunc) {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], h)
	b.mu.Unlock()
}

// Publish delivers an event to every handler of the topic, synchronously
// and in registration order. Unknown topics are a no-op.
func (b *Bus) Publish(topic Topic, event any) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
