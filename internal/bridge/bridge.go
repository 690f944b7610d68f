// Package bridge feeds domain events from sibling services into the hub's
// event bus. The order and auth services publish JSON payloads on Redis
// pub/sub channels; the bridge decodes them and republishes typed events.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/dhkang/stock-hub/internal/hub"
)

// Redis channels the bridge listens on.
const (
	ChannelBroadcast     = "stock-hub:broadcast"
	ChannelOrderAccepted = "stock-hub:order-accepted"
	ChannelLogin         = "stock-hub:login"
	ChannelNotice        = "stock-hub:notice"
)

// Bridge subscribes to the domain channels and publishes onto the bus.
type Bridge struct {
	rdb *redis.Client
	bus *hub.Bus
}

// New creates a Bridge and verifies the Redis connection.
func New(ctx context.Context, addr, password string, db int, bus *hub.Bus) (*Bridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Printf("connected to Redis (%s)", addr)
	return &Bridge{rdb: rdb, bus: bus}, nil
}

// Run consumes domain events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx,
		ChannelBroadcast, ChannelOrderAccepted, ChannelLogin, ChannelNotice)
	defer pubsub.Close()

	log.Println("bridge subscribed to domain channels")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	return b.rdb.Close()
}

// dispatch decodes one payload and publishes it on the matching topic.
// A malformed payload is logged and skipped; one bad producer must not
// stall the feed.
func (b *Bridge) dispatch(channel string, payload []byte) {
	switch channel {
	case ChannelBroadcast, ChannelOrderAccepted:
		ev, err := ParseBroadcast(payload)
		if err != nil {
			log.Printf("bridge %s: %v", channel, err)
			return
		}
		topic := hub.TopicBroadcast
		if channel == ChannelOrderAccepted {
			topic = hub.TopicOrderAccepted
		}
		b.bus.Publish(topic, ev)

	case ChannelLogin:
		ev, err := ParseLogin(payload)
		if err != nil {
			log.Printf("bridge %s: %v", channel, err)
			return
		}
		b.bus.Publish(hub.TopicLoginUser, ev)

	case ChannelNotice:
		ev, err := ParseNotice(payload)
		if err != nil {
			log.Printf("bridge %s: %v", channel, err)
			return
		}
		b.bus.Publish(hub.TopicNotice, ev)

	default:
		log.Printf("bridge: unexpected channel %s", channel)
	}
}

// ParseBroadcast decodes a broadcast/order-accepted payload.
func ParseBroadcast(payload []byte) (hub.BroadcastEvent, error) {
	var ev hub.BroadcastEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return hub.BroadcastEvent{}, fmt.Errorf("decode broadcast: %w", err)
	}
	if ev.StockCode == "" {
		return hub.BroadcastEvent{}, fmt.Errorf("broadcast without stockCode")
	}
	return ev, nil
}

// ParseLogin decodes a login payload.
func ParseLogin(payload []byte) (hub.LoginEvent, error) {
	var ev hub.LoginEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return hub.LoginEvent{}, fmt.Errorf("decode login: %w", err)
	}
	if ev.AlarmToken == "" {
		return hub.LoginEvent{}, fmt.Errorf("login without alarmToken")
	}
	return ev, nil
}

// ParseNotice decodes a notice payload.
func ParseNotice(payload []byte) (hub.NoticeEvent, error) {
	var ev hub.NoticeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return hub.NoticeEvent{}, fmt.Errorf("decode notice: %w", err)
	}
	return ev, nil
}
