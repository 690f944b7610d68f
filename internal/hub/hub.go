package hub

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dhkang/stock-hub/internal/wire"
)

// Hub owns the connection registry and the login/alarm binding, and wires
// them to the event bus. The session layer calls the lifecycle methods;
// the bus handlers do the fan-out.
type Hub struct {
	reg  *Registry
	bind *Binding

	clientsGauge     prometheus.Gauge
	broadcastsTotal  prometheus.Counter
	framesDropped    prometheus.Counter
	noticesDelivered prometheus.Counter
	noticesDropped   prometheus.Counter
}

// New creates a Hub and registers its metrics with reg.
func New(reg prometheus.Registerer) *Hub {
	factory := promauto.With(reg)
	return &Hub{
		reg:  NewRegistry(),
		bind: NewBinding(),
		clientsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stockhub_connected_clients",
			Help: "Number of connected websocket clients.",
		}),
		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockhub_broadcasts_total",
			Help: "Number of broadcast events fanned out.",
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockhub_frames_dropped_total",
			Help: "Number of outbound frames dropped on full client buffers.",
		}),
		noticesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockhub_notices_delivered_total",
			Help: "Number of personal notices delivered.",
		}),
		noticesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockhub_notices_dropped_total",
			Help: "Number of personal notices dropped (no bound connection).",
		}),
	}
}

// Attach subscribes the hub's handlers to the four bus topics. Called once
// at startup; the handlers persist for the process lifetime.
func (h *Hub) Attach(bus *Bus) {
	bus.Subscribe(TopicBroadcast, h.handleBroadcast)
	bus.Subscribe(TopicOrderAccepted, h.handleBroadcast)
	bus.Subscribe(TopicLoginUser, h.handleLogin)
	bus.Subscribe(TopicNotice, h.handleNotice)
}

// Connect registers a connection with empty subscription/alarm state,
// making it eligible for broadcasts.
func (h *Hub) Connect(c Conn) {
	h.reg.Register(c)
	h.clientsGauge.Set(float64(h.reg.Len()))
}

// Registered reports whether the connection is still in the registry.
func (h *Hub) Registered(c Conn) bool {
	return h.reg.Contains(c)
}

// Subscribe records the stock a connection wants full updates for.
// Harmless when the connection already disconnected.
func (h *Hub) Subscribe(c Conn, stockCode string) {
	h.reg.SetSubscription(c, stockCode)
}

// RegisterAlarm stores the token on the connection and, when the token
// resolves to a logged-in user, binds the connection as that user's notice
// target. An unresolvable token is not an error: the token stays on the
// connection so a later login can be claimed by re-sending it.
func (h *Hub) RegisterAlarm(c Conn, alarmToken string) {
	h.reg.SetAlarmToken(c, alarmToken)
	if userID, ok := h.bind.ResolveUserID(alarmToken); ok {
		h.bind.BindAlarmClient(userID, c)
	}
}

// Disconnect removes the connection from the registry and unwinds its
// alarm binding. The unbind only fires when the binding still points at
// this connection, so a superseded socket closing late cannot drop a live
// user's notice target.
func (h *Hub) Disconnect(c Conn) {
	state, ok := h.reg.Unregister(c)
	if !ok {
		return
	}
	h.clientsGauge.Set(float64(h.reg.Len()))

	if state.AlarmToken == "" {
		return
	}
	if userID, ok := h.bind.ResolveUserID(state.AlarmToken); ok {
		h.bind.UnbindAlarmClientIf(userID, c)
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	return h.reg.Len()
}

// handleBroadcast fans a trade update out to every registered connection:
// the full record to connections watching the stock, the Match digest to
// the rest. Both payloads are encoded once and shared across the snapshot.
func (h *Hub) handleBroadcast(event any) {
	ev, ok := event.(BroadcastEvent)
	if !ok {
		log.Printf("broadcast: unexpected event %T", event)
		return
	}

	full, err := wire.Encode(wire.TypeUpdateTarget, ev.Update)
	if err != nil {
		log.Printf("broadcast %s: %v", ev.StockCode, err)
		return
	}
	digest, err := wire.Encode(wire.TypeUpdateStock, ev.Update.Match)
	if err != nil {
		log.Printf("broadcast %s: %v", ev.StockCode, err)
		return
	}

	for _, entry := range h.reg.Snapshot() {
		frame := digest
		if entry.State.StockCode == ev.StockCode {
			frame = full
		}
		if !entry.Conn.Send(frame) {
			h.framesDropped.Inc()
		}
	}
	h.broadcastsTotal.Inc()
}

// handleLogin records the token -> user mapping reported by the auth layer.
func (h *Hub) handleLogin(event any) {
	ev, ok := event.(LoginEvent)
	if !ok {
		log.Printf("loginUser: unexpected event %T", event)
		return
	}
	h.bind.BindLogin(ev.UserID, ev.AlarmToken)
}

// handleNotice delivers a personal message to the user's bound connection.
// With no binding the notice is dropped: not queued, not retried.
func (h *Hub) handleNotice(event any) {
	ev, ok := event.(NoticeEvent)
	if !ok {
		log.Printf("notice: unexpected event %T", event)
		return
	}

	c, ok := h.bind.ResolveAlarmClient(ev.UserID)
	if !ok {
		h.noticesDropped.Inc()
		return
	}

	frame, err := wire.Encode(wire.TypeNotice, ev.Message)
	if err != nil {
		log.Printf("notice for user %d: %v", ev.UserID, err)
		return
	}
	if c.Send(frame) {
		h.noticesDelivered.Inc()
	} else {
		h.framesDropped.Inc()
	}
}
