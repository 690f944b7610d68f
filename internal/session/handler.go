package session

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhkang/stock-hub/internal/hub"
	"github.com/dhkang/stock-hub/internal/stock"
	"github.com/dhkang/stock-hub/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	fetchTimeout   = 5 * time.Second
)

// errUnknownRequest is the fixed reply for request types the hub does not
// recognize. The connection stays open.
const errUnknownRequest = "unknown request type"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler drives the per-connection lifecycle: the connect push, request
// dispatch while the connection is active, and cleanup on close.
type Handler struct {
	hub        *hub.Hub
	stocks     stock.Service
	bufferSize int
}

// NewHandler creates a connection lifecycle handler.
func NewHandler(h *hub.Hub, stocks stock.Service, bufferSize int) *Handler {
	return &Handler{hub: h, stocks: stocks, bufferSize: bufferSize}
}

// HandlerFunc returns the HTTP handler for websocket upgrades.
func (h *Handler) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}

		client := NewClient(conn, h.bufferSize)

		go writePump(client)
		go h.run(client)
	}
}

// run owns the connection from connect to close.
func (h *Handler) run(c *Client) {
	defer func() {
		h.hub.Disconnect(c)
		c.Close()
	}()

	// Push the stock snapshot before the connection becomes eligible for
	// broadcasts. If the fetch fails the connection is closed without ever
	// being registered: half-initialized clients would see broadcasts but
	// have no stock list to apply them to.
	if err := h.connect(c); err != nil {
		log.Printf("client %s connect failed: %v", c.ID, err)
		return
	}

	h.readPump(c)
}

// connect fetches the current stock snapshot, pushes it, and registers the
// connection.
func (h *Handler) connect(c *Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	snapshot, err := h.stocks.CurrentSnapshot(ctx)
	if err != nil {
		return err
	}

	frame, err := wire.Encode(wire.TypeStocksInfo, snapshot)
	if err != nil {
		return err
	}
	c.Send(frame)

	h.hub.Connect(c)
	log.Printf("client %s connected (%s)", c.ID, c.Conn.RemoteAddr())
	return nil
}

// readPump processes incoming requests until the connection closes.
func (h *Handler) readPump(c *Client) {
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("client %s read error: %v", c.ID, err)
			}
			log.Printf("client %s disconnected", c.ID)
			return
		}

		req, err := wire.DecodeRequest(message)
		if err != nil {
			log.Printf("client %s invalid frame: %v", c.ID, err)
			h.sendError(c)
			continue
		}

		switch req.Type {
		case wire.TypeOpen:
			if err := h.handleOpen(c, req.StockCode); err != nil {
				log.Printf("client %s open %s: %v", c.ID, req.StockCode, err)
			}
		case wire.TypeAlarm:
			h.hub.RegisterAlarm(c, req.AlarmToken)
		default:
			h.sendError(c)
		}
	}
}

// handleOpen replies with the recent trade history for a stock and records
// the connection's subscription. Skipped entirely when the connection lost
// the race with its own disconnect. A fetch failure aborts this request
// only; the connection stays active.
func (h *Handler) handleOpen(c *Client, stockCode string) error {
	if !h.hub.Registered(c) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	conclusions, err := h.stocks.RecentTrades(ctx, stockCode)
	if err != nil {
		return err
	}

	h.hub.Subscribe(c, stockCode)

	frame, err := wire.Encode(wire.TypeBaseStock, wire.BaseStock{
		Conclusions: conclusions,
		Charts:      []any{},
	})
	if err != nil {
		return err
	}
	c.Send(frame)
	return nil
}

// sendError pushes the fixed error envelope to the client.
func (h *Handler) sendError(c *Client) {
	frame, err := wire.Encode(wire.TypeError, errUnknownRequest)
	if err != nil {
		log.Printf("client %s encode error frame: %v", c.ID, err)
		return
	}
	c.Send(frame)
}

// writePump sends frames from the send channel to the websocket.
func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.SendCh():
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done():
			return
		}
	}
}
