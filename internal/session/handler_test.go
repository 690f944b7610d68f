package session

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhkang/stock-hub/internal/hub"
	"github.com/dhkang/stock-hub/internal/stock"
	"github.com/dhkang/stock-hub/internal/wire"
)

// stubService is a canned stock.Service.
type stubService struct {
	snapshot    []stock.Summary
	snapshotErr error
	trades      []stock.Conclusion
	tradesErr   error
}

func (s *stubService) CurrentSnapshot(context.Context) ([]stock.Summary, error) {
	return s.snapshot, s.snapshotErr
}

func (s *stubService) RecentTrades(context.Context, string) ([]stock.Conclusion, error) {
	return s.trades, s.tradesErr
}

func defaultStub() *stubService {
	return &stubService{
		snapshot: []stock.Summary{
			{Code: "005930", NameKorean: "삼성전자", Price: 71200, PreviousClose: 70900},
			{Code: "000660", NameKorean: "SK하이닉스", Price: 128500, PreviousClose: 127000},
		},
		trades: []stock.Conclusion{
			{Code: "005930", Price: 71200, Amount: 3, CreatedAt: time.Unix(1700000000, 0).UTC()},
		},
	}
}

type testEnv struct {
	hub *hub.Hub
	bus *hub.Bus
	srv *httptest.Server
}

func newTestEnv(t *testing.T, svc stock.Service) *testEnv {
	t.Helper()
	h := hub.New(prometheus.NewRegistry())
	bus := hub.NewBus()
	h.Attach(bus)

	handler := NewHandler(h, svc, 64)
	srv := httptest.NewServer(handler.HandlerFunc())
	t.Cleanup(srv.Close)

	return &testEnv{hub: h, bus: bus, srv: srv}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wire.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := wire.Decode(data)
	require.NoError(t, err)
	return env
}

func writeRequest(t *testing.T, conn *websocket.Conn, req wire.Request) {
	t.Helper()
	frame, err := wire.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
}

func sampleUpdate(code string) wire.Update {
	return wire.Update{
		Code:  code,
		Price: 71200,
		Match: wire.Match{Code: code, Price: 71200, PreviousClose: 70900},
	}
}

func TestConnectPushesStocksInfo(t *testing.T) {
	env := newTestEnv(t, defaultStub())
	conn := env.dial(t)

	env2 := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeStocksInfo, env2.Type)

	list, ok := env2.Data.([]any)
	require.True(t, ok, "stocksInfo data should be a list, got %T", env2.Data)
	require.Len(t, list, 2)

	first, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "005930", first["code"])

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestOpenRepliesBaseStockAndSubscribes(t *testing.T) {
	env := newTestEnv(t, defaultStub())
	conn := env.dial(t)
	readEnvelope(t, conn) // stocksInfo

	writeRequest(t, conn, wire.Request{Type: wire.TypeOpen, StockCode: "005930"})

	reply := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeBaseStock, reply.Type)

	payload, ok := reply.Data.(map[string]any)
	require.True(t, ok)
	conclusions, ok := payload["conclusions"].([]any)
	require.True(t, ok)
	assert.Len(t, conclusions, 1)
	charts, ok := payload["charts"].([]any)
	require.True(t, ok)
	assert.Empty(t, charts)

	// The subscription is live: the next broadcast arrives as a full update.
	env.bus.Publish(hub.TopicBroadcast, hub.BroadcastEvent{StockCode: "005930", Update: sampleUpdate("005930")})

	update := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeUpdateTarget, update.Type)
}

func TestUnsubscribedClientGetsDigest(t *testing.T) {
	env := newTestEnv(t, defaultStub())
	conn := env.dial(t)
	readEnvelope(t, conn) // stocksInfo

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	env.bus.Publish(hub.TopicBroadcast, hub.BroadcastEvent{StockCode: "005930", Update: sampleUpdate("005930")})

	update := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeUpdateStock, update.Type)
	digest, ok := update.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "005930", digest["code"])
	assert.NotContains(t, digest, "match")
}

func TestUnknownRequestTypeGetsError(t *testing.T) {
	env := newTestEnv(t, defaultStub())
	conn := env.dial(t)
	readEnvelope(t, conn) // stocksInfo

	writeRequest(t, conn, wire.Request{Type: "ping"})

	reply := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeError, reply.Type)
	assert.Equal(t, errUnknownRequest, reply.Data)

	// No registry mutation: the client is still an unsubscribed member.
	assert.Equal(t, 1, env.hub.ClientCount())
	env.bus.Publish(hub.TopicBroadcast, hub.BroadcastEvent{StockCode: "005930", Update: sampleUpdate("005930")})
	update := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeUpdateStock, update.Type)
}

func TestAlarmNoticeDelivery(t *testing.T) {
	env := newTestEnv(t, defaultStub())

	bystander := env.dial(t)
	readEnvelope(t, bystander) // stocksInfo

	target := env.dial(t)
	readEnvelope(t, target) // stocksInfo

	env.bus.Publish(hub.TopicLoginUser, hub.LoginEvent{UserID: 42, AlarmToken: "T1"})
	writeRequest(t, target, wire.Request{Type: wire.TypeAlarm, AlarmToken: "T1"})

	// Requests on one connection are handled in order; the baseStock reply
	// confirms the alarm registration has been processed.
	writeRequest(t, target, wire.Request{Type: wire.TypeOpen, StockCode: "005930"})
	reply := readEnvelope(t, target)
	require.Equal(t, wire.TypeBaseStock, reply.Type)

	env.bus.Publish(hub.TopicNotice, hub.NoticeEvent{UserID: 42, Message: "X"})

	notice := readEnvelope(t, target)
	assert.Equal(t, wire.TypeNotice, notice.Type)
	assert.Equal(t, "X", notice.Data)

	// The bystander must not see the notice.
	bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := bystander.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestSnapshotFailureClosesConnection(t *testing.T) {
	svc := defaultStub()
	svc.snapshotErr = errors.New("stock service unavailable")
	env := newTestEnv(t, svc)

	conn := env.dial(t)

	// The server closes the socket without pushing anything.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	assert.Equal(t, 0, env.hub.ClientCount())
}

func TestOpenFetchFailureKeepsConnection(t *testing.T) {
	svc := defaultStub()
	svc.tradesErr = errors.New("stock service unavailable")
	env := newTestEnv(t, svc)

	conn := env.dial(t)
	readEnvelope(t, conn) // stocksInfo

	writeRequest(t, conn, wire.Request{Type: wire.TypeOpen, StockCode: "005930"})

	// The request is aborted but the connection survives: a later broadcast
	// still reaches it, as a digest since no subscription was recorded.
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	env.bus.Publish(hub.TopicBroadcast, hub.BroadcastEvent{StockCode: "005930", Update: sampleUpdate("005930")})

	update := readEnvelope(t, conn)
	assert.Equal(t, wire.TypeUpdateStock, update.Type)
}

func TestDisconnectCleansRegistry(t *testing.T) {
	env := newTestEnv(t, defaultStub())
	conn := env.dial(t)
	readEnvelope(t, conn) // stocksInfo

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
