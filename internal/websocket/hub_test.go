package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/etl"
)

func startHub(t *testing.T, config *HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(config, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, want int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.GetStats().ActiveConnections == want
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHubPublish(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastResults: true})
	conn := dial(t, hub, srv, 1)

	require.NoError(t, hub.Publish(context.Background(), &etl.FileResult{
		RunID:   "run-1",
		Key:     "raw/USvideos.csv",
		Country: "US",
		Status:  etl.StatusWritten,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type  EventType      `json:"type"`
		RunID string         `json:"run_id"`
		Data  etl.FileResult `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeFileResult, got.Type)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "raw/USvideos.csv", got.Data.Key)
	assert.Equal(t, etl.StatusWritten, got.Data.Status)
}

func TestHubPing(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{})
	conn := dial(t, hub, srv, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypePong, got.Type)
}

func TestHubAuth(t *testing.T) {
	_, srv := startHub(t, &HubConfig{Username: "ops", Password: "secret"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("ops", "secret")
	header.Set("Authorization", req.Header.Get("Authorization"))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestPublishDisabled(t *testing.T) {
	hub := NewHub(&HubConfig{}, zap.NewNop())
	require.NoError(t, hub.Publish(context.Background(), &etl.FileResult{}))
	assert.Len(t, hub.broadcast, 0)
}

func TestWants(t *testing.T) {
	us := &etl.FileResult{Country: "US", Status: etl.StatusWritten}
	kr := &etl.FileResult{Country: "KR", Status: etl.StatusFailed}
	event := func(r *etl.FileResult) Event { return Event{Type: EventTypeFileResult, Data: r} }

	all := &Client{}
	assert.True(t, wants(all, event(us)))

	onlyConnections := &Client{Subscription: &SubscriptionRequest{Events: []EventType{EventTypeConnection}}}
	assert.False(t, wants(onlyConnections, event(us)))

	failures := &Client{Subscription: &SubscriptionRequest{
		Filter: &ResultFilter{Statuses: []etl.Status{etl.StatusFailed}},
	}}
	assert.False(t, wants(failures, event(us)))
	assert.True(t, wants(failures, event(kr)))

	korea := &Client{Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypeFileResult},
		Filter: &ResultFilter{Countries: []string{"KR"}},
	}}
	assert.True(t, wants(korea, event(kr)))
	assert.False(t, wants(korea, event(us)))
}
