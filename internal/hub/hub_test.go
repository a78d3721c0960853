package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
)

func TestHub_StreamsTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(zap.NewNop(), nil)
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnect))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	ev := domain.TransitionEvent{TargetID: "api", From: domain.StatusUp, To: domain.StatusDown, At: time.Now().UTC()}
	require.NoError(t, h.Publish(ctx, ev))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type     string                 `json:"type"`
		TargetID string                 `json:"target_id"`
		Payload  domain.TransitionEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	require.Equal(t, "transition", got.Type)
	require.Equal(t, "api", got.TargetID)
	require.Equal(t, domain.StatusDown, got.Payload.To)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	h := New(zap.NewNop(), []string{"https://dash.example.com"})
	check := h.upgrader.CheckOrigin

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/events/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	require.True(t, check(req("")))
	require.True(t, check(req("https://dash.example.com")))
	require.True(t, check(req("http://localhost:3000")))
	require.False(t, check(req("https://evil.example.com")))
}
