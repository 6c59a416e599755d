package httpapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/netwatch/internal/httpapi/middleware"
)

func wsURL(ts string) string {
	return "ws" + strings.TrimPrefix(ts, "http") + "/api/live"
}

func TestLive_PushesImmediatelyAndOnTicks(t *testing.T) {
	ts, _ := newTestAPI(t, Config{LivePush: 30 * time.Millisecond})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first livePayload
	require.NoError(t, conn.ReadJSON(&first))
	require.Len(t, first.Targets, 3)
	require.Equal(t, 3, first.Summary.Total)
	require.False(t, first.GeneratedAt.IsZero())

	var second livePayload
	require.NoError(t, conn.ReadJSON(&second))
	require.Len(t, second.Targets, 3)
	require.False(t, second.GeneratedAt.Before(first.GeneratedAt))
}

func TestLive_RejectsCrossOrigin(t *testing.T) {
	ts, _ := newTestAPI(t, Config{})

	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), hdr)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

func TestLive_AllowsSameOrigin(t *testing.T) {
	ts, _ := newTestAPI(t, Config{})

	hdr := http.Header{"Origin": []string{ts.URL}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), hdr)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var payload livePayload
	require.NoError(t, conn.ReadJSON(&payload))
	require.Len(t, payload.Targets, 3)
}

func TestLive_RequiresKeyWhenConfigured(t *testing.T) {
	ts, _ := newTestAPI(t, Config{Keys: middleware.Keys{Public: []string{"pub"}}})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	if conn != nil {
		conn.Close()
	}

	hdr := http.Header{"X-API-Key": []string{"pub"}}
	conn, resp, err = websocket.DefaultDialer.Dial(wsURL(ts.URL), hdr)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var payload livePayload
	require.NoError(t, conn.ReadJSON(&payload))
	require.Equal(t, 3, payload.Summary.Total)
}
