package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/events"
)

// watchFeedServer upgrades incoming connections and pushes scripted events.
func watchFeedServer(t *testing.T, wantToken string, send []ChangeEvent) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantToken != "" && r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, event := range send {
			require.NoError(t, conn.WriteJSON(event))
		}

		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// Drain until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collectEvents(t *testing.T, client *WatchClient, want int) []ChangeEvent {
	t.Helper()

	var got []ChangeEvent
	timeout := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case event, ok := <-client.Changes():
			if !ok {
				return got
			}
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), want)
		}
	}
	return got
}

func TestWatchClientReceivesEvents(t *testing.T) {
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := watchFeedServer(t, "feed-token", []ChangeEvent{
		{VaultID: "vault-1", FileID: "file-vault-1", ModifiedTime: modified},
		{VaultID: "vault-2", FileID: "file-vault-2", ModifiedTime: modified.Add(time.Minute)},
	})

	client := NewWatchClient(WatchConfig{URL: srv.URL, Token: "feed-token"}, events.Nop())
	require.NoError(t, client.Connect(t.Context()))
	defer client.Close()

	got := collectEvents(t, client, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "vault-1", got[0].VaultID)
	assert.Equal(t, "file-vault-1", got[0].FileID)
	assert.True(t, got[0].ModifiedTime.Equal(modified))
	assert.Equal(t, "vault-2", got[1].VaultID)
}

func TestWatchClientSkipsEventsWithoutVaultID(t *testing.T) {
	srv := watchFeedServer(t, "", []ChangeEvent{
		{FileID: "orphan"},
		{VaultID: "vault-1"},
	})

	client := NewWatchClient(WatchConfig{URL: srv.URL}, events.Nop())
	require.NoError(t, client.Connect(t.Context()))
	defer client.Close()

	got := collectEvents(t, client, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "vault-1", got[0].VaultID)
}

func TestWatchClientChannelClosesOnServerClose(t *testing.T) {
	srv := watchFeedServer(t, "", nil)

	client := NewWatchClient(WatchConfig{URL: srv.URL}, events.Nop())
	require.NoError(t, client.Connect(t.Context()))

	select {
	case _, ok := <-client.Changes():
		assert.False(t, ok, "channel closes when the feed ends")
	case <-time.After(5 * time.Second):
		t.Fatal("channel never closed")
	}
}

func TestWatchClientRejectedHandshake(t *testing.T) {
	srv := watchFeedServer(t, "good-token", nil)

	client := NewWatchClient(WatchConfig{URL: srv.URL, Token: "bad-token"}, events.Nop())
	err := client.Connect(t.Context())
	assert.Error(t, err)
}

func TestWatchClientDoubleConnect(t *testing.T) {
	srv := watchFeedServer(t, "", nil)

	client := NewWatchClient(WatchConfig{URL: srv.URL}, events.Nop())
	require.NoError(t, client.Connect(t.Context()))
	defer client.Close()

	assert.Error(t, client.Connect(t.Context()))
}

func TestWatchClientCloseIdempotent(t *testing.T) {
	srv := watchFeedServer(t, "", nil)

	client := NewWatchClient(WatchConfig{URL: srv.URL}, events.Nop())
	require.NoError(t, client.Connect(t.Context()))

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}
