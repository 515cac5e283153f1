package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
)

// fakeBridge is an in-process MCP audio bridge recording the calls it gets
type fakeBridge struct {
	mu       sync.Mutex
	calls    []string
	joinFail string
}

func (b *fakeBridge) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls = append(b.calls, name)
		if name == toolJoinAudio && b.joinFail != "" {
			return mcp.NewToolResultError(b.joinFail), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func (b *fakeBridge) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func startFakeBridge(t *testing.T, b *fakeBridge) string {
	t.Helper()

	s := server.NewMCPServer("fake-audio-bridge", "1.0.0", server.WithToolCapabilities(false))
	for _, name := range []string{toolJoinAudio, toolLeaveAudio, toolToggleMute, toolUpdateConstraints} {
		s.AddTool(mcp.NewTool(name), b.handler(name))
	}

	ts := server.NewTestStreamableHTTPServer(s)
	t.Cleanup(ts.Close)
	return ts.URL + "/mcp"
}

func TestBridge_JoinToggleLeave(t *testing.T) {
	b := &fakeBridge{}
	url := startFakeBridge(t, b)
	ctx := context.Background()

	c, err := NewBridge(ctx, "session_1", BridgeConfig{URL: url, Timeout: 5 * time.Second, MeetingID: "meeting_1"})
	require.NoError(t, err)
	defer c.Close()

	rec := &recorder{}
	rec.attach(c)
	c.Init(notify.NewCatalog(), "en")

	require.NoError(t, c.JoinMicrophone(ctx, true))
	require.NoError(t, c.ToggleMuteMicrophone(ctx))
	assert.True(t, c.IsMuted())
	require.NoError(t, c.Leave(ctx))

	assert.Equal(t, []string{toolJoinAudio, toolToggleMute, toolLeaveAudio}, b.recorded())
	assert.Equal(t, []string{notify.JoinedAudio, notify.LeftAudio}, rec.keys())
}

func TestBridge_JoinFailureNotifiesCatalogError(t *testing.T) {
	b := &fakeBridge{joinFail: `{"code":1007,"message":"ICE negotiation failed"}`}
	url := startFakeBridge(t, b)
	ctx := context.Background()

	c, err := NewBridge(ctx, "session_1", BridgeConfig{URL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	rec := &recorder{}
	rec.attach(c)
	c.Init(notify.NewCatalog(), "en")

	err = c.JoinListenOnly(ctx)
	require.Error(t, err)
	assert.Equal(t, "1007", ErrorKey(err))
	assert.False(t, c.IsUsingAudio())
	assert.Equal(t, []string{"1007"}, rec.keys())
}

func stateNotification(fields map[string]any) mcp.JSONRPCNotification {
	return mcp.JSONRPCNotification{
		JSONRPC: mcp.JSONRPC_VERSION,
		Notification: mcp.Notification{
			Method: methodAudioState,
			Params: mcp.NotificationParams{AdditionalFields: fields},
		},
	}
}

func TestConnection_BridgeStateNotifications(t *testing.T) {
	ctx := context.Background()
	c := NewLocal("session_1")
	rec := &recorder{}
	rec.attach(c)
	c.Init(notify.NewCatalog(), "en")

	// Nothing to reconnect yet
	c.handleNotification(stateNotification(map[string]any{"status": "reconnecting"}))
	assert.Empty(t, rec.keys())

	require.NoError(t, c.JoinMicrophone(ctx, false))

	c.handleNotification(stateNotification(map[string]any{"status": "reconnecting"}))
	assert.Equal(t, models.AudioStatusConnecting, c.State().Status)
	assert.True(t, c.IsUsingAudio())
	assert.False(t, c.IsConnected())

	c.handleNotification(stateNotification(map[string]any{"status": "connected"}))
	assert.True(t, c.IsConnected())

	c.handleNotification(stateNotification(map[string]any{"status": "disconnected", "code": 1010}))
	assert.False(t, c.IsUsingAudio())
	assert.Equal(t, models.AudioModeNone, c.State().Mode)

	// Other methods and states are ignored
	c.handleNotification(stateNotification(map[string]any{"status": "melting"}))
	c.handleNotification(mcp.JSONRPCNotification{
		JSONRPC:      mcp.JSONRPC_VERSION,
		Notification: mcp.Notification{Method: "notifications/resources/updated"},
	})

	assert.Equal(t, []string{
		notify.JoinedAudio,
		notify.ReconnectingAudio,
		notify.JoinedAudio,
		"1010",
	}, rec.keys())
}

// hookRemote runs onCall inside every remote call
type hookRemote struct {
	onCall func(tool string)
}

func (r *hookRemote) call(ctx context.Context, tool string, args map[string]interface{}) error {
	if r.onCall != nil {
		r.onCall(tool)
	}
	return nil
}

func (r *hookRemote) close() error { return nil }

func TestConnection_ConnectedDuringJoinNotifiesOnce(t *testing.T) {
	r := &hookRemote{}
	c := newConnection("session_1", r)
	rec := &recorder{}
	rec.attach(c)
	c.Init(notify.NewCatalog(), "en")

	r.onCall = func(tool string) {
		if tool == toolJoinAudio {
			c.handleNotification(stateNotification(map[string]any{"status": "connected"}))
		}
	}

	require.NoError(t, c.JoinMicrophone(context.Background(), true))
	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{notify.JoinedAudio}, rec.keys())

	// Reconnects after the join still report through the bridge
	c.handleNotification(stateNotification(map[string]any{"status": "reconnecting"}))
	c.handleNotification(stateNotification(map[string]any{"status": "connected"}))
	assert.Equal(t, []string{notify.JoinedAudio, notify.ReconnectingAudio, notify.JoinedAudio}, rec.keys())
}
