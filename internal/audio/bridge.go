package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/notify"
)

// BridgeConfig configures the connection to a remote audio bridge
type BridgeConfig struct {
	URL       string
	Timeout   time.Duration
	MeetingID string
	UserName  string
}

// bridgeFailure is the JSON body the bridge puts in a failed tool result
type bridgeFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpRemote talks to the audio bridge over MCP streamable HTTP
type mcpRemote struct {
	client  *client.Client
	timeout time.Duration
}

// NewBridge creates an audio connection whose actions are carried out by a
// remote audio bridge speaking MCP
func NewBridge(ctx context.Context, sessionID string, cfg BridgeConfig) (*Connection, error) {
	settings, err := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"meeting_id": cfg.MeetingID,
		"user_name":  cfg.UserName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bridge settings: %w", err)
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.URL,
		transport.WithHTTPHeaders(map[string]string{
			"audiojoin-session": string(settings),
		}),
		transport.WithHTTPTimeout(cfg.Timeout),
		transport.WithHTTPBasicClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, &Error{Key: notify.ConnectionError, Err: fmt.Errorf("failed to start MCP client: %w", err)}
	}

	_, err = mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "audiojoin-manager",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		mcpClient.Close()
		return nil, &Error{Key: notify.ConnectionError, Err: fmt.Errorf("failed to initialize MCP client: %w", err)}
	}

	logrus.WithField("session_id", sessionID).Infof("Connected to audio bridge at %s", cfg.URL)

	conn := newConnection(sessionID, &mcpRemote{
		client:  mcpClient,
		timeout: cfg.Timeout,
	})
	mcpClient.OnNotification(conn.handleNotification)
	return conn, nil
}

func (r *mcpRemote) call(ctx context.Context, tool string, args map[string]interface{}) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      tool,
			Arguments: args,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Key: notify.RequestTimeout, Err: err}
		}
		return &Error{Key: notify.ConnectionError, Err: err}
	}

	if result.IsError {
		errorMsg := "unknown error"
		if len(result.Content) > 0 {
			if textContent, ok := mcp.AsTextContent(result.Content[0]); ok {
				errorMsg = textContent.Text
			}
		}
		return classifyFailure(tool, errorMsg)
	}

	return nil
}

// classifyFailure maps a failed tool result onto the notification catalog
func classifyFailure(tool, text string) error {
	var failure bridgeFailure
	if err := json.Unmarshal([]byte(text), &failure); err == nil && failure.Code != 0 {
		err := fmt.Errorf("%s failed: %s", tool, failure.Message)
		if notify.IsWebRTCCode(failure.Code) {
			return &Error{Key: notify.WebRTCKey(failure.Code), Err: err}
		}
		return &Error{Key: notify.GenericError, Err: err}
	}
	return &Error{Key: notify.ConnectionError, Err: fmt.Errorf("%s failed: %s", tool, text)}
}

func (r *mcpRemote) close() error {
	return r.client.Close()
}
