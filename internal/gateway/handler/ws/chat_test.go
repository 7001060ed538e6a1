package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"educore/internal/assistant"
	"educore/internal/capability"
	"educore/internal/llm"
)

func newChatServer(t *testing.T, model llm.Client) *httptest.Server {
	t.Helper()

	reg := capability.NewRegistry()
	res := reg.Register(capability.Registration{
		Name:        "getCourses",
		Description: "List published courses.",
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return []any{map[string]any{"id": "cs101"}}, nil
		}),
	})
	require.True(t, res.Accepted)

	orc, err := assistant.New(assistant.Config{
		Registry:   reg,
		Dispatcher: capability.NewDispatcher(reg, 0, zap.NewNop()),
		Model:      model,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)

	h := NewChatHandler(orc, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleChatWS))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("X-User-Id", "u-alice")
	header.Set("X-User-Role", "student")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestChatWSTurn(t *testing.T) {
	model := llm.NewFakeToolClient(
		llm.Message{Role: llm.RoleModel, Text: "CS101 starts in September."},
	)
	conn := dial(t, newChatServer(t, model))

	require.NoError(t, conn.WriteJSON(chatWSInbound{
		Type:  "turn",
		Query: "when does CS101 start?",
	}))

	var out chatWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "reply", out.Type)
	require.NotNil(t, out.Reply)
	require.Equal(t, "CS101 starts in September.", out.Reply.Content)
}

func TestChatWSDirectCall(t *testing.T) {
	conn := dial(t, newChatServer(t, llm.NewFakeToolClient()))

	require.NoError(t, conn.WriteJSON(chatWSInbound{
		Type:   "turn",
		Direct: &assistant.DirectCall{Name: "get_courses"},
	}))

	var out chatWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "reply", out.Type)
	require.NotNil(t, out.Reply)
	require.Len(t, out.Reply.FunctionResults, 1)
	require.Equal(t, "getCourses", out.Reply.FunctionResults[0].Name)
}

func TestChatWSInvalidMessages(t *testing.T) {
	conn := dial(t, newChatServer(t, llm.NewFakeToolClient()))

	require.NoError(t, conn.WriteJSON(chatWSInbound{Type: "bogus"}))
	var out chatWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "error", out.Type)
	require.Equal(t, "invalid_argument", out.Code)

	// An invalid query fails the turn with an error frame, not a close.
	require.NoError(t, conn.WriteJSON(chatWSInbound{Type: "turn", Query: "   "}))
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "error", out.Type)
	require.Equal(t, "invalid_argument", out.Code)

	require.NoError(t, conn.WriteJSON(chatWSInbound{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "pong", out.Type)
}
