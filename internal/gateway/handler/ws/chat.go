// Package ws serves the interactive chat endpoint over a websocket. One
// connection is one conversation surface; each inbound turn message runs a
// full orchestrator turn and the reply is pushed back on the same socket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"educore/internal/assistant"
)

const (
	chatWSWriteWait = 10 * time.Second
	chatWSPongWait  = 60 * time.Second
	chatWSPingEvery = (chatWSPongWait * 9) / 10
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type chatWSInbound struct {
	Type    string                `json:"type"`
	Query   string                `json:"query,omitempty"`
	Direct  *assistant.DirectCall `json:"directFunctionCall,omitempty"`
	Context string                `json:"courseContext,omitempty"`
}

type chatWSOutbound struct {
	Type    string               `json:"type"`
	Reply   *assistant.TurnReply `json:"reply,omitempty"`
	Code    string               `json:"code,omitempty"`
	Message string               `json:"message,omitempty"`
}

type ChatHandler struct {
	orc *assistant.Orchestrator
	log *zap.Logger
}

func NewChatHandler(orc *assistant.Orchestrator, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{orc: orc, log: logger}
}

// HandleChatWS upgrades the connection and serves turns until the peer
// goes away. Turns run one at a time per connection; a second turn sent
// while the first is in flight waits its turn in the read loop.
func (h *ChatHandler) HandleChatWS(w http.ResponseWriter, r *http.Request) {
	caller := assistant.Identity{
		UserID: strings.TrimSpace(r.Header.Get("X-User-Id")),
		Role:   strings.TrimSpace(r.Header.Get("X-User-Role")),
	}

	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(chatWSPongWait)); err != nil {
		h.log.Warn("chat ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(chatWSPongWait))
	})

	writeCh := make(chan chatWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(chatWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var in chatWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		msgType := strings.ToLower(strings.TrimSpace(in.Type))
		switch msgType {
		case "ping":
			pushChatWS(writeCh, chatWSOutbound{Type: "pong"})
		case "turn":
			h.serveTurn(ctx, writeCh, in, caller)
		case "":
			pushChatWS(writeCh, chatWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type is required",
			})
		default:
			pushChatWS(writeCh, chatWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + msgType,
			})
		}
	}
}

func (h *ChatHandler) serveTurn(ctx context.Context, writeCh chan chatWSOutbound, in chatWSInbound, caller assistant.Identity) {
	reply, err := h.orc.Respond(ctx, assistant.TurnRequest{
		Query:         in.Query,
		Direct:        in.Direct,
		CourseContext: in.Context,
		Caller:        caller,
	})
	if err != nil {
		code := "internal"
		if errors.Is(err, assistant.ErrInvalidQuery) {
			code = "invalid_argument"
		} else {
			h.log.Error("chat ws turn failed",
				zap.String("user", caller.UserID), zap.Error(err))
			err = errors.New("the assistant could not complete this request")
		}
		pushChatWS(writeCh, chatWSOutbound{
			Type:    "error",
			Code:    code,
			Message: err.Error(),
		})
		return
	}
	pushChatWS(writeCh, chatWSOutbound{Type: "reply", Reply: reply})
}

// pushChatWS enqueues without blocking the turn loop: when the writer has
// fallen behind, the oldest queued message is dropped to make room.
func pushChatWS(writeCh chan chatWSOutbound, out chatWSOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
