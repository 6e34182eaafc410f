package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/holdno/firetower/protocol"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/app/core/srv"
	v1 "github.com/speechbot/speechbot/app/logic/v1"
	"github.com/speechbot/speechbot/app/response"
	"github.com/speechbot/speechbot/pkg/errors"
	typesprotocol "github.com/speechbot/speechbot/pkg/types/protocol"
	"github.com/speechbot/speechbot/pkg/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// outboundQueue is the per-connection bounded buffer between the tower
// and the client socket. A single drain goroutine keeps events in
// publish order.
type outboundQueue struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newOutboundQueue(size int) *outboundQueue {
	if size <= 0 {
		size = 256
	}
	return &outboundQueue{
		ch:     make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

// push enqueues without blocking. The second return reports overflow.
func (q *outboundQueue) push(raw []byte) (ok, full bool) {
	select {
	case <-q.closed:
		return false, false
	default:
	}
	select {
	case q.ch <- raw:
		return true, false
	default:
		return false, true
	}
}

func (q *outboundQueue) close() {
	q.once.Do(func() {
		close(q.closed)
	})
}

func Websocket(core *core.Core) func(c *gin.Context) {
	if core.Srv().Tower() == nil {
		return func(c *gin.Context) {
			response.APIError(c, errors.New("api.Websocket", "this server not support websocket service", nil))
		}
	}
	return func(c *gin.Context) {
		var ws *websocket.Conn
		var err error

		tower := core.Srv().Tower()
		tokenClaim, _ := v1.InjectTokenClaim(c)

		ws, err = upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Websocket Upgrade err", slog.String("error", err.Error()))
			response.APIError(c, errors.New("api.Websocket", "failed to upgrade http", err))
			return
		}

		id := utils.GenRandomID()
		thisTower, err := tower.BuildTower(ws, id)
		if err != nil {
			response.APIError(c, errors.New("api.Websocket", "failed to build firetower", err))
			return
		}
		thisTower.SetUserID(tokenClaim.UserID)

		queue := newOutboundQueue(core.Cfg().Websocket.QueueSize)
		go func() {
			for {
				select {
				case <-queue.closed:
					return
				case raw := <-queue.ch:
					thisTower.SendToClient(raw)
				}
			}
		}()

		thisTower.SetReadHandler(func(fire protocol.ReadOnlyFire[srv.PublishData]) bool {
			// clients publish through the HTTP API, never the socket
			return false
		})

		thisTower.SetReceivedHandler(func(fi protocol.ReadOnlyFire[srv.PublishData]) bool {
			raw, err := json.Marshal(fi.GetMessage())
			if err != nil {
				slog.Error("failed to marshal firetower received message", slog.String("error", err.Error()))
				return false
			}

			if _, full := queue.push(raw); full {
				eventType := fi.GetMessage().Data.Type
				if eventType.Droppable() {
					// a stale typing indicator is worthless, drop it
					core.Metrics().RouterDroppedEventInc(eventType.String())
					return false
				}
				// losing a critical event would leave the client with a
				// gap it cannot detect, so force a reconnect instead
				core.Metrics().RouterOverflowDisconnectInc()
				slog.Warn("outbound queue overflow, disconnecting slow client",
					slog.String("user", tokenClaim.UserID),
					slog.String("client", id))
				queue.close()
				ws.Close()
			}
			return false
		})

		thisTower.SetReadTimeoutHandler(func(fire protocol.ReadOnlyFire[srv.PublishData]) {
			slog.Error("read timeout trigger", slog.String("component", "firetower"))
		})

		thisTower.SetBeforeSubscribeHandler(func(fireCtx protocol.FireLife, topics []string) bool {
			for _, v := range topics {
				if !typesprotocol.IsIMTopic(v) {
					return false
				}
				chatID, _ := typesprotocol.GetChatID(v)
				if _, err := v1.CheckUserChat(c, core, tokenClaim.UserID, chatID); err != nil {
					slog.Error("failed to subscribe topic, chat not owned by user",
						slog.String("component", "firetower"),
						slog.String("user", tokenClaim.UserID),
						slog.String("topic", v),
						slog.Any("error", err))
					return false
				}
			}
			return true
		})

		thisTower.SetSubscribeHandler(func(context protocol.FireLife, topic []string) {
			for _, v := range topic {
				resp := &protocol.TopicMessage[json.RawMessage]{
					Topic: v,
					Type:  protocol.SubscribeOperation,
				}
				resp.Data = json.RawMessage(`{"status":"success"}`)
				msg, _ := json.Marshal(resp)
				thisTower.SendToClient(msg)
			}
		})

		thisTower.SetUnSubscribeHandler(func(context protocol.FireLife, topic []string) {
			for _, v := range topic {
				resp := &protocol.TopicMessage[json.RawMessage]{
					Topic: v,
					Type:  protocol.UnSubscribeOperation,
				}
				resp.Data = json.RawMessage(`{"status":"success"}`)
				msg, _ := json.Marshal(resp)
				thisTower.SendToClient(msg)
			}
		})

		thisTower.Run()
		queue.close()
	}
}
