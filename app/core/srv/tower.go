package srv

import (
	"encoding/json"
	"log/slog"

	fireprotocol "github.com/holdno/firetower/protocol"
	"github.com/holdno/firetower/service/tower"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/speechbot/speechbot/pkg/socket/firetower"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/utils"
)

type Tower struct {
	pusher *firetower.SelfPusher[PublishData]
	tower.Manager[PublishData]
	systemEventRegistry *EventRegistry
}

// PublishData is the envelope of every websocket event.
type PublishData struct {
	Subject string            `json:"subject"`
	Version string            `json:"version"`
	Type    types.WsEventType `json:"type"`
	Data    any               `json:"data"`
}

func (c *PublishData) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte(""), nil
	}
	return json.Marshal(c)
}

func (c *PublishData) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == `""` {
		return nil
	}
	return json.Unmarshal(data, c)
}

func SetupSocketSrv(heartbeat int64) (*Tower, error) {
	tower, pusher, err := firetower.SetupFiretower[PublishData](heartbeat)
	if err != nil {
		return nil, err
	}

	return &Tower{
		pusher:              pusher,
		Manager:             tower,
		systemEventRegistry: newEventRegistry(),
	}, nil
}

func ApplyTower(heartbeat int64) ApplyFunc {
	return func(s *Srv) {
		var err error
		if s.tower, err = SetupSocketSrv(heartbeat); err != nil {
			panic(err)
		}
		s.tower.RegisterServerSideTopic()
	}
}

func (t *Tower) Pusher() *firetower.SelfPusher[PublishData] {
	return t.pusher
}

func (t *Tower) NewMessage(imtopic string, _type fireprotocol.FireOperation, data PublishData) *fireprotocol.FireInfo[PublishData] {
	fire := t.NewFire(fireprotocol.SourceSystem, t.pusher)
	fire.Message.Topic = imtopic
	fire.Message.Type = _type
	fire.Message.Data = data
	return fire
}

func (t *Tower) PublishMessageMeta(topic string, logic types.WsEventType, data *types.MessageMeta) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "on_message_init",
		Version: "v1",
		Type:    logic,
		Data:    data,
	})
}

func (t *Tower) PublishStreamMessage(topic string, logic types.WsEventType, data any) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "on_message",
		Version: "v1",
		Type:    logic,
		Data:    data,
	})
}

func (t *Tower) PublishStatusUpdate(topic string, data *types.StatusUpdate) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "message_status",
		Version: "v1",
		Type:    types.WS_EVENT_MESSAGE_STATUS,
		Data:    data,
	})
}

func (t *Tower) PublishTyping(topic string, data *types.TypingUpdate) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "typing",
		Version: "v1",
		Type:    types.WS_EVENT_TYPING,
		Data:    data,
	})
}

func (t *Tower) PublishReaction(topic string, data *types.ReactionUpdate) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "message_reaction",
		Version: "v1",
		Type:    types.WS_EVENT_MESSAGE_REACTION,
		Data:    data,
	})
}

func (t *Tower) PublishChatUpdate(topic string, data *types.Chat) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "chat_update",
		Version: "v1",
		Type:    types.WS_EVENT_CHAT_UPDATE,
		Data:    data,
	})
}

func (t *Tower) PublishStreamError(topic string, data *types.StreamError) error {
	return t.publish(topic, fireprotocol.PublishOperation, PublishData{
		Subject: "stream_error",
		Version: "v1",
		Type:    types.WS_EVENT_ASSISTANT_FAILED,
		Data:    data,
	})
}

func (t *Tower) publish(imtopic string, _type fireprotocol.FireOperation, data PublishData) error {
	if t == nil || t.Manager == nil {
		// tower not running, nothing to fan out to
		return nil
	}
	fire := t.NewMessage(imtopic, _type, data)
	return t.Publish(fire)
}

// RegisterServerSideTopic wires the internal signal topics. Stop-stream
// signals travel through the tower so any node in a cluster can cancel
// a generation running on another.
func (t *Tower) RegisterServerSideTopic() {
	serverSideTower := t.BuildServerSideTower(utils.RandomStr(32))
	fire := t.NewFire(fireprotocol.SourceSystem, t.pusher)
	serverSideTower.Subscribe(fire.Context, []string{
		types.TOWER_EVENT_CLOSE_CHAT_STREAM,
	})
	serverSideTower.SetReceivedHandler(func(fi fireprotocol.ReadOnlyFire[PublishData]) (ignore bool) {
		slog.Debug("new signal", slog.String("topic", fi.GetMessage().Topic))
		switch fi.GetMessage().Topic {
		case types.TOWER_EVENT_CLOSE_CHAT_STREAM:
			closeFunc, exist := t.systemEventRegistry.ChatStreamSignal.Get(fi.GetMessage().Data.Subject)
			if exist {
				closeFunc()
			}
		default:
			slog.Warn("got unknown handler signal", slog.String("topic", fi.GetMessage().Topic))
		}
		return
	})
}

// RegisterStreamSignal parks a cancel func under the reply's message id
// until the stream finishes.
func (t *Tower) RegisterStreamSignal(messageID string, closeFunc func()) func() {
	t.systemEventRegistry.ChatStreamSignal.Set(messageID, closeFunc)
	return func() {
		t.systemEventRegistry.ChatStreamSignal.Remove(messageID)
	}
}

// CloseChatStream broadcasts the stop-generation signal for one reply.
func (t *Tower) CloseChatStream(messageID string) error {
	return t.publish(types.TOWER_EVENT_CLOSE_CHAT_STREAM, fireprotocol.PublishOperation, PublishData{
		Subject: messageID,
		Version: "v1",
	})
}

type EventRegistry struct {
	ChatStreamSignal cmap.ConcurrentMap[string, func()]
}

func newEventRegistry() *EventRegistry {
	return &EventRegistry{
		ChatStreamSignal: cmap.New[func()](),
	}
}
