package types

const (
	NO_PAGING = uint64(0)

	NOT_DELETE = 0
)

type WsEventType int32

const (
	WS_EVENT_UNKNOWN            WsEventType = 0
	WS_EVENT_ASSISTANT_INIT     WsEventType = 1 // bot reply carrier created
	WS_EVENT_ASSISTANT_CONTINUE WsEventType = 2 // bot reply chunk
	WS_EVENT_ASSISTANT_DONE     WsEventType = 3 // bot reply finished
	WS_EVENT_ASSISTANT_FAILED   WsEventType = 4 // bot request failed
	WS_EVENT_MESSAGE_PUBLISH    WsEventType = 100
	WS_EVENT_MESSAGE_STATUS     WsEventType = 101
	WS_EVENT_MESSAGE_REACTION   WsEventType = 102
	WS_EVENT_TYPING             WsEventType = 103
	WS_EVENT_CHAT_UPDATE        WsEventType = 104
	WS_EVENT_SYSTEM_ONSUBSCRIBE WsEventType = 300
	WS_EVENT_SYSTEM_UNSUBSCRIBE WsEventType = 301
	WS_EVENT_OTHERS             WsEventType = 400
)

// Critical events must never be dropped from a session's outbound
// queue; droppable ones may be discarded when a session lags.
func (t WsEventType) Droppable() bool {
	return t == WS_EVENT_TYPING
}

func (t WsEventType) String() string {
	switch t {
	case WS_EVENT_ASSISTANT_INIT:
		return "assistant_init"
	case WS_EVENT_ASSISTANT_CONTINUE:
		return "assistant_continue"
	case WS_EVENT_ASSISTANT_DONE:
		return "assistant_done"
	case WS_EVENT_ASSISTANT_FAILED:
		return "assistant_failed"
	case WS_EVENT_MESSAGE_PUBLISH:
		return "message_publish"
	case WS_EVENT_MESSAGE_STATUS:
		return "message_status"
	case WS_EVENT_MESSAGE_REACTION:
		return "message_reaction"
	case WS_EVENT_TYPING:
		return "typing"
	case WS_EVENT_CHAT_UPDATE:
		return "chat_update"
	default:
		return "unknown"
	}
}

const (
	LANGUAGE_EN_KEY = "en"
	LANGUAGE_CN_KEY = "zh-CN"
)

const (
	// server side signal topics
	TOWER_EVENT_CLOSE_CHAT_STREAM = "/speechbot/event/chat/close_stream"
)
