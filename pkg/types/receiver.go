package types

type ReceiveFunc func(msg MessageContent, state StreamState) error
type DoneFunc func(err error) error

// Messager pushes websocket events for one chat topic.
type Messager interface {
	PublishMessage(_type WsEventType, data any) error
}

// Receiver accumulates a bot reply during generation and persists it on
// completion. Nothing reaches the message store until the stream ends.
type Receiver interface {
	GetReceiveFunc() ReceiveFunc
	GetDoneFunc(callback func(msg *Message)) DoneFunc
	MessageID() string
}
