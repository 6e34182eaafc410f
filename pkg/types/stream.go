package types

// StreamState is the per-reply generation state machine.
//
//	Pending -> Generating -> Streaming -> Complete
//	Pending/Generating/Streaming -> Failed
//	Generating/Streaming -> Cancelled
type StreamState int8

const (
	STREAM_STATE_PENDING    StreamState = 1
	STREAM_STATE_GENERATING StreamState = 2
	STREAM_STATE_STREAMING  StreamState = 3
	STREAM_STATE_COMPLETE   StreamState = 4
	STREAM_STATE_FAILED     StreamState = 5
	STREAM_STATE_CANCELLED  StreamState = 6
)

func (s StreamState) String() string {
	switch s {
	case STREAM_STATE_PENDING:
		return "pending"
	case STREAM_STATE_GENERATING:
		return "generating"
	case STREAM_STATE_STREAMING:
		return "streaming"
	case STREAM_STATE_COMPLETE:
		return "complete"
	case STREAM_STATE_FAILED:
		return "failed"
	case STREAM_STATE_CANCELLED:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s StreamState) Terminal() bool {
	return s == STREAM_STATE_COMPLETE || s == STREAM_STATE_FAILED || s == STREAM_STATE_CANCELLED
}

func (s StreamState) CanTransition(next StreamState) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case STREAM_STATE_GENERATING:
		return s == STREAM_STATE_PENDING
	case STREAM_STATE_STREAMING:
		return s == STREAM_STATE_GENERATING
	case STREAM_STATE_COMPLETE:
		return s == STREAM_STATE_STREAMING
	case STREAM_STATE_FAILED:
		return true
	case STREAM_STATE_CANCELLED:
		return s == STREAM_STATE_GENERATING || s == STREAM_STATE_STREAMING
	default:
		return false
	}
}
