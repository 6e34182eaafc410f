package srv

import (
	"context"
	"log/slog"

	"github.com/speechbot/speechbot/pkg/types"
)

// NotifySrv is informed of terminal events for users with no live
// session. Fire and forget; the core never waits on it.
type NotifySrv interface {
	NewMessage(ctx context.Context, userID string, msg *types.Message)
	StreamFailed(ctx context.Context, userID string, err *types.StreamError)
}

type logNotifySrv struct{}

func (s *logNotifySrv) NewMessage(ctx context.Context, userID string, msg *types.Message) {
	slog.Debug("notify: new message for offline user",
		slog.String("user_id", userID),
		slog.String("chat_id", msg.ChatID),
		slog.String("message_id", msg.ID))
}

func (s *logNotifySrv) StreamFailed(ctx context.Context, userID string, err *types.StreamError) {
	slog.Debug("notify: stream failed",
		slog.String("user_id", userID),
		slog.String("chat_id", err.ChatID),
		slog.String("reason", err.Reason))
}
