package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/register"
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		p.Cron().AddFunc("0 3 * * *", func() {
			purgeDeletedMessages(p.Core())
		})
		p.Cron().AddFunc("30 3 * * *", func() {
			purgeOperationLedger(p.Core())
		})
		p.Cron().AddFunc("0 4 * * 0", func() {
			healMessageCounts(p.Core())
		})
	})
}

// purgeDeletedMessages hard-deletes soft-deleted messages past the
// retention window.
func purgeDeletedMessages(core *core.Core) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	days := core.Cfg().Retention.DeletedMessageDays
	before := time.Now().AddDate(0, 0, -days).Unix()

	purged, err := core.Store().MessageStore().PurgeDeletedBefore(ctx, before)
	if err != nil {
		slog.Error("Failed to purge soft-deleted messages", slog.String("error", err.Error()))
		return
	}
	slog.Info("Purged soft-deleted messages",
		slog.Int64("purged", purged),
		slog.Int("retention_days", days))
}

// purgeOperationLedger drops idempotency ledger rows old enough that no
// client could still replay them.
func purgeOperationLedger(core *core.Core) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	days := core.Cfg().Retention.OperationDays
	before := time.Now().AddDate(0, 0, -days).Unix()

	purged, err := core.Store().OperationStore().PurgeBefore(ctx, before)
	if err != nil {
		slog.Error("Failed to purge operation ledger", slog.String("error", err.Error()))
		return
	}
	slog.Info("Purged operation ledger entries",
		slog.Int64("purged", purged),
		slog.Int("retention_days", days))
}

// healMessageCounts recomputes each chat's denormalized message count
// from the message table. The counter is maintained transactionally, so
// this only repairs drift after manual intervention or crashes.
func healMessageCounts(core *core.Core) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	const pageSize = uint64(500)
	healed := 0
	for page := uint64(1); ; page++ {
		ids, err := core.Store().ChatStore().ListIDs(ctx, page, pageSize)
		if err != nil {
			slog.Error("Failed to list chats for count heal", slog.String("error", err.Error()))
			return
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := core.Store().ChatStore().RecomputeMessageCount(ctx, id); err != nil {
				slog.Warn("Failed to recompute message count",
					slog.String("chat_id", id),
					slog.String("error", err.Error()))
				continue
			}
			healed++
		}

		if uint64(len(ids)) < pageSize {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}

	slog.Info("Recomputed chat message counts", slog.Int("healed", healed))
}
