package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/speechbot/speechbot/pkg/register"
	"github.com/speechbot/speechbot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.MessageStore = NewMessageStore(provider)
	})
}

type MessageStore struct {
	CommonFields
}

func NewMessageStore(provider SqlProviderAchieve) *MessageStore {
	repo := &MessageStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_MESSAGE)
	repo.SetAllColumns("id", "chat_id", "user_id", "role", "content", "content_type", "sequence",
		"status", "correlation_id", "reply_to_id", "reactions", "edit_history", "truncated",
		"send_time", "deleted_at")
	return repo
}

func (s *MessageStore) Create(ctx context.Context, data *types.Message) error {
	if data.SendTime == 0 {
		data.SendTime = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns("id", "chat_id", "user_id", "role", "content", "content_type", "sequence",
			"status", "correlation_id", "reply_to_id", "reactions", "edit_history", "truncated",
			"send_time", "deleted_at").
		Values(data.ID, data.ChatID, data.UserID, data.Role, data.Content, data.ContentType, data.Sequence,
			data.Status, data.CorrelationID, data.ReplyToID, data.Reactions.String(), data.EditHistory.String(),
			data.Truncated, data.SendTime, 0)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) GetOne(ctx context.Context, chatID, id string) (*types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"chat_id": chatID, "id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var msg types.Message
	if err = s.GetReplica(ctx).Get(&msg, queryString, args...); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetByCorrelationID returns the latest attempt for a correlation id.
// Earlier failed attempts stay behind for audit.
func (s *MessageStore) GetByCorrelationID(ctx context.Context, chatID, correlationID string) (*types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"chat_id": chatID, "correlation_id": correlationID}).
		OrderBy("sequence DESC").Limit(1)
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var msg types.Message
	if err = s.GetReplica(ctx).Get(&msg, queryString, args...); err != nil {
		return nil, err
	}
	return &msg, nil
}

// List pages by sequence. BeforeID/AfterID are message ids whose
// sequence anchors the cursor; the anchor row itself is excluded.
func (s *MessageStore) List(ctx context.Context, chatID string, opts types.ListMessageOptions) ([]*types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"chat_id": chatID})
	if !opts.IncludeDeleted {
		query = query.Where(sq.Eq{"deleted_at": 0})
	}
	if opts.BeforeID != "" {
		query = query.Where(sq.Expr("sequence < (SELECT sequence FROM "+s.GetTable()+" WHERE chat_id = ? AND id = ?)",
			chatID, opts.BeforeID))
	}
	if opts.AfterID != "" {
		query = query.Where(sq.Expr("sequence > (SELECT sequence FROM "+s.GetTable()+" WHERE chat_id = ? AND id = ?)",
			chatID, opts.AfterID))
	}
	if opts.OrderAsc {
		query = query.OrderBy("sequence ASC")
	} else {
		query = query.OrderBy("sequence DESC")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []*types.Message
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *MessageStore) Total(ctx context.Context, chatID string, includeDeleted bool) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"chat_id": chatID})
	if !includeDeleted {
		query = query.Where(sq.Eq{"deleted_at": 0})
	}
	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, chatID, id, content string, history types.EditHistory) error {
	query := sq.Update(s.GetTable()).
		Set("content", content).
		Set("edit_history", history.String()).
		Where(sq.Eq{"chat_id": chatID, "id": id, "deleted_at": 0})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) UpdateReactions(ctx context.Context, chatID, id string, reactions types.ReactionSet) error {
	query := sq.Update(s.GetTable()).
		Set("reactions", reactions.String()).
		Where(sq.Eq{"chat_id": chatID, "id": id, "deleted_at": 0})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) UpdateStatus(ctx context.Context, chatID, id string, prev, next types.MessageStatus) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("status", next).
		Where(sq.Eq{"chat_id": chatID, "id": id, "status": prev})
	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}
	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkReadUpTo flips every delivered message at or before the anchor's
// sequence to read. Returns the number of rows changed.
func (s *MessageStore) MarkReadUpTo(ctx context.Context, chatID, uptoID string) (int64, error) {
	query := sq.Update(s.GetTable()).
		Set("status", types.MESSAGE_STATUS_READ).
		Where(sq.Eq{"chat_id": chatID, "status": types.MESSAGE_STATUS_DELIVERED}).
		Where(sq.Expr("sequence <= (SELECT sequence FROM "+s.GetTable()+" WHERE chat_id = ? AND id = ?)",
			chatID, uptoID))
	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}
	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *MessageStore) SoftDelete(ctx context.Context, chatID, id string) error {
	query := sq.Update(s.GetTable()).
		Set("deleted_at", time.Now().Unix()).
		Where(sq.Eq{"chat_id": chatID, "id": id, "deleted_at": 0})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) HardDelete(ctx context.Context, chatID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"chat_id": chatID, "id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"chat_id": chatID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}
	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *MessageStore) MaxSequence(ctx context.Context, chatID string) (int64, error) {
	query := sq.Select("COALESCE(MAX(sequence), 0)").From(s.GetTable()).Where(sq.Eq{"chat_id": chatID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var seq int64
	if err = s.GetReplica(ctx).Get(&seq, queryString, args...); err != nil {
		return 0, err
	}
	return seq, nil
}

// PurgeDeletedBefore permanently removes soft-deleted rows past the
// retention window.
func (s *MessageStore) PurgeDeletedBefore(ctx context.Context, before int64) (int64, error) {
	query := sq.Delete(s.GetTable()).
		Where(sq.Gt{"deleted_at": 0}).
		Where(sq.Lt{"deleted_at": before})
	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}
	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
