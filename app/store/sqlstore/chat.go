package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/speechbot/speechbot/pkg/register"
	"github.com/speechbot/speechbot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ChatStore = NewChatStore(provider)
	})
}

type ChatStore struct {
	CommonFields
}

func NewChatStore(provider SqlProviderAchieve) *ChatStore {
	repo := &ChatStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHAT)
	repo.SetAllColumns("id", "user_id", "title", "folder_id", "tags", "favorite", "archived",
		"message_count", "version", "metadata", "created_at", "updated_at", "deleted_at")
	return repo
}

func (s *ChatStore) Create(ctx context.Context, data types.Chat) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}
	if data.Version == 0 {
		data.Version = 1
	}
	if data.Tags == nil {
		data.Tags = pq.StringArray{}
	}
	query := sq.Insert(s.GetTable()).
		Columns("id", "user_id", "title", "folder_id", "tags", "favorite", "archived",
			"message_count", "version", "metadata", "created_at", "updated_at", "deleted_at").
		Values(data.ID, data.UserID, data.Title, data.FolderID, data.Tags, data.Favorite, data.Archived,
			data.MessageCount, data.Version, data.Metadata.String(), data.CreatedAt, data.UpdatedAt, 0)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatStore) Get(ctx context.Context, userID, id string) (*types.Chat, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"id": id, "deleted_at": 0})
	if userID != "" {
		query = query.Where(sq.Eq{"user_id": userID})
	}
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var chat types.Chat
	if err = s.GetReplica(ctx).Get(&chat, queryString, args...); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatStore) UpdateWithVersion(ctx context.Context, userID, id string, baseVersion int64, fields types.UpdateChatFields) (bool, error) {
	query := sq.Update(s.GetTable()).
		Set("version", baseVersion+1).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "user_id": userID, "version": baseVersion, "deleted_at": 0})

	if fields.Title != nil {
		query = query.Set("title", *fields.Title)
	}
	if fields.FolderID != nil {
		query = query.Set("folder_id", *fields.FolderID)
	}
	if fields.Tags != nil {
		query = query.Set("tags", pq.StringArray(*fields.Tags))
	}
	if fields.Favorite != nil {
		query = query.Set("favorite", *fields.Favorite)
	}
	if fields.Archived != nil {
		query = query.Set("archived", *fields.Archived)
	}
	if fields.Metadata != nil {
		query = query.Set("metadata", fields.Metadata.String())
	}

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

func (s *ChatStore) Delete(ctx context.Context, userID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id, "user_id": userID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatStore) applyListOptions(query sq.SelectBuilder, opts types.ListChatOptions) sq.SelectBuilder {
	query = query.Where(sq.Eq{"deleted_at": 0})
	if opts.UserID != "" {
		query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.FolderID != "" {
		query = query.Where(sq.Eq{"folder_id": opts.FolderID})
	}
	if opts.Tag != "" {
		query = query.Where(sq.Expr("? = ANY(tags)", opts.Tag))
	}
	if opts.Favorite != nil {
		query = query.Where(sq.Eq{"favorite": *opts.Favorite})
	}
	if opts.Archived != nil {
		query = query.Where(sq.Eq{"archived": *opts.Archived})
	}
	if opts.Keyword != "" {
		query = query.Where(sq.Expr("title ILIKE ?", "%"+opts.Keyword+"%"))
	}
	return query
}

func (s *ChatStore) List(ctx context.Context, opts types.ListChatOptions, page, pageSize uint64) ([]types.Chat, error) {
	query := s.applyListOptions(sq.Select(s.GetAllColumns()...).From(s.GetTable()), opts).
		OrderBy("updated_at DESC, id DESC")
	if page != types.NO_PAGING || pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.Chat
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *ChatStore) Total(ctx context.Context, opts types.ListChatOptions) (int64, error) {
	query := s.applyListOptions(sq.Select("COUNT(*)").From(s.GetTable()), opts)
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

// Search matches chat titles and undeleted message bodies, newest
// first. One hit per matching message plus one title-only hit per chat.
func (s *ChatStore) Search(ctx context.Context, userID, keyword string, limit uint64) ([]types.SearchHit, error) {
	pattern := "%" + keyword + "%"
	msgTable := types.TABLE_MESSAGE.Name()

	query := sq.Select(
		"c.id AS chat_id",
		"COALESCE(m.id, '') AS message_id",
		"c.title AS title",
		"COALESCE(m.content, '') AS snippet",
		"COALESCE(m.send_time, c.updated_at) AS send_time",
	).
		From(s.GetTable() + " c").
		LeftJoin(msgTable+" m ON m.chat_id = c.id AND m.deleted_at = 0 AND m.content ILIKE ?", pattern).
		Where(sq.Eq{"c.user_id": userID, "c.deleted_at": 0}).
		Where(sq.Or{
			sq.Expr("c.title ILIKE ?", pattern),
			sq.Expr("m.id IS NOT NULL"),
		}).
		OrderBy("send_time DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var hits []types.SearchHit
	if err = s.GetReplica(ctx).Select(&hits, queryString, args...); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *ChatStore) Touch(ctx context.Context, id string, delta int64) error {
	query := sq.Update(s.GetTable()).
		Set("message_count", sq.Expr("message_count + ?", delta)).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatStore) ListFolderSummaries(ctx context.Context, userID string) ([]types.FolderSummary, error) {
	query := sq.Select("folder_id", "COUNT(*) AS chat_count").
		From(s.GetTable()).
		Where(sq.Eq{"user_id": userID, "deleted_at": 0}).
		Where(sq.NotEq{"folder_id": ""}).
		GroupBy("folder_id").
		OrderBy("folder_id")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.FolderSummary
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// RecomputeMessageCount rewrites message_count from the message table.
// Run by the maintenance job to heal drift.
func (s *ChatStore) RecomputeMessageCount(ctx context.Context, id string) error {
	msgTable := types.TABLE_MESSAGE.Name()
	query := sq.Update(s.GetTable()).
		Set("message_count", sq.Expr("(SELECT COUNT(*) FROM "+msgTable+" WHERE chat_id = ? AND deleted_at = 0)", id)).
		Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatStore) ListIDs(ctx context.Context, page, pageSize uint64) ([]string, error) {
	query := sq.Select("id").From(s.GetTable()).Where(sq.Eq{"deleted_at": 0}).OrderBy("id")
	if page != types.NO_PAGING || pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var ids []string
	if err = s.GetReplica(ctx).Select(&ids, queryString, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
