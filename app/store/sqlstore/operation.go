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
		provider.stores.OperationStore = NewOperationStore(provider)
	})
}

// OperationStore records applied correlation ids so a replayed
// operation can be answered with its original result.
type OperationStore struct {
	CommonFields
}

func NewOperationStore(provider SqlProviderAchieve) *OperationStore {
	repo := &OperationStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_OPERATION)
	repo.SetAllColumns("correlation_id", "user_id", "kind", "result_id", "created_at")
	return repo
}

func (s *OperationStore) Create(ctx context.Context, data types.OperationRecord) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns("correlation_id", "user_id", "kind", "result_id", "created_at").
		Values(data.CorrelationID, data.UserID, data.Kind, data.ResultID, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *OperationStore) Get(ctx context.Context, userID, correlationID string) (*types.OperationRecord, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"user_id": userID, "correlation_id": correlationID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var record types.OperationRecord
	if err = s.GetReplica(ctx).Get(&record, queryString, args...); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *OperationStore) PurgeBefore(ctx context.Context, before int64) (int64, error) {
	query := sq.Delete(s.GetTable()).Where(sq.Lt{"created_at": before})
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
