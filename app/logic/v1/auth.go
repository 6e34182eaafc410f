package v1

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/types"
)

type AuthLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewAuthLogic(ctx context.Context, core *core.Core) *AuthLogic {
	return &AuthLogic{
		ctx:  ctx,
		core: core,
	}
}

// GetAccessTokenDetail resolves a bearer token to its claims. Expired
// and unknown tokens look the same to the caller.
func (l *AuthLogic) GetAccessTokenDetail(token string) (*types.AccessToken, error) {
	detail, err := l.core.Store().AccessTokenStore().GetAccessToken(l.ctx, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("AuthLogic.GetAccessTokenDetail.AccessTokenStore.GetAccessToken", i18n.ERROR_INVALID_TOKEN, nil).Code(http.StatusUnauthorized)
		}
		return nil, errors.New("AuthLogic.GetAccessTokenDetail.AccessTokenStore.GetAccessToken", i18n.ERROR_INTERNAL, err)
	}

	if detail.Expired() {
		return nil, errors.New("AuthLogic.GetAccessTokenDetail.Expired", i18n.ERROR_INVALID_TOKEN, nil).Code(http.StatusUnauthorized)
	}
	return detail, nil
}
